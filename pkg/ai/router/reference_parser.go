package router

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/rag"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// MaxReferences is the hard limit for exact references taken from a single prompt
const MaxReferences = 5

// maxNameTokens bounds the book-name span ("Acts of the Apostles")
const maxNameTokens = 4

// ParsedReference represents a single exact-passage request extracted from a prompt
type ParsedReference struct {
	Book        bible.BookCode
	Chapter     int
	VerseStart  int    // 0 means the whole chapter
	VerseEnd    int    // equals VerseStart for a single verse
	OriginalRaw string // The original matched text
}

// WholeChapter reports whether no verse was named
func (r ParsedReference) WholeChapter() bool {
	return r.VerseStart == 0
}

func (r ParsedReference) String() string {
	switch {
	case r.WholeChapter():
		return fmt.Sprintf("%s.%d", r.Book, r.Chapter)
	case r.VerseEnd > r.VerseStart:
		return fmt.Sprintf("%s.%d.%d-%d", r.Book, r.Chapter, r.VerseStart, r.VerseEnd)
	default:
		return fmt.Sprintf("%s.%d.%d", r.Book, r.Chapter, r.VerseStart)
	}
}

// ReferenceParseResult contains all parsed references
type ReferenceParseResult struct {
	References []ParsedReference
	Ambiguous  int  // book names recognized with unusable chapter/verse text
	HasRefs    bool // Quick check for any references
}

// refLexer splits prompts into numbers, words and single punctuation marks.
// The Korean chapter/verse markers are lexed before Ident so "3장16절을" splits cleanly.
var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Marker", Pattern: `[장절편]`},
	{Name: "Ident", Pattern: `\p{L}+`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Punct", Pattern: `[^\s\p{L}0-9]`},
})

var (
	tokInt    = refLexer.Symbols()["Int"]
	tokIdent  = refLexer.Symbols()["Ident"]
	tokMarker = refLexer.Symbols()["Marker"]
	tokSpace  = refLexer.Symbols()["Whitespace"]
)

// notation is the grammar for the text following a book name.
// Examples: "3", "3:16", "3:16-18", "3.16", "3장", "3장 16절", "3장 16-18절", "23편"
//
//nolint:govet // participle grammar tags are not standard struct tags
type notation struct {
	Chapter int          `@Int`
	Verses  *verseSpan   `( ( ":" | "." ) @@`
	Korean  *koreanTail  `| @@ )?`
	EndPos  lexer.Position
}

//nolint:govet // participle grammar tags are not standard struct tags
type verseSpan struct {
	Start    int  `@Int`
	End      *int `( ( "-" | "–" | "~" ) @Int`
	EndVerse *int `  ( ":" @Int )? )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type koreanTail struct {
	Marker string     `@Marker`
	Verses *verseSpan `( @@ "절"? )?`
}

var notationParser = participle.MustBuild[notation](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(4),
)

// ParseReferences extracts exact scripture references from a prompt.
// Supports:
//   - John 3:16, 1 John 4:7-8, Song of Solomon 2:4, Gen. 1:1
//   - 요한복음 3:16, 요한복음 3장 16절, 고전 13:4-7, 시편 23편
//   - one-syllable forms: 요3:16, 롬 8:28, 창 1:1 (chapter-only only when glued: 시23)
//
// Unrecognized text yields an empty result; nothing here is an error.
func ParseReferences(prompt string, lang bible.Language) *ReferenceParseResult {
	s := newScanner(prompt, lang, false)
	return s.scan()
}

// ParseReference parses one standalone reference such as "John 3", "Gen 1:1-3" or "시편 23편".
func ParseReference(s string) (ParsedReference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ParsedReference{}, fmt.Errorf("empty reference string: %w", rag.ErrParseAmbiguous)
	}

	result := newScanner(s, bible.DetectLanguage(s), true).scan()
	if len(result.References) != 1 {
		return ParsedReference{}, fmt.Errorf("invalid reference %q: %w", s, rag.ErrParseAmbiguous)
	}
	return result.References[0], nil
}

type scanner struct {
	text    string
	lang    bible.Language
	relaxed bool // standalone mode: chapter-only is fine for any recognized name
	tokens  []lexer.Token
}

func newScanner(text string, lang bible.Language, relaxed bool) *scanner {
	s := &scanner{text: text, lang: lang, relaxed: relaxed}

	lex, err := refLexer.LexString("", text)
	if err != nil {
		return s
	}
	all, err := lexer.ConsumeAll(lex)
	if err != nil {
		return s
	}
	for _, tok := range all {
		if tok.EOF() || tok.Type == tokSpace {
			continue
		}
		s.tokens = append(s.tokens, tok)
	}
	return s
}

// nameMatch is a book name found directly before a chapter number
type nameMatch struct {
	code     bible.BookCode
	start    int  // byte offset of the name
	short    bool // one-syllable Korean form
	spaced   bool // short form separated from the chapter number
	titled   bool // English name written with a capital letter
	fullName bool
}

func (s *scanner) scan() *ReferenceParseResult {
	result := &ReferenceParseResult{References: make([]ParsedReference, 0)}
	seen := make(map[string]bool)

	for i, tok := range s.tokens {
		if tok.Type != tokInt {
			continue
		}
		if len(result.References) >= MaxReferences {
			break
		}

		name, ok := s.matchName(i)
		if !ok {
			continue
		}

		ref, status := s.parseNotation(name, tok)
		switch status {
		case notationNone:
			continue
		case notationInvalid:
			result.Ambiguous++
			continue
		}

		key := ref.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		result.References = append(result.References, ref)
	}

	result.HasRefs = len(result.References) > 0
	return result
}

// matchName looks for the longest run of tokens before tokens[i] that names a book.
func (s *scanner) matchName(i int) (nameMatch, bool) {
	end := i // exclusive
	if end > 0 && s.tokens[end-1].Value == "." {
		end--
	}

	for n := maxNameTokens; n >= 1; n-- {
		start := end - n
		if start < 0 {
			continue
		}
		span := s.tokens[start:end]
		if !validNameSpan(span) {
			continue
		}

		parts := make([]string, len(span))
		for k, t := range span {
			parts[k] = t.Value
		}
		joined := strings.Join(parts, " ")

		if code, ok := bible.LookupBook(joined); ok {
			return nameMatch{
				code:     code,
				start:    span[0].Pos.Offset,
				titled:   startsUpper(joined),
				fullName: isFullName(code, joined),
			}, true
		}

		// One-syllable Korean forms sit directly before the number: "요3:16", "롬 8:28".
		if n == 1 && end == i {
			if code, ok := bible.LookupShortKR(joined); ok {
				return nameMatch{
					code:   code,
					start:  span[0].Pos.Offset,
					short:  true,
					spaced: !s.glued(span[0], s.tokens[i]),
				}, true
			}
		}
	}
	return nameMatch{}, false
}

// validNameSpan accepts words, with an optional leading ordinal (1-3) for numbered books.
func validNameSpan(span []lexer.Token) bool {
	for k, t := range span {
		switch {
		case t.Type == tokIdent:
		case k == 0 && len(span) > 1 && t.Type == tokInt && (t.Value == "1" || t.Value == "2" || t.Value == "3"):
		default:
			return false
		}
	}
	return true
}

func (s *scanner) glued(a, b lexer.Token) bool {
	return a.Pos.Offset+len(a.Value) == b.Pos.Offset
}

type notationStatus int

const (
	notationNone notationStatus = iota
	notationOK
	notationInvalid
)

func (s *scanner) parseNotation(name nameMatch, chapterTok lexer.Token) (ParsedReference, notationStatus) {
	offset := chapterTok.Pos.Offset
	parsed, err := notationParser.ParseString("", s.text[offset:], participle.AllowTrailing(true))
	if err != nil {
		return ParsedReference{}, notationInvalid
	}

	ref := ParsedReference{Book: name.code, Chapter: parsed.Chapter}
	span := parsed.Verses
	korean := false
	if parsed.Korean != nil {
		if parsed.Korean.Marker == "절" {
			return ParsedReference{}, notationInvalid
		}
		korean = true
		span = parsed.Korean.Verses
	}

	if span == nil && !s.chapterOnlyAllowed(name, korean) {
		return ParsedReference{}, notationNone
	}

	if span != nil {
		if span.EndVerse != nil {
			// Cross-chapter ranges ("1:1-2:3") are not expanded.
			return ParsedReference{}, notationInvalid
		}
		ref.VerseStart = span.Start
		ref.VerseEnd = span.Start
		if span.End != nil {
			ref.VerseEnd = *span.End
		}
	}

	if !validNumbers(ref) {
		return ParsedReference{}, notationInvalid
	}

	end := offset + parsed.EndPos.Offset
	if end > len(s.text) || end < name.start {
		end = len(s.text)
	}
	ref.OriginalRaw = strings.TrimSpace(s.text[name.start:end])
	return ref, notationOK
}

// chapterOnlyAllowed guards against words like "job 3 years" being read as a passage.
// A spaced one-syllable form needs a verse to count, so "신 3장" alone is never a reference.
func (s *scanner) chapterOnlyAllowed(name nameMatch, korean bool) bool {
	if name.short && name.spaced {
		return false
	}
	if s.relaxed {
		return true
	}
	if name.short {
		return false
	}
	if korean {
		return true
	}
	if s.lang == bible.Korean && name.fullName {
		return true
	}
	return name.fullName && name.titled
}

func validNumbers(ref ParsedReference) bool {
	book, ok := bible.BookByCode(ref.Book)
	if !ok || ref.Chapter < 1 || ref.Chapter > book.Chapters {
		return false
	}
	if ref.VerseStart == 0 {
		return true
	}
	return ref.VerseStart >= 1 && ref.VerseEnd >= ref.VerseStart
}

func isFullName(code bible.BookCode, name string) bool {
	book, ok := bible.BookByCode(code)
	if !ok {
		return false
	}
	key := bible.NormalizeName(name)
	if key == bible.NormalizeName(book.Name) || key == bible.NormalizeName(book.NameKR) {
		return true
	}
	// "Psalm" for "Psalms" and "Song of Songs" style long forms
	return utf8.RuneCountInString(key) >= 5 && !isAllUpper(name)
}

func startsUpper(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsDigit(r) {
		for _, c := range s {
			if unicode.IsLetter(c) {
				return unicode.IsUpper(c)
			}
		}
	}
	return unicode.IsUpper(r)
}

func isAllUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
