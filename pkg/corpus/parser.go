package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"bibleai-be/pkg/bible"
)

// Corpus file formats
const (
	FormatBooks = "books"
	FormatFlat  = "flat"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bookEntry struct {
	Name     string     `json:"name"`
	Abbrev   string     `json:"abbrev"`
	Chapters [][]string `json:"chapters"`
}

// Parsed is the result of decoding one translation file
type Parsed struct {
	Verses []bible.Verse
	// Skipped lists book names or keys that did not resolve to a canonical verse
	Skipped []string
}

// Parse decodes a translation file into verses in canonical order
func Parse(data []byte, translation, format string) (*Parsed, error) {
	t, ok := bible.LookupTranslation(translation)
	if !ok {
		return nil, fmt.Errorf("unknown translation %q", translation)
	}
	if t.Remote() {
		return nil, fmt.Errorf("%s is fetched per answer and cannot be ingested", t.Code)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if format == "" {
		format = detectFormat(data)
	}

	var parsed *Parsed
	var err error
	switch format {
	case FormatBooks:
		parsed, err = parseBooks(data, t)
	case FormatFlat:
		parsed, err = parseFlat(data, t)
	default:
		return nil, fmt.Errorf("%s: unrecognized corpus format", t.Code)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(parsed.Verses, func(i, j int) bool { return parsed.Verses[i].ID.Less(parsed.Verses[j].ID) })
	return parsed, nil
}

func detectFormat(data []byte) string {
	trimmed := bytes.TrimLeftFunc(data, unicode.IsSpace)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '[':
		return FormatBooks
	case '{':
		return FormatFlat
	}
	return ""
}

func parseBooks(data []byte, t bible.Translation) (*Parsed, error) {
	var entries []bookEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: invalid book list: %w", t.Code, err)
	}

	out := &Parsed{}
	for _, e := range entries {
		code, ok := bible.LookupBook(e.Name)
		if !ok && e.Abbrev != "" {
			code, ok = bible.LookupBook(e.Abbrev)
		}
		if !ok {
			out.Skipped = append(out.Skipped, e.Name)
			continue
		}
		for ch, chapter := range e.Chapters {
			for v, text := range chapter {
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				out.Verses = append(out.Verses, newVerse(code, ch+1, v+1, text, t))
			}
		}
	}
	return out, nil
}

func parseFlat(data []byte, t bible.Translation) (*Parsed, error) {
	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: invalid verse map: %w", t.Code, err)
	}

	out := &Parsed{}
	for key, text := range entries {
		code, chapter, verse, ok := parseFlatKey(key)
		text = strings.TrimSpace(text)
		if !ok || text == "" {
			out.Skipped = append(out.Skipped, key)
			continue
		}
		out.Verses = append(out.Verses, newVerse(code, chapter, verse, text, t))
	}
	sort.Strings(out.Skipped)
	return out, nil
}

// parseFlatKey splits keys such as "창1:14", "고전 13:4" or "Gen1:1"
func parseFlatKey(key string) (bible.BookCode, int, int, bool) {
	key = strings.TrimSpace(key)
	split := strings.IndexFunc(key, unicode.IsDigit)
	// a leading digit belongs to the book name ("1John3:16")
	if split == 0 {
		rest := strings.IndexFunc(key[1:], unicode.IsDigit)
		if rest < 0 {
			return "", 0, 0, false
		}
		split = rest + 1
	}
	if split <= 0 {
		return "", 0, 0, false
	}

	name := strings.TrimSpace(key[:split])
	code, ok := bible.LookupShortKR(name)
	if !ok {
		code, ok = bible.LookupBook(name)
	}
	if !ok {
		return "", 0, 0, false
	}

	chStr, vStr, found := strings.Cut(key[split:], ":")
	if !found {
		return "", 0, 0, false
	}
	chapter, err := strconv.Atoi(strings.TrimSpace(chStr))
	if err != nil || chapter < 1 {
		return "", 0, 0, false
	}
	verse, err := strconv.Atoi(strings.TrimSpace(vStr))
	if err != nil || verse < 1 {
		return "", 0, 0, false
	}
	return code, chapter, verse, true
}

func newVerse(code bible.BookCode, chapter, verse int, text string, t bible.Translation) bible.Verse {
	return bible.Verse{
		ID:       bible.VerseID{Book: code, Chapter: chapter, Verse: verse, Translation: t.Code},
		Text:     text,
		Language: t.Language,
		BookName: code.DisplayName(t.Language),
	}
}

// SearchText is the document embedded for a verse: both book names, the reference and the text,
// so Korean and English queries land near the same verse.
func SearchText(v bible.Verse) string {
	return fmt.Sprintf("%s %s %d:%d %s",
		v.ID.Book.DisplayName(bible.English), v.ID.Book.DisplayName(bible.Korean),
		v.ID.Chapter, v.ID.Verse, v.Text)
}
