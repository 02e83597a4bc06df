package context

import (
	"context"
	"fmt"
	"log"
	"sort"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/store"
)

// DefaultWindow is the number of neighbouring verses added on each side of a candidate
const DefaultWindow = 2

// PassageVerse is one verse of an expanded passage
type PassageVerse struct {
	Verse        bible.Verse
	Direct       bool          // the verse itself was retrieved
	AttributedTo bible.VerseID // highest-ranked candidate whose window holds the verse
	Rank         int           // 1-based rank of that candidate
}

// ExpandedPassage is a contiguous run of verses from one chapter of one translation
type ExpandedPassage struct {
	Translation string
	Book        bible.BookCode
	BookName    string
	Chapter     int
	Verses      []PassageVerse
	Anchors     []store.Candidate // candidates that produced the passage, best first
}

// Rank is the rank of the best candidate in the passage
func (p ExpandedPassage) Rank() int {
	best := 0
	for _, v := range p.Verses {
		if best == 0 || v.Rank < best {
			best = v.Rank
		}
	}
	return best
}

// Reference renders "John 3:14-18" or "요한복음 3:16"
func (p ExpandedPassage) Reference(lang bible.Language) string {
	name := p.Book.DisplayName(lang)
	if len(p.Verses) == 0 {
		return fmt.Sprintf("%s %d", name, p.Chapter)
	}
	first := p.Verses[0].Verse.ID.Verse
	last := p.Verses[len(p.Verses)-1].Verse.ID.Verse
	if first == last {
		return fmt.Sprintf("%s %d:%d", name, p.Chapter, first)
	}
	return fmt.Sprintf("%s %d:%d-%d", name, p.Chapter, first, last)
}

// Options tune one expansion
type Options struct {
	Window     int // half-width W; negative falls back to DefaultWindow
	ExpandTopN int // widen only the first N candidates; 0 widens all
}

// Expander widens candidates into readable passages using the Verse Store
type Expander struct {
	verses contract.VerseRepository
	opts   Options
	logger *log.Logger
}

func NewExpander(verses contract.VerseRepository, opts Options, logger *log.Logger) *Expander {
	if opts.Window < 0 {
		opts.Window = DefaultWindow
	}
	if opts.ExpandTopN < 0 {
		opts.ExpandTopN = 0
	}
	return &Expander{verses: verses, opts: opts, logger: logger}
}

type chapterKey struct {
	translation string
	book        bible.BookCode
	chapter     int
}

type window struct {
	from, to int
	rank     int
	anchor   store.Candidate
}

type span struct {
	from, to int
	windows  []window
}

// Expand turns ranked candidates (best first) into passages ordered by their best candidate.
// Overlapping or touching windows of one chapter merge; each verse appears once.
func (e *Expander) Expand(ctx context.Context, candidates []store.Candidate) ([]ExpandedPassage, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	groups := make(map[chapterKey][]window)
	var order []chapterKey
	seen := make(map[string]bool, len(candidates))

	for i, c := range candidates {
		key := c.Verse.ID.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		w := 0
		if e.opts.ExpandTopN == 0 || i < e.opts.ExpandTopN {
			w = e.opts.Window
		}
		v := c.Verse.ID.Verse
		from := v - w
		if from < 1 {
			from = 1
		}

		ck := chapterKey{translation: c.Verse.ID.Translation, book: c.Verse.ID.Book, chapter: c.Verse.ID.Chapter}
		if _, ok := groups[ck]; !ok {
			order = append(order, ck)
		}
		groups[ck] = append(groups[ck], window{from: from, to: v + w, rank: i + 1, anchor: c})
	}

	var passages []ExpandedPassage
	for _, ck := range order {
		for _, s := range mergeWindows(groups[ck]) {
			p, err := e.build(ctx, ck, s)
			if err != nil {
				return nil, err
			}
			passages = append(passages, p)
		}
	}

	sort.SliceStable(passages, func(i, j int) bool {
		return passages[i].Rank() < passages[j].Rank()
	})

	e.logf("[EXPAND] %d candidate(s) -> %d passage(s), W=%d", len(candidates), len(passages), e.opts.Window)
	return passages, nil
}

// mergeWindows joins windows whose ranges overlap or touch
func mergeWindows(ws []window) []span {
	sorted := append([]window(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].from != sorted[j].from {
			return sorted[i].from < sorted[j].from
		}
		return sorted[i].rank < sorted[j].rank
	})

	var spans []span
	for _, w := range sorted {
		if n := len(spans); n > 0 && w.from <= spans[n-1].to+1 {
			last := &spans[n-1]
			if w.to > last.to {
				last.to = w.to
			}
			last.windows = append(last.windows, w)
			continue
		}
		spans = append(spans, span{from: w.from, to: w.to, windows: []window{w}})
	}
	return spans
}

func (e *Expander) build(ctx context.Context, ck chapterKey, s span) (ExpandedPassage, error) {
	verses, err := e.verses.FindRange(ctx, contract.ChapterRange{
		Translation: ck.translation,
		Book:        ck.book,
		Chapter:     ck.chapter,
		From:        s.from,
		To:          s.to,
	})
	if err != nil {
		return ExpandedPassage{}, fmt.Errorf("failed to load %s %s %d: %w", ck.translation, ck.book, ck.chapter, err)
	}

	ws := append([]window(nil), s.windows...)
	sort.Slice(ws, func(i, j int) bool { return ws[i].rank < ws[j].rank })

	direct := make(map[int]bool, len(ws))
	anchors := make([]store.Candidate, len(ws))
	for i, w := range ws {
		direct[w.anchor.Verse.ID.Verse] = true
		anchors[i] = w.anchor
	}

	// the store is the authority, but a candidate verse is never lost
	if len(verses) == 0 {
		for _, w := range ws {
			verses = append(verses, w.anchor.Verse)
		}
		sort.Slice(verses, func(i, j int) bool { return verses[i].ID.Verse < verses[j].ID.Verse })
	}

	p := ExpandedPassage{
		Translation: ck.translation,
		Book:        ck.book,
		BookName:    verses[0].BookName,
		Chapter:     ck.chapter,
		Anchors:     anchors,
	}
	for _, v := range verses {
		pv := PassageVerse{Verse: v, Direct: direct[v.ID.Verse]}
		for _, w := range ws {
			if v.ID.Verse >= w.from && v.ID.Verse <= w.to {
				pv.AttributedTo = w.anchor.Verse.ID
				pv.Rank = w.rank
				break
			}
		}
		p.Verses = append(p.Verses, pv)
	}
	return p, nil
}

func (e *Expander) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
