package store

import "bibleai-be/pkg/bible"

// MatchKind tells how a candidate was found
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchSemantic MatchKind = "semantic"
)

// ExactScore is the fixed score of a named passage
const ExactScore = 1.0

// Candidate is a per-query (verse, score, kind) tuple. Never persisted.
type Candidate struct {
	Verse bible.Verse
	Score float64
	Kind  MatchKind
}

// Source converts the candidate into citation metadata
func (c Candidate) Source() Source {
	return Source{
		Reference:   c.Verse.ID.Display(bible.English),
		ReferenceKR: c.Verse.ID.Display(bible.Korean),
		VerseKey:    c.Verse.ID.Key(),
		Translation: c.Verse.ID.Translation,
		Score:       c.Score,
		Kind:        string(c.Kind),
		Text:        c.Verse.Text,
	}
}
