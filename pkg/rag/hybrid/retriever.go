package hybrid

import (
	"context"
	"fmt"
	"log"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/rag/search"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/store"
)

// DefaultMaxExactVerses caps how many verses a chapter-only reference contributes
const DefaultMaxExactVerses = 30

// Semantic is the Semantic Search Adapter as used by the retriever
type Semantic interface {
	Execute(ctx context.Context, query string, config search.Config) ([]store.Candidate, error)
}

// Options tune one retrieval
type Options struct {
	Translation    string // translation for exact lookups and the semantic filter
	TopK           int
	MaxExactVerses int
	SearchPolicy   retry.Policy
}

// Result is the merged, ranked candidate list of one query
type Result struct {
	Candidates []store.Candidate
	Confidence float64 // score of the top candidate, 0 when empty
	References []router.ParsedReference
	ExactHits  int
	Ambiguous  int
	// SemanticErr is set when semantic search failed but exact hits still answer the query
	SemanticErr error
}

// Retriever merges exact-reference hits with semantic candidates
type Retriever struct {
	semantic Semantic
	verses   contract.VerseRepository
	logger   *log.Logger
}

func NewRetriever(semantic Semantic, verses contract.VerseRepository, logger *log.Logger) *Retriever {
	return &Retriever{semantic: semantic, verses: verses, logger: logger}
}

// Retrieve parses the query for exact references, always attempts semantic search,
// and merges both. Semantic unavailability is returned only when no exact hit exists.
func (r *Retriever) Retrieve(ctx context.Context, query string, lang bible.Language, opts Options) (*Result, error) {
	if opts.Translation == "" {
		opts.Translation = bible.DefaultTranslation(lang)
	}
	if opts.MaxExactVerses <= 0 {
		opts.MaxExactVerses = DefaultMaxExactVerses
	}

	// 1. Exact references
	parsed := router.ParseReferences(query, lang)
	exact, err := r.resolveExact(ctx, parsed.References, opts)
	if err != nil {
		return nil, fmt.Errorf("exact reference lookup failed: %w", err)
	}
	if parsed.HasRefs || parsed.Ambiguous > 0 {
		r.logger.Printf("[HYBRID] References: %d parsed, %d ambiguous, %d verses resolved", len(parsed.References), parsed.Ambiguous, len(exact))
	}

	// 2. Semantic search is always attempted
	semantic, semErr := r.semantic.Execute(ctx, query, search.Config{
		TopK:        opts.TopK,
		Translation: opts.Translation,
		Policy:      opts.SearchPolicy,
	})
	if semErr != nil {
		if len(exact) == 0 {
			return nil, semErr
		}
		r.logger.Printf("[HYBRID] Semantic search unavailable, answering from %d exact hit(s): %v", len(exact), semErr)
		semantic = nil
	}

	// 3. Merge
	merged := Merge(exact, semantic)
	result := &Result{
		Candidates:  merged,
		Confidence:  Confidence(merged),
		References:  parsed.References,
		ExactHits:   len(exact),
		Ambiguous:   parsed.Ambiguous,
		SemanticErr: semErr,
	}

	r.logger.Printf("[HYBRID] Merged %d candidates (exact %d, semantic %d), confidence %.3f",
		len(merged), len(exact), len(semantic), result.Confidence)
	return result, nil
}

func (r *Retriever) resolveExact(ctx context.Context, refs []router.ParsedReference, opts Options) ([]store.Candidate, error) {
	var out []store.Candidate
	for _, ref := range refs {
		q := contract.ChapterRange{
			Translation: opts.Translation,
			Book:        ref.Book,
			Chapter:     ref.Chapter,
			From:        1,
			To:          opts.MaxExactVerses,
		}
		if !ref.WholeChapter() {
			q.From = ref.VerseStart
			q.To = ref.VerseEnd
			if q.To-q.From+1 > opts.MaxExactVerses {
				q.To = q.From + opts.MaxExactVerses - 1
			}
		}

		verses, err := r.verses.FindRange(ctx, q)
		if err != nil {
			return nil, err
		}
		if len(verses) == 0 {
			r.logger.Printf("[HYBRID] Reference %s not in %s corpus", ref, opts.Translation)
		}
		for _, v := range verses {
			out = append(out, store.Candidate{Verse: v, Score: store.ExactScore, Kind: store.MatchExact})
		}
	}
	return out, nil
}

// Merge puts every exact hit first at score 1.0, then semantic candidates by
// descending score. A verse present in both is kept once, as exact.
func Merge(exact, semantic []store.Candidate) []store.Candidate {
	merged := make([]store.Candidate, 0, len(exact)+len(semantic))
	seen := make(map[string]bool, len(exact)+len(semantic))

	for _, c := range exact {
		key := c.Verse.ID.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Score = store.ExactScore
		c.Kind = store.MatchExact
		merged = append(merged, c)
	}

	rest := make([]store.Candidate, 0, len(semantic))
	for _, c := range semantic {
		key := c.Verse.ID.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		c.Kind = store.MatchSemantic
		c.Score = search.NormalizeScore(c.Score)
		rest = append(rest, c)
	}
	search.SortCandidates(rest)

	return append(merged, rest...)
}

// Confidence is the score of the top-ranked candidate
func Confidence(candidates []store.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	return candidates[0].Score
}
