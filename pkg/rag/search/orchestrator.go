package search

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/embedding"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/store"
	"bibleai-be/pkg/vectorindex"
)

// Orchestrator handles vector search and turns hits into semantic candidates
type Orchestrator struct {
	index  Index
	verses contract.VerseRepository
	logger *log.Logger
}

// NewOrchestrator creates a new search orchestrator
func NewOrchestrator(index Index, verses contract.VerseRepository, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		index:  index,
		verses: verses,
		logger: logger,
	}
}

// Config encapsulates search parameters
type Config struct {
	TopK        int
	Translation string // empty searches all translations
	Policy      retry.Policy
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		TopK:   8,
		Policy: retry.DefaultPolicy(5 * time.Second),
	}
}

// Execute runs vector search and returns candidates ordered by descending score.
// An empty slice means nothing matched; a failed index is reported as *rag.UnavailableError.
func (o *Orchestrator) Execute(ctx context.Context, query string, config Config) ([]store.Candidate, error) {
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}

	filter := vectorindex.Filter{Translation: config.Translation}
	hits, attempts, err := retry.Do(ctx, config.Policy, func(ctx context.Context) ([]vectorindex.Hit, error) {
		hits, err := o.index.EmbedAndSearch(ctx, query, config.TopK, filter)
		if err != nil && !transient(err) {
			return nil, retry.Permanent(err)
		}
		return hits, err
	})
	if err != nil {
		o.logger.Printf("[ERROR] Vector search failed after %d attempt(s): %v", attempts, err)
		return nil, &rag.UnavailableError{Dependency: "vector index", Attempts: attempts, Err: err}
	}

	o.logger.Printf("[DEBUG] Raw search results: %d hits", len(hits))

	candidates, err := o.hydrate(ctx, hits)
	if err != nil {
		return nil, err
	}

	o.logger.Printf("[DEBUG] Semantic candidates: %d verses", len(candidates))
	return candidates, nil
}

// hydrate resolves verse keys through the Verse Store. Keys the store does not
// hold are dropped so candidates never reference an unknown verse.
func (o *Orchestrator) hydrate(ctx context.Context, hits []vectorindex.Hit) ([]store.Candidate, error) {
	if len(hits) == 0 {
		return []store.Candidate{}, nil
	}

	keys := make([]string, 0, len(hits))
	for _, h := range hits {
		keys = append(keys, h.Key)
	}
	verses, err := o.verses.FindByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}

	candidates := make([]store.Candidate, 0, len(hits))
	seen := make(map[string]bool)
	for i, h := range hits {
		if seen[h.Key] {
			continue
		}
		v, ok := verses[h.Key]
		if !ok {
			o.logger.Printf("[WARN] Candidate %d: %s not in verse store [DROPPED]", i+1, h.Key)
			continue
		}
		seen[h.Key] = true

		score := NormalizeScore(h.Score)
		o.logger.Printf("[DEBUG] Candidate %d: %s Score=%.4f", i+1, h.Key, score)
		candidates = append(candidates, store.Candidate{Verse: v, Score: score, Kind: store.MatchSemantic})
	}

	SortCandidates(candidates)
	return candidates, nil
}

// NormalizeScore clamps cosine similarity into [0, 1]
func NormalizeScore(cosine float64) float64 {
	switch {
	case cosine < 0:
		return 0
	case cosine > 1:
		return 1
	default:
		return cosine
	}
}

// SortCandidates orders by descending score, ties broken canonically for stable output
func SortCandidates(c []store.Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Score != c[j].Score {
			return c[i].Score > c[j].Score
		}
		return c[i].Verse.ID.Less(c[j].Verse.ID)
	})
}

// transient reports whether a search error is worth retrying. Backend 4xx answers are not.
func transient(err error) bool {
	var es *embedding.StatusError
	if errors.As(err, &es) {
		return es.Temporary()
	}
	return true
}
