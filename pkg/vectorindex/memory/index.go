package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"bibleai-be/pkg/vectorindex"
)

// Index is a brute-force cosine index kept in process memory.
// It serves tests and small corpora; vectors are expected to be unit length.
type Index struct {
	mu     sync.RWMutex
	points map[string]vectorindex.Point
}

func New() *Index {
	return &Index{points: make(map[string]vectorindex.Point)}
}

func (i *Index) Name() string { return "memory" }

func (i *Index) Upsert(ctx context.Context, points []vectorindex.Point) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, p := range points {
		if p.Key == "" {
			return fmt.Errorf("memory index: point without key")
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		p.Vector = vec
		i.points[p.Key] = p
	}
	return nil
}

func (i *Index) Search(ctx context.Context, vector []float32, filter vectorindex.Filter, limit int) ([]vectorindex.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	hits := make([]vectorindex.Hit, 0, len(i.points))
	for _, p := range i.points {
		if filter.Translation != "" && p.Translation != filter.Translation {
			continue
		}
		if len(p.Vector) != len(vector) {
			continue
		}
		hits = append(hits, vectorindex.Hit{Key: p.Key, Score: cosine(vector, p.Vector)})
	}
	i.mu.RUnlock()

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Key < hits[b].Key
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (i *Index) Count(ctx context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.points), nil
}

func (i *Index) Close() error { return nil }

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for k := range a {
		dot += float64(a[k]) * float64(b[k])
		na += float64(a[k]) * float64(a[k])
		nb += float64(b[k]) * float64(b[k])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ vectorindex.VectorIndex = (*Index)(nil)
