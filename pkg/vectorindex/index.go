package vectorindex

import "context"

// Point is one embedded verse. Key is the verse key ("KJV:JHN.3.16").
type Point struct {
	Key         string
	Translation string
	Vector      []float32
}

// Hit is a search result with cosine similarity in [-1, 1] as reported by the backend
type Hit struct {
	Key   string
	Score float64
}

// Filter restricts a search; an empty Translation searches every translation
type Filter struct {
	Translation string
}

// VectorIndex is a technology agnostic similarity index.
// Implementations: in-process memory, Qdrant, pgvector.
type VectorIndex interface {
	// Search returns at most limit hits ordered by descending similarity
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error)

	// Upsert stores or replaces points by key
	Upsert(ctx context.Context, points []Point) error

	// Count reports how many points are indexed
	Count(ctx context.Context) (int, error)

	// Name identifies the backend in health output
	Name() string

	Close() error
}
