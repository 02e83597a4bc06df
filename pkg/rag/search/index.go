package search

import (
	"context"
	"fmt"

	"bibleai-be/pkg/embedding"
	"bibleai-be/pkg/vectorindex"
)

// Index is the vector index service as seen by the engine: text in, ranked verse keys out.
type Index interface {
	EmbedAndSearch(ctx context.Context, text string, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error)
}

// EmbeddingIndex composes an embedding provider with a vector index backend.
type EmbeddingIndex struct {
	embedder embedding.EmbeddingProvider
	vectors  vectorindex.VectorIndex
}

func NewEmbeddingIndex(embedder embedding.EmbeddingProvider, vectors vectorindex.VectorIndex) *EmbeddingIndex {
	return &EmbeddingIndex{embedder: embedder, vectors: vectors}
}

func (i *EmbeddingIndex) EmbedAndSearch(ctx context.Context, text string, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	embeddingRes, err := i.embedder.Generate(ctx, text, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	hits, err := i.vectors.Search(ctx, embeddingRes.Embedding.Values, filter, k)
	if err != nil {
		return nil, fmt.Errorf("%s search failed: %w", i.vectors.Name(), err)
	}
	return hits, nil
}

// Backend names the vector backend for health output.
func (i *EmbeddingIndex) Backend() string {
	return i.vectors.Name()
}
