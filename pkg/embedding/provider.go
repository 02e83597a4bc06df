package embedding

import (
	"context"
	"fmt"
	"math"
	"net/http"
)

// Task types passed to providers that distinguish query and document embeddings
const (
	TaskQuery    = "RETRIEVAL_QUERY"
	TaskDocument = "RETRIEVAL_DOCUMENT"
)

// EmbeddingProvider defines the interface for generating text embeddings.
// Korean and English text must land in the same vector space.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error)
}

type EmbeddingResponseEmbedding struct {
	Values []float32 `json:"values"`
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding `json:"embedding"`
}

// StatusError is a non-200 answer from an embedding backend
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s embedding error: status %d, body: %s", e.Provider, e.Code, e.Body)
}

// Temporary reports whether retrying may succeed
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// NewProvider builds the configured provider ("ollama" or "gemini")
func NewProvider(kind, baseURL, model, apiKey string) (EmbeddingProvider, error) {
	switch kind {
	case "", "ollama":
		return NewOllamaProvider(baseURL, model), nil
	case "gemini":
		return NewGeminiProvider(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", kind)
	}
}

// normalizeVector normalizes a vector to unit length (magnitude = 1)
// This is REQUIRED for accurate cosine similarity calculation
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
