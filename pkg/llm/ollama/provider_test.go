package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bibleai-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, 512, req.Options.NumPredict)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:   req.Model,
			Message: ollamaMessage{Role: "assistant", Content: "For God so loved the world"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "qwen2.5")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "John 3:16"},
	}, llm.WithMaxTokens(512))

	require.NoError(t, err)
	assert.Equal(t, "For God so loved the world", out)
	assert.Equal(t, "qwen2.5", p.ModelName())
}

func TestOllamaProvider_ChatStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "missing").Generate(context.Background(), "hi")

	var se *llm.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.False(t, se.Temporary())
}

func TestOllamaProvider_ChatWithUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"qwen2.5","message":{"role":"assistant","content":"Peace I leave with you"},"done":true,"prompt_eval_count":412,"eval_count":57}`))
	}))
	defer srv.Close()

	out, err := llm.Complete(context.Background(), NewOllamaProvider(srv.URL, "qwen2.5"), []llm.Message{{Role: "user", Content: "John 14:27"}})
	require.NoError(t, err)
	assert.Equal(t, "Peace I leave with you", out.Text)
	assert.Equal(t, llm.Usage{InputTokens: 412, OutputTokens: 57}, out.Usage)
}
