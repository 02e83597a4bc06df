package esv

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

func TestClient_Passage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))

		q := r.URL.Query()
		assert.Equal(t, "John 3:16", q.Get("q"))
		assert.Equal(t, "false", q.Get("include-headings"))
		assert.Equal(t, "false", q.Get("include-footnotes"))
		assert.Equal(t, "true", q.Get("include-verse-numbers"))
		assert.Equal(t, "false", q.Get("include-short-copyright"))
		assert.Equal(t, "false", q.Get("include-passage-references"))
		assert.Equal(t, "0", q.Get("indent-paragraphs"))

		_ = json.NewEncoder(w).Encode(passageResponse{
			Canonical: "John 3:16",
			Passages:  []string{"  [16] For God so loved the world,\n"},
		})
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL+"/")
	text, err := c.Passage(context.Background(), "John 3:16")

	require.NoError(t, err)
	assert.Equal(t, "[16] For God so loved the world,", text)
	assert.Equal(t, "ESV", c.Translation())
	assert.Contains(t, c.Notice(), "Crossway")
}

func TestClient_PassageErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"detail":"Invalid token."}`, http.StatusUnauthorized)
			},
			check: func(t *testing.T, err error) {
				var se *llm.StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusUnauthorized, se.Code)
				assert.Equal(t, "esv", se.Provider)
			},
		},
		{
			name: "no passages",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"canonical":"","passages":[]}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoPassage)
			},
		},
		{
			name: "blank passage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"passages":["  \n"]}`))
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoPassage)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient("secret", srv.URL).Passage(context.Background(), "Hezekiah 1:1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewClient("k", "").BaseURL)
}
