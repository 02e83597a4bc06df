package llm

import (
	"context"
	"fmt"
	"net/http"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)

	// ModelName reports the default model, surfaced in chat replies
	ModelName() string
}

// Usage is the token accounting a backend reports for one call
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Completion is an answer together with its usage
type Completion struct {
	Text  string
	Usage Usage
}

// UsageReporter is implemented by providers that return token counts
type UsageReporter interface {
	ChatWithUsage(ctx context.Context, history []Message, options ...Option) (*Completion, error)
}

// Complete calls ChatWithUsage when p supports it, and Chat with zero usage otherwise
func Complete(ctx context.Context, p LLMProvider, history []Message, options ...Option) (*Completion, error) {
	if ur, ok := p.(UsageReporter); ok {
		return ur.ChatWithUsage(ctx, history, options...)
	}
	text, err := p.Chat(ctx, history, options...)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: text}, nil
}

// StatusError is a non-200 answer from a generation backend
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d, body: %s", e.Provider, e.Code, e.Body)
}

// Temporary reports whether retrying may succeed
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}
