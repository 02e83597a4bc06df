package huggingface

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"bibleai-be/pkg/llm"
)

const (
	defaultBaseURL   = "https://router.huggingface.co/v1"
	defaultMaxTokens = 2048
)

// HuggingFaceProvider talks to any OpenAI compatible /chat/completions router
type HuggingFaceProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

var (
	_ llm.LLMProvider   = &HuggingFaceProvider{}
	_ llm.UsageReporter = &HuggingFaceProvider{}
)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewHuggingFaceProvider(apiKey, baseURL, model string) *HuggingFaceProvider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &HuggingFaceProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

func (p *HuggingFaceProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	out, err := p.ChatWithUsage(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// ChatWithUsage also reports the OpenAI style usage block when the router sends one
func (p *HuggingFaceProvider) ChatWithUsage(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.Completion, error) {
	opts := &llm.Options{Model: p.model, MaxTokens: defaultMaxTokens}
	for _, o := range options {
		o(opts)
	}

	header := http.Header{}
	if p.apiKey != "" {
		header.Set("Authorization", "Bearer "+p.apiKey)
	}

	var out chatResponse
	err := llm.PostJSON(ctx, p.client, "huggingface", p.baseURL+"/chat/completions", header, chatRequest{
		Model:       opts.Model,
		Messages:    history,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}, &out)
	if err != nil {
		return nil, err
	}

	if out.Error != nil {
		return nil, fmt.Errorf("huggingface api returned error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("empty choices from huggingface api")
	}

	completion := &llm.Completion{Text: out.Choices[0].Message.Content}
	if out.Usage != nil {
		completion.Usage = llm.Usage{InputTokens: out.Usage.PromptTokens, OutputTokens: out.Usage.CompletionTokens}
	}
	return completion, nil
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func (p *HuggingFaceProvider) ModelName() string {
	return p.model
}
