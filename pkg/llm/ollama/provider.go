package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"bibleai-be/pkg/llm"
)

// defaultTemperature keeps answers close to the quoted passages
const defaultTemperature = 0.3

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var (
	_ llm.LLMProvider   = &OllamaProvider{}
	_ llm.UsageReporter = &OllamaProvider{}
)

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   modelName,
		// Deadlines come from the caller's context
		Client: &http.Client{},
	}
}

func (o *OllamaProvider) ModelName() string {
	return o.Model
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count,omitempty"`
	EvalCount       int           `json:"eval_count,omitempty"`
}

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	out, err := o.ChatWithUsage(ctx, history, opts...)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// ChatWithUsage also reports prompt_eval_count and eval_count as token usage
func (o *OllamaProvider) ChatWithUsage(ctx context.Context, history []llm.Message, opts ...llm.Option) (*llm.Completion, error) {
	options := &llm.Options{Temperature: defaultTemperature, Model: o.Model}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages[i] = ollamaMessage{Role: role, Content: msg.Content}
	}

	var out ollamaChatResponse
	err := llm.PostJSON(ctx, o.Client, "ollama", o.BaseURL+"/api/chat", nil, ollamaChatRequest{
		Model:    options.Model,
		Messages: messages,
		Options:  &ollamaOptions{Temperature: options.Temperature, NumPredict: options.MaxTokens},
	}, &out)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(out.Message.Content) == "" {
		return nil, fmt.Errorf("ollama returned an empty message")
	}
	return &llm.Completion{
		Text:  out.Message.Content,
		Usage: llm.Usage{InputTokens: out.PromptEvalCount, OutputTokens: out.EvalCount},
	}, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return o.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}
