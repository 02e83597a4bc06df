package dto

import "time"

type PreferencesDTO struct {
	TranslationKR string `json:"translation_kr,omitempty" validate:"translation_kr"`
	TranslationEN string `json:"translation_en,omitempty" validate:"translation_en"`
	Denomination  string `json:"denomination,omitempty" validate:"denomination"`
}

type SendChatRequest struct {
	Message     string          `json:"message" validate:"required,max=2000"`
	SessionId   string          `json:"session_id,omitempty" validate:"max=64"`
	Preferences *PreferencesDTO `json:"preferences,omitempty"`
}

type SourceDTO struct {
	Reference   string  `json:"reference"`
	ReferenceKR string  `json:"reference_kr"`
	VerseKey    string  `json:"verse_key"`
	Translation string  `json:"translation"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
	Kind        string  `json:"kind"`
}

type UsageDTO struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// FetchedPassageDTO is remote translation text shown with its copyright notice
type FetchedPassageDTO struct {
	Reference   string `json:"reference"`
	Translation string `json:"translation"`
	Text        string `json:"text"`
	Copyright   string `json:"copyright"`
}

type SendChatResponse struct {
	Response   string              `json:"response"`
	SessionId  string              `json:"session_id"`
	Language   string              `json:"language"`
	Sources    []SourceDTO         `json:"sources"`
	Fetched    []FetchedPassageDTO `json:"fetched_passages,omitempty"`
	Mode       string              `json:"retrieval_mode"` // "grounded" | "ungrounded"
	Confidence float64             `json:"confidence"`
	Model      string              `json:"model"`
	Usage      *UsageDTO           `json:"usage,omitempty"` // omitted when the model reports no tokens
	Degraded   bool                `json:"degraded,omitempty"`
}

type ChatHistoryResponse struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	Mode      string      `json:"mode,omitempty"`
	Sources   []SourceDTO `json:"sources,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type SessionActionResponse struct {
	SessionId string `json:"session_id"`
	Status    string `json:"status"` // "cleared" | "deleted"
}
