package store

import (
	"strings"
	"time"

	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/rag"
)

// Role of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Retrieval modes recorded on a turn
const (
	ModeGrounded   = "grounded"
	ModeUngrounded = "ungrounded"
)

// Source is the citation metadata attached to an assistant turn
type Source struct {
	Reference   string  `json:"reference"`    // "John 3:16"
	ReferenceKR string  `json:"reference_kr"` // "요한복음 3:16"
	VerseKey    string  `json:"verse_key"`    // "KJV:JHN.3.16"
	Translation string  `json:"translation"`
	Score       float64 `json:"score"`
	Kind        string  `json:"kind"` // "exact" | "semantic"
	Text        string  `json:"text"`
}

// Turn is one immutable entry of the conversation history
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session represents one conversation's memory
type Session struct {
	ID           string      `json:"id"`
	Turns        []Turn      `json:"turns"`
	Preferences  Preferences `json:"preferences"`
	CreatedAt    time.Time   `json:"created_at"`
	LastActiveAt time.Time   `json:"last_active_at"`
}

// Clone returns a deep copy safe to hand out of the session lock
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		if t.Sources != nil {
			t.Sources = append([]Source(nil), t.Sources...)
		}
		out.Turns[i] = t
	}
	return &out
}

// DenominationNeutral is the default when no tradition is selected
const DenominationNeutral = "neutral"

var denominations = map[string]bool{
	DenominationNeutral: true,
	"presbyterian":      true,
	"reformed":          true,
	"baptist":           true,
	"methodist":         true,
	"holiness":          true,
	"pentecostal":       true,
	"lutheran":          true,
	"anglican":          true,
	"evangelical":       true,
}

// Preferences holds per-session translation and tradition choices
type Preferences struct {
	TranslationKR string `json:"translation_kr,omitempty"`
	TranslationEN string `json:"translation_en,omitempty"`
	Denomination  string `json:"denomination,omitempty"`
}

// IsZero reports whether no preference was given
func (p Preferences) IsZero() bool {
	return p == Preferences{}
}

// IsDenomination reports whether d is a supported tradition
func IsDenomination(d string) bool {
	return denominations[strings.ToLower(strings.TrimSpace(d))]
}

// Validate rejects translations of the wrong language and unknown denominations
func (p Preferences) Validate() error {
	if p.TranslationKR != "" {
		t, ok := bible.LookupTranslation(p.TranslationKR)
		if !ok || t.Language != bible.Korean {
			return &rag.PreferenceError{Field: "translation_kr", Value: p.TranslationKR}
		}
	}
	if p.TranslationEN != "" {
		t, ok := bible.LookupTranslation(p.TranslationEN)
		if !ok || t.Language != bible.English {
			return &rag.PreferenceError{Field: "translation_en", Value: p.TranslationEN}
		}
	}
	if p.Denomination != "" && !IsDenomination(p.Denomination) {
		return &rag.PreferenceError{Field: "denomination", Value: p.Denomination}
	}
	return nil
}

// Normalize maps aliases to translation codes ("개역한글" -> "KRV") and lowercases the denomination.
// Call after Validate.
func (p Preferences) Normalize() Preferences {
	if t, ok := bible.LookupTranslation(p.TranslationKR); ok {
		p.TranslationKR = t.Code
	}
	if t, ok := bible.LookupTranslation(p.TranslationEN); ok {
		p.TranslationEN = t.Code
	}
	p.Denomination = strings.ToLower(strings.TrimSpace(p.Denomination))
	return p
}

// TranslationFor picks the translation cited for lang. Remote translations are
// searched through bible.SearchTranslation.
func (p Preferences) TranslationFor(lang bible.Language) string {
	if lang == bible.Korean && p.TranslationKR != "" {
		if t, ok := bible.LookupTranslation(p.TranslationKR); ok {
			return t.Code
		}
	}
	if lang == bible.English && p.TranslationEN != "" {
		if t, ok := bible.LookupTranslation(p.TranslationEN); ok {
			return t.Code
		}
	}
	return bible.DefaultTranslation(lang)
}
