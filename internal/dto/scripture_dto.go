package dto

type SearchRequest struct {
	Query       string `json:"query" validate:"required,max=500"`
	Limit       int    `json:"n_results" validate:"omitempty,min=1,max=20"`
	Translation string `json:"translation,omitempty" validate:"omitempty,max=16"`
}

type SearchResult struct {
	Reference   string  `json:"reference"`
	ReferenceKR string  `json:"reference_kr"`
	VerseKey    string  `json:"verse_key"`
	Translation string  `json:"translation"`
	Text        string  `json:"text"`
	Score       float64 `json:"score"`
	Kind        string  `json:"kind"`
}

type SearchResponse struct {
	Query       string         `json:"query"`
	Language    string         `json:"language"`
	Translation string         `json:"translation"`
	Mode        string         `json:"retrieval_mode"`
	Confidence  float64        `json:"confidence"`
	Results     []SearchResult `json:"results"`
}

// ChapterRequest names a chapter either by book and number or by a reference such as "요한복음 3장"
type ChapterRequest struct {
	Reference   string `json:"reference,omitempty" validate:"required_without=Book,max=64"`
	Book        string `json:"book,omitempty" validate:"required_without=Reference,max=32"`
	Chapter     int    `json:"chapter,omitempty" validate:"omitempty,min=1,max=150"`
	Translation string `json:"translation,omitempty" validate:"omitempty,max=16"`
}

type ChapterVerse struct {
	Verse int    `json:"verse"`
	Text  string `json:"text"`
}

type ChapterResponse struct {
	Book        string         `json:"book"`
	BookName    string         `json:"book_name"`
	BookNameKR  string         `json:"book_name_kr"`
	Chapter     int            `json:"chapter"`
	Translation string         `json:"translation"`
	Verses      []ChapterVerse `json:"verses"`
}

type HealthResponse struct {
	Status        string   `json:"status"`
	Verses        int64    `json:"verse_count"`
	Translations  []string `json:"translations"`
	VectorBackend string   `json:"vector_backend,omitempty"`
	VectorCount   int      `json:"vector_count"`
	Sessions      int      `json:"active_sessions"`
	Model         string   `json:"model"`
	Threshold     float64  `json:"confidence_threshold"`
	ESVEnabled    bool     `json:"esv_enabled"`
}
