package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDimension matches the default multilingual embedding model (bge-m3)
const EmbeddingDimension = 1024

type Verse struct {
	VerseKey    string    `gorm:"type:varchar(64);primaryKey"`
	Translation string    `gorm:"type:varchar(16);not null;index:idx_verse_chapter,priority:1"`
	Book        string    `gorm:"type:varchar(8);not null;index:idx_verse_chapter,priority:2"`
	Chapter     int       `gorm:"not null;index:idx_verse_chapter,priority:3"`
	Verse       int       `gorm:"not null;index:idx_verse_chapter,priority:4"`
	Text        string    `gorm:"type:text;not null"`
	Language    string    `gorm:"type:varchar(4);not null"`
	BookName    string    `gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (Verse) TableName() string {
	return "verses"
}

type VerseEmbedding struct {
	VerseKey       string          `gorm:"type:varchar(64);primaryKey"`
	Translation    string          `gorm:"type:varchar(16);not null;index"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(1024)"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (VerseEmbedding) TableName() string {
	return "verse_embeddings"
}
