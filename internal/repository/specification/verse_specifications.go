package specification

import (
	"bibleai-be/internal/repository/contract"

	"gorm.io/gorm"
)

// ByVerseKey matches one verse key ("KJV:JHN.3.16")
type ByVerseKey struct {
	Key string
}

func (s ByVerseKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("verse_key = ?", s.Key)
}

// ByVerseKeys matches any of the keys
type ByVerseKeys struct {
	Keys []string
}

func (s ByVerseKeys) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("verse_key IN ?", s.Keys)
}

// ByTranslation restricts to one translation; empty matches all
type ByTranslation struct {
	Code string
}

func (s ByTranslation) Apply(db *gorm.DB) *gorm.DB {
	if s.Code == "" {
		return db
	}
	return db.Where("translation = ?", s.Code)
}

// InChapterRange selects verses From..To of one chapter. To == 0 reads to the end.
type InChapterRange struct {
	Range contract.ChapterRange
}

func (s InChapterRange) Apply(db *gorm.DB) *gorm.DB {
	q := s.Range
	db = db.Where("translation = ? AND book = ? AND chapter = ?", q.Translation, string(q.Book), q.Chapter)
	if q.From > 1 {
		db = db.Where("verse >= ?", q.From)
	}
	if q.To > 0 {
		db = db.Where("verse <= ?", q.To)
	}
	return db
}
