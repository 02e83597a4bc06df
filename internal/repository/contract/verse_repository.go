package contract

import (
	"context"
	"errors"

	"bibleai-be/pkg/bible"
)

// ErrVerseNotFound is returned by FindByID for an identity the corpus does not hold
var ErrVerseNotFound = errors.New("verse not found")

// ChapterRange selects verses From..To of one chapter; To == 0 reads to the end of the chapter
type ChapterRange struct {
	Translation string
	Book        bible.BookCode
	Chapter     int
	From        int
	To          int
}

// VerseRepository is the read-mostly Verse Store. Verses are written once by the
// corpus loader and never mutated, so implementations need no locking at query time.
type VerseRepository interface {
	InsertBulk(ctx context.Context, verses []bible.Verse) error
	FindByID(ctx context.Context, id bible.VerseID) (*bible.Verse, error)
	// FindByKeys resolves verse keys ("KJV:JHN.3.16"); unknown keys are absent from the map
	FindByKeys(ctx context.Context, keys []string) (map[string]bible.Verse, error)
	// FindRange returns the verses of the range in verse order, clamped to the chapter
	FindRange(ctx context.Context, r ChapterRange) ([]bible.Verse, error)
	Count(ctx context.Context) (int64, error)
	Translations(ctx context.Context) ([]string, error)
}
