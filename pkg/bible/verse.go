package bible

import (
	"fmt"
	"strconv"
	"strings"
)

// VerseID is the canonical identity of a verse in one translation.
type VerseID struct {
	Book        BookCode
	Chapter     int
	Verse       int
	Translation string
}

// Key renders the identity as "KJV:JHN.3.16". The vector index stores this key as payload.
func (id VerseID) Key() string {
	return fmt.Sprintf("%s:%s.%d.%d", id.Translation, id.Book, id.Chapter, id.Verse)
}

// Ref renders the translation-independent reference ("JHN.3.16").
func (id VerseID) Ref() string {
	return fmt.Sprintf("%s.%d.%d", id.Book, id.Chapter, id.Verse)
}

// Display renders a human reference such as "John 3:16" or "요한복음 3:16".
func (id VerseID) Display(lang Language) string {
	return fmt.Sprintf("%s %d:%d", id.Book.DisplayName(lang), id.Chapter, id.Verse)
}

// Less orders identities canonically: book order, chapter, verse, then translation.
func (id VerseID) Less(other VerseID) bool {
	if a, b := id.Book.Order(), other.Book.Order(); a != b {
		return a < b
	}
	if id.Chapter != other.Chapter {
		return id.Chapter < other.Chapter
	}
	if id.Verse != other.Verse {
		return id.Verse < other.Verse
	}
	return id.Translation < other.Translation
}

// ParseVerseKey is the inverse of VerseID.Key.
func ParseVerseKey(key string) (VerseID, error) {
	translation, ref, ok := strings.Cut(key, ":")
	if !ok || translation == "" {
		return VerseID{}, fmt.Errorf("verse key %q: missing translation", key)
	}
	parts := strings.Split(ref, ".")
	if len(parts) != 3 {
		return VerseID{}, fmt.Errorf("verse key %q: expected BOOK.CHAPTER.VERSE", key)
	}
	book := BookCode(parts[0])
	if !book.Valid() {
		return VerseID{}, fmt.Errorf("verse key %q: unknown book %q", key, parts[0])
	}
	chapter, err := strconv.Atoi(parts[1])
	if err != nil || chapter < 1 {
		return VerseID{}, fmt.Errorf("verse key %q: invalid chapter", key)
	}
	verse, err := strconv.Atoi(parts[2])
	if err != nil || verse < 1 {
		return VerseID{}, fmt.Errorf("verse key %q: invalid verse", key)
	}
	return VerseID{Book: book, Chapter: chapter, Verse: verse, Translation: translation}, nil
}

// Verse is one immutable corpus record.
type Verse struct {
	ID       VerseID
	Text     string
	Language Language
	BookName string // localized display name
}

// Reference is the localized display reference of the verse.
func (v Verse) Reference() string {
	return fmt.Sprintf("%s %d:%d", v.BookName, v.ID.Chapter, v.ID.Verse)
}
