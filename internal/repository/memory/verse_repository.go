package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/bible"
)

type chapterKey struct {
	translation string
	book        bible.BookCode
	chapter     int
}

// VerseRepository keeps the corpus in maps: by key for lookups and by chapter for range scans.
type VerseRepository struct {
	mu       sync.RWMutex
	byKey    map[string]bible.Verse
	chapters map[chapterKey][]bible.Verse // sorted by verse number
}

func NewVerseRepository() *VerseRepository {
	return &VerseRepository{
		byKey:    make(map[string]bible.Verse),
		chapters: make(map[chapterKey][]bible.Verse),
	}
}

func (r *VerseRepository) InsertBulk(ctx context.Context, verses []bible.Verse) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := make(map[chapterKey]bool)
	for _, v := range verses {
		if !v.ID.Book.Valid() || v.ID.Chapter < 1 || v.ID.Verse < 1 || v.ID.Translation == "" {
			return fmt.Errorf("invalid verse identity %+v", v.ID)
		}
		key := v.ID.Key()
		ck := chapterKey{v.ID.Translation, v.ID.Book, v.ID.Chapter}
		if _, exists := r.byKey[key]; exists {
			// Replace in place; identities stay unique
			list := r.chapters[ck]
			for i := range list {
				if list[i].ID == v.ID {
					list[i] = v
				}
			}
		} else {
			r.chapters[ck] = append(r.chapters[ck], v)
			touched[ck] = true
		}
		r.byKey[key] = v
	}

	for ck := range touched {
		list := r.chapters[ck]
		sort.Slice(list, func(i, j int) bool { return list[i].ID.Verse < list[j].ID.Verse })
	}
	return nil
}

func (r *VerseRepository) FindByID(ctx context.Context, id bible.VerseID) (*bible.Verse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byKey[id.Key()]
	if !ok {
		return nil, contract.ErrVerseNotFound
	}
	return &v, nil
}

func (r *VerseRepository) FindByKeys(ctx context.Context, keys []string) (map[string]bible.Verse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bible.Verse, len(keys))
	for _, k := range keys {
		if v, ok := r.byKey[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (r *VerseRepository) FindRange(ctx context.Context, q contract.ChapterRange) ([]bible.Verse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.chapters[chapterKey{q.Translation, q.Book, q.Chapter}]
	out := make([]bible.Verse, 0)
	for _, v := range list {
		if v.ID.Verse < q.From {
			continue
		}
		if q.To > 0 && v.ID.Verse > q.To {
			break
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *VerseRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byKey)), nil
}

func (r *VerseRepository) Translations(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for ck := range r.chapters {
		seen[ck.translation] = true
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

var _ contract.VerseRepository = (*VerseRepository)(nil)
