package implementation

import (
	"context"
	"errors"

	"bibleai-be/internal/mapper"
	"bibleai-be/internal/model"
	"bibleai-be/internal/repository/contract"
	"bibleai-be/internal/repository/specification"
	"bibleai-be/pkg/bible"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VerseRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VerseMapper
}

func NewVerseRepository(db *gorm.DB) contract.VerseRepository {
	return &VerseRepositoryImpl{
		db:     db,
		mapper: mapper.NewVerseMapper(),
	}
}

func (r *VerseRepositoryImpl) InsertBulk(ctx context.Context, verses []bible.Verse) error {
	if len(verses) == 0 {
		return nil
	}
	models := r.mapper.ToModels(verses)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(models, 500).Error
}

func (r *VerseRepositoryImpl) FindByID(ctx context.Context, id bible.VerseID) (*bible.Verse, error) {
	var m model.Verse
	query := specification.Apply(r.db.WithContext(ctx), specification.ByVerseKey{Key: id.Key()})
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, contract.ErrVerseNotFound
		}
		return nil, err
	}
	v := r.mapper.ToDomain(&m)
	return &v, nil
}

func (r *VerseRepositoryImpl) FindByKeys(ctx context.Context, keys []string) (map[string]bible.Verse, error) {
	out := make(map[string]bible.Verse, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var models []*model.Verse
	query := specification.Apply(r.db.WithContext(ctx), specification.ByVerseKeys{Keys: keys})
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		out[m.VerseKey] = r.mapper.ToDomain(m)
	}
	return out, nil
}

func (r *VerseRepositoryImpl) FindRange(ctx context.Context, q contract.ChapterRange) ([]bible.Verse, error) {
	query := specification.Apply(r.db.WithContext(ctx),
		specification.InChapterRange{Range: q},
		specification.OrderBy{Field: "verse"},
	)

	var models []*model.Verse
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]bible.Verse, len(models))
	for i, m := range models {
		out[i] = r.mapper.ToDomain(m)
	}
	return out, nil
}

func (r *VerseRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Verse{}).Count(&count).Error
	return count, err
}

func (r *VerseRepositoryImpl) Translations(ctx context.Context) ([]string, error) {
	var out []string
	err := r.db.WithContext(ctx).Model(&model.Verse{}).
		Distinct("translation").Order("translation").Pluck("translation", &out).Error
	return out, err
}
