package implementation

import (
	"context"

	"bibleai-be/internal/model"
	"bibleai-be/internal/repository/specification"
	"bibleai-be/pkg/vectorindex"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VerseEmbeddingRepositoryImpl is the pgvector backend of vectorindex.VectorIndex
type VerseEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewVerseEmbeddingRepository(db *gorm.DB) *VerseEmbeddingRepositoryImpl {
	return &VerseEmbeddingRepositoryImpl{db: db}
}

func (r *VerseEmbeddingRepositoryImpl) Name() string { return "pgvector" }

func (r *VerseEmbeddingRepositoryImpl) Upsert(ctx context.Context, points []vectorindex.Point) error {
	if len(points) == 0 {
		return nil
	}
	models := make([]*model.VerseEmbedding, len(points))
	for i, p := range points {
		models[i] = &model.VerseEmbedding{
			VerseKey:       p.Key,
			Translation:    p.Translation,
			EmbeddingValue: pgvector.NewVector(p.Vector),
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(models, 200).Error
}

// Search computes cosine similarity as 1 - cosine distance
func (r *VerseEmbeddingRepositoryImpl) Search(ctx context.Context, vector []float32, filter vectorindex.Filter, limit int) ([]vectorindex.Hit, error) {
	if limit <= 0 {
		limit = 8
	}

	type result struct {
		VerseKey   string
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(vector)
	query := r.db.WithContext(ctx).
		Table("verse_embeddings").
		Select("verse_key, 1 - (embedding_value <=> ?) as similarity", queryVector)

	err := specification.Apply(query,
		specification.ByTranslation{Code: filter.Translation},
		specification.Limit{N: limit},
	).
		Order(gorm.Expr("embedding_value <=> ?", queryVector)).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	hits := make([]vectorindex.Hit, len(results))
	for i, res := range results {
		hits[i] = vectorindex.Hit{Key: res.VerseKey, Score: res.Similarity}
	}
	return hits, nil
}

func (r *VerseEmbeddingRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.VerseEmbedding{}).Count(&count).Error
	return int(count), err
}

func (r *VerseEmbeddingRepositoryImpl) Close() error { return nil }

var _ vectorindex.VectorIndex = (*VerseEmbeddingRepositoryImpl)(nil)
