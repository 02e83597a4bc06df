package corpus

import (
	"context"
	"fmt"
	"log"
	"os"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/embedding"
	"bibleai-be/pkg/vectorindex"

	"golang.org/x/sync/errgroup"
)

// embedWorkers bounds concurrent embedding calls during ingestion
const embedWorkers = 4

// Stats summarizes one load
type Stats struct {
	Translations map[string]int
	Verses       int
	Embedded     int
	Skipped      int
}

// Loader ingests translation files into the Verse Store and, optionally, the vector index
type Loader struct {
	verses   contract.VerseRepository
	embedder embedding.EmbeddingProvider // nil disables embedding
	vectors  vectorindex.VectorIndex
	logger   *log.Logger
}

func NewLoader(verses contract.VerseRepository, embedder embedding.EmbeddingProvider, vectors vectorindex.VectorIndex, logger *log.Logger) *Loader {
	return &Loader{verses: verses, embedder: embedder, vectors: vectors, logger: logger}
}

// Load reads every manifest source, inserts the verses and embeds them when the manifest asks for it
func (l *Loader) Load(ctx context.Context, m *Manifest) (*Stats, error) {
	stats := &Stats{Translations: make(map[string]int)}

	for _, src := range m.Sources {
		path := m.Path(src)
		data, err := os.ReadFile(path)
		if err != nil {
			return stats, fmt.Errorf("%s: failed to read %s: %w", src.Translation, path, err)
		}

		parsed, err := Parse(data, src.Translation, src.Format)
		if err != nil {
			return stats, err
		}
		if len(parsed.Skipped) > 0 {
			l.logf("[CORPUS] %s: skipped %d unresolved entries (first: %q)", src.Translation, len(parsed.Skipped), parsed.Skipped[0])
		}

		if err := l.verses.InsertBulk(ctx, parsed.Verses); err != nil {
			return stats, fmt.Errorf("%s: failed to store verses: %w", src.Translation, err)
		}
		stats.Translations[src.Translation] += len(parsed.Verses)
		stats.Verses += len(parsed.Verses)
		stats.Skipped += len(parsed.Skipped)
		l.logf("[CORPUS] %s: %d verses stored", src.Translation, len(parsed.Verses))

		if m.Embed {
			n, err := l.Embed(ctx, parsed.Verses, m.BatchSize)
			stats.Embedded += n
			if err != nil {
				return stats, fmt.Errorf("%s: %w", src.Translation, err)
			}
		}
	}
	return stats, nil
}

// Embed writes verse vectors to the index in batches. It returns how many verses were indexed.
func (l *Loader) Embed(ctx context.Context, verses []bible.Verse, batchSize int) (int, error) {
	if l.embedder == nil || l.vectors == nil {
		return 0, fmt.Errorf("embedding requested but no embedder or vector index is configured")
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	total := 0
	for start := 0; start < len(verses); start += batchSize {
		end := min(start+batchSize, len(verses))
		batch := verses[start:end]

		points := make([]vectorindex.Point, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(embedWorkers)
		for i, v := range batch {
			g.Go(func() error {
				res, err := l.embedder.Generate(gctx, SearchText(v), embedding.TaskDocument)
				if err != nil {
					return fmt.Errorf("failed to embed %s: %w", v.ID.Key(), err)
				}
				points[i] = vectorindex.Point{Key: v.ID.Key(), Translation: v.ID.Translation, Vector: res.Embedding.Values}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}

		if err := l.vectors.Upsert(ctx, points); err != nil {
			return total, fmt.Errorf("%s upsert failed: %w", l.vectors.Name(), err)
		}
		total += len(points)
		l.logf("[CORPUS] Embedded %d/%d", total, len(verses))
	}
	return total, nil
}

func (l *Loader) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}
