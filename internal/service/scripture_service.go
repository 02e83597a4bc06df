package service

import (
	"context"
	"fmt"

	"bibleai-be/internal/dto"
	"bibleai-be/internal/pkg/logger"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/rag/executor"
)

type IScriptureService interface {
	Search(ctx context.Context, request *dto.SearchRequest) (*dto.SearchResponse, error)
	Chapter(ctx context.Context, request *dto.ChapterRequest) (*dto.ChapterResponse, error)
	Health(ctx context.Context) *dto.HealthResponse
}

type scriptureService struct {
	engine Engine
	logger logger.ILogger
}

func NewScriptureService(engine Engine, logger logger.ILogger) IScriptureService {
	return &scriptureService{engine: engine, logger: logger}
}

func (s *scriptureService) Search(ctx context.Context, request *dto.SearchRequest) (*dto.SearchResponse, error) {
	limit := request.Limit
	if limit == 0 {
		limit = 5
	}

	res, err := s.engine.Search(ctx, request.Query, request.Translation, limit)
	if err != nil {
		s.logger.Warn("SEARCH", "Search failed", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	results := make([]dto.SearchResult, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		src := c.Source()
		results = append(results, dto.SearchResult{
			Reference:   src.Reference,
			ReferenceKR: src.ReferenceKR,
			VerseKey:    src.VerseKey,
			Translation: src.Translation,
			Text:        src.Text,
			Score:       src.Score,
			Kind:        src.Kind,
		})
	}
	return &dto.SearchResponse{
		Query:       res.Query,
		Language:    string(res.Language),
		Translation: res.Translation,
		Mode:        string(res.Mode),
		Confidence:  res.Confidence,
		Results:     results,
	}, nil
}

func (s *scriptureService) Chapter(ctx context.Context, request *dto.ChapterRequest) (*dto.ChapterResponse, error) {
	var res *executor.ChapterResult
	var err error
	if request.Book != "" {
		code, ok := bible.LookupBook(request.Book)
		if !ok || request.Chapter < 1 {
			return nil, fmt.Errorf("unknown chapter %q %d: %w", request.Book, request.Chapter, rag.ErrParseAmbiguous)
		}
		translation := request.Translation
		if translation == "" {
			translation = bible.DefaultTranslation(bible.DetectLanguage(request.Book))
		}
		res, err = s.engine.ReadChapter(ctx, code, request.Chapter, translation)
	} else {
		res, err = s.engine.Chapter(ctx, request.Reference, request.Translation)
	}
	if err != nil {
		return nil, err
	}

	verses := make([]dto.ChapterVerse, len(res.Verses))
	for i, v := range res.Verses {
		verses[i] = dto.ChapterVerse{Verse: v.ID.Verse, Text: v.Text}
	}
	return &dto.ChapterResponse{
		Book:        string(res.Book),
		BookName:    res.BookName,
		BookNameKR:  res.BookNameKR,
		Chapter:     res.Chapter,
		Translation: res.Translation,
		Verses:      verses,
	}, nil
}

func (s *scriptureService) Health(ctx context.Context) *dto.HealthResponse {
	h := s.engine.Health(ctx)
	if h.Status != "ok" {
		s.logger.Warn("HEALTH", "Engine degraded", map[string]interface{}{"verses": h.Verses, "vectors": h.VectorCount})
	}
	return &dto.HealthResponse{
		Status:        h.Status,
		Verses:        h.Verses,
		Translations:  h.Translations,
		VectorBackend: h.VectorBackend,
		VectorCount:   h.VectorCount,
		Sessions:      h.Sessions,
		Model:         h.Model,
		Threshold:     h.Threshold,
		ESVEnabled:    h.ESVEnabled,
	}
}
