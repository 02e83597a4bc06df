package service

import (
	"context"
	"strings"

	"bibleai-be/internal/dto"
	"bibleai-be/internal/pkg/logger"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/llm"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/rag/executor"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/store"
)

// Engine is the part of executor.Engine the services use
type Engine interface {
	Chat(ctx context.Context, req executor.ChatRequest) (*executor.ChatResult, error)
	ClearSession(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	History(ctx context.Context, id string) ([]store.Turn, error)
	Search(ctx context.Context, query, translation string, topK int) (*executor.SearchResult, error)
	Chapter(ctx context.Context, reference, translation string) (*executor.ChapterResult, error)
	ReadChapter(ctx context.Context, book bible.BookCode, chapter int, translation string) (*executor.ChapterResult, error)
	Health(ctx context.Context) executor.HealthStatus
}

type IChatService interface {
	SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	GetChatHistory(ctx context.Context, sessionId string) ([]*dto.ChatHistoryResponse, error)
	ClearSession(ctx context.Context, sessionId string) (*dto.SessionActionResponse, error)
	DeleteSession(ctx context.Context, sessionId string) (*dto.SessionActionResponse, error)
}

type chatService struct {
	engine Engine
	logger logger.ILogger
}

func NewChatService(engine Engine, logger logger.ILogger) IChatService {
	return &chatService{engine: engine, logger: logger}
}

func (s *chatService) SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	req := executor.ChatRequest{
		Message:   request.Message,
		SessionID: strings.TrimSpace(request.SessionId),
	}
	if request.Preferences != nil {
		req.Preferences = &store.Preferences{
			TranslationKR: request.Preferences.TranslationKR,
			TranslationEN: request.Preferences.TranslationEN,
			Denomination:  request.Preferences.Denomination,
		}
	}

	res, err := s.engine.Chat(ctx, req)
	if err != nil {
		details := map[string]interface{}{"session_id": req.SessionID, "error": err.Error()}
		if rag.IsUnavailable(err) || rag.IsGenerationFailure(err) {
			s.logger.Error("CHAT", "Dependency failure", details)
		} else {
			s.logger.Warn("CHAT", "Chat rejected", details)
		}
		return nil, err
	}

	s.logger.Info("CHAT", "Turn recorded", map[string]interface{}{
		"session_id": res.SessionID,
		"mode":       string(res.Mode),
		"language":   string(res.Language),
		"sources":    len(res.Sources),
		"confidence": res.Confidence,
		"degraded":   res.Degraded,
	})

	out := &dto.SendChatResponse{
		Response:   res.Text,
		SessionId:  res.SessionID,
		Language:   string(res.Language),
		Sources:    toSourceDTOs(res.Sources),
		Fetched:    toFetchedDTOs(res.Fetched),
		Mode:       string(res.Mode),
		Confidence: res.Confidence,
		Model:      res.Model,
		Degraded:   res.Degraded,
	}
	if res.Usage != (llm.Usage{}) {
		out.Usage = &dto.UsageDTO{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens}
	}
	return out, nil
}

func toFetchedDTOs(fetched []prompt.Fetched) []dto.FetchedPassageDTO {
	if len(fetched) == 0 {
		return nil
	}
	out := make([]dto.FetchedPassageDTO, len(fetched))
	for i, f := range fetched {
		out[i] = dto.FetchedPassageDTO{Reference: f.Reference, Translation: f.Translation, Text: f.Text, Copyright: f.Notice}
	}
	return out
}

func (s *chatService) GetChatHistory(ctx context.Context, sessionId string) ([]*dto.ChatHistoryResponse, error) {
	turns, err := s.engine.History(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.ChatHistoryResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, &dto.ChatHistoryResponse{
			Role:      string(t.Role),
			Content:   t.Content,
			Mode:      t.Mode,
			Sources:   toSourceDTOs(t.Sources),
			CreatedAt: t.Timestamp,
		})
	}
	return out, nil
}

func (s *chatService) ClearSession(ctx context.Context, sessionId string) (*dto.SessionActionResponse, error) {
	if err := s.engine.ClearSession(ctx, sessionId); err != nil {
		return nil, err
	}
	s.logger.Info("CHAT", "Session cleared", map[string]interface{}{"session_id": sessionId})
	return &dto.SessionActionResponse{SessionId: sessionId, Status: "cleared"}, nil
}

func (s *chatService) DeleteSession(ctx context.Context, sessionId string) (*dto.SessionActionResponse, error) {
	if err := s.engine.DeleteSession(ctx, sessionId); err != nil {
		return nil, err
	}
	s.logger.Info("CHAT", "Session deleted", map[string]interface{}{"session_id": sessionId})
	return &dto.SessionActionResponse{SessionId: sessionId, Status: "deleted"}, nil
}

func toSourceDTOs(sources []store.Source) []dto.SourceDTO {
	out := make([]dto.SourceDTO, 0, len(sources))
	for _, src := range sources {
		out = append(out, dto.SourceDTO{
			Reference:   src.Reference,
			ReferenceKR: src.ReferenceKR,
			VerseKey:    src.VerseKey,
			Translation: src.Translation,
			Text:        src.Text,
			Score:       src.Score,
			Kind:        src.Kind,
		})
	}
	return out
}
