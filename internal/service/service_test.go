package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bibleai-be/internal/dto"
	"bibleai-be/internal/pkg/logger"
	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/events"
	"bibleai-be/pkg/llm"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/rag/executor"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	chatReq    executor.ChatRequest
	chatErr    error
	searchTopK int
	chapterRef string
	readBook   bible.BookCode
	readTrans  string
	cleared    string
	deleted    string
	turns      []store.Turn
	usage      llm.Usage
	fetched    []prompt.Fetched
}

func (f *fakeEngine) Chat(ctx context.Context, req executor.ChatRequest) (*executor.ChatResult, error) {
	f.chatReq = req
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return &executor.ChatResult{
		Text:      "For God so loved the world [Bible, John 3:16, KJV]",
		SessionID: "s1",
		Sources: []store.Source{{
			Reference: "John 3:16", ReferenceKR: "요한복음 3:16", VerseKey: "KJV:JHN.3.16",
			Translation: "KJV", Score: 1, Kind: "exact", Text: "For God so loved the world",
		}},
		Mode:       router.ModeGrounded,
		Language:   bible.English,
		Model:      "qwen2.5",
		Confidence: 1,
		Usage:      f.usage,
		Fetched:    f.fetched,
	}, nil
}

func (f *fakeEngine) ClearSession(ctx context.Context, id string) error {
	f.cleared = id
	return nil
}

func (f *fakeEngine) DeleteSession(ctx context.Context, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeEngine) History(ctx context.Context, id string) ([]store.Turn, error) {
	return f.turns, nil
}

func (f *fakeEngine) Search(ctx context.Context, query, translation string, topK int) (*executor.SearchResult, error) {
	f.searchTopK = topK
	return &executor.SearchResult{
		Query:       query,
		Language:    bible.English,
		Translation: "KJV",
		Candidates: []store.Candidate{{
			Verse: bible.Verse{ID: bible.VerseID{Book: "PHP", Chapter: 4, Verse: 6, Translation: "KJV"}, Text: "Be careful for nothing"},
			Score: 0.71,
			Kind:  store.MatchSemantic,
		}},
		Confidence: 0.71,
		Mode:       router.ModeGrounded,
	}, nil
}

func chapterResult(book bible.BookCode, translation string) *executor.ChapterResult {
	return &executor.ChapterResult{
		Book: book, BookName: book.DisplayName(bible.English), BookNameKR: book.DisplayName(bible.Korean),
		Chapter: 23, Translation: translation,
		Verses: []bible.Verse{{ID: bible.VerseID{Book: book, Chapter: 23, Verse: 1, Translation: translation}, Text: "The LORD is my shepherd"}},
	}
}

func (f *fakeEngine) Chapter(ctx context.Context, reference, translation string) (*executor.ChapterResult, error) {
	f.chapterRef = reference
	return chapterResult("PSA", "KRV"), nil
}

func (f *fakeEngine) ReadChapter(ctx context.Context, book bible.BookCode, chapter int, translation string) (*executor.ChapterResult, error) {
	f.readBook = book
	f.readTrans = translation
	return chapterResult(book, translation), nil
}

func (f *fakeEngine) Health(ctx context.Context) executor.HealthStatus {
	return executor.HealthStatus{Status: "degraded", Translations: []string{"KJV"}, Threshold: 0.25, ESVEnabled: true}
}

func TestChatService_SendChat(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewChatService(engine, logger.NewNop())

	res, err := svc.SendChat(context.Background(), &dto.SendChatRequest{
		Message:     "John 3:16",
		SessionId:   "  s1 ",
		Preferences: &dto.PreferencesDTO{TranslationKR: "개역한글", Denomination: "baptist"},
	})
	require.NoError(t, err)

	assert.Equal(t, "s1", engine.chatReq.SessionID)
	require.NotNil(t, engine.chatReq.Preferences)
	assert.Equal(t, "개역한글", engine.chatReq.Preferences.TranslationKR)

	assert.Equal(t, "grounded", res.Mode)
	assert.Equal(t, "en", res.Language)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "KJV:JHN.3.16", res.Sources[0].VerseKey)
	assert.Nil(t, res.Usage, "no usage block without token counts")
	assert.Nil(t, res.Fetched)
}

func TestChatService_SendChatFetched(t *testing.T) {
	svc := NewChatService(&fakeEngine{fetched: []prompt.Fetched{{
		Reference: "John 3:14-18", Translation: "ESV", Text: "[16] For God so loved the world", Notice: "Crossway",
	}}}, logger.NewNop())

	res, err := svc.SendChat(context.Background(), &dto.SendChatRequest{Message: "John 3:16"})
	require.NoError(t, err)
	require.Len(t, res.Fetched, 1)
	assert.Equal(t, dto.FetchedPassageDTO{
		Reference: "John 3:14-18", Translation: "ESV", Text: "[16] For God so loved the world", Copyright: "Crossway",
	}, res.Fetched[0])
}

func TestChatService_SendChatUsage(t *testing.T) {
	svc := NewChatService(&fakeEngine{usage: llm.Usage{InputTokens: 812, OutputTokens: 96}}, logger.NewNop())

	res, err := svc.SendChat(context.Background(), &dto.SendChatRequest{Message: "John 3:16"})
	require.NoError(t, err)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 812, res.Usage.InputTokens)
	assert.Equal(t, 96, res.Usage.OutputTokens)
}

func TestChatService_PassesErrorsThrough(t *testing.T) {
	unavailable := &rag.UnavailableError{Dependency: "vector index", Attempts: 3, Err: errors.New("down")}
	svc := NewChatService(&fakeEngine{chatErr: unavailable}, logger.NewNop())

	_, err := svc.SendChat(context.Background(), &dto.SendChatRequest{Message: "anxiety"})
	assert.True(t, rag.IsUnavailable(err))
}

func TestChatService_SessionActions(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	engine := &fakeEngine{turns: []store.Turn{
		{Role: store.RoleUser, Content: "hi", Timestamp: at},
		{Role: store.RoleAssistant, Content: "hello", Mode: store.ModeUngrounded, Timestamp: at},
	}}
	svc := NewChatService(engine, logger.NewNop())

	history, err := svc.GetChatHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, at, history[0].CreatedAt)

	cleared, err := svc.ClearSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "cleared", cleared.Status)
	assert.Equal(t, "s1", engine.cleared)

	deleted, err := svc.DeleteSession(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "deleted", deleted.Status)
	assert.Equal(t, "s2", engine.deleted)
}

func TestScriptureService(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewScriptureService(engine, logger.NewNop())
	ctx := context.Background()

	search, err := svc.Search(ctx, &dto.SearchRequest{Query: "anxiety"})
	require.NoError(t, err)
	assert.Equal(t, 5, engine.searchTopK)
	require.Len(t, search.Results, 1)
	assert.Equal(t, "Philippians 4:6", search.Results[0].Reference)
	assert.Equal(t, "semantic", search.Results[0].Kind)

	byBook, err := svc.Chapter(ctx, &dto.ChapterRequest{Book: "시편", Chapter: 23})
	require.NoError(t, err)
	assert.Equal(t, bible.BookCode("PSA"), engine.readBook)
	assert.Equal(t, "KRV", engine.readTrans)
	assert.Equal(t, "시편", byBook.BookNameKR)
	require.Len(t, byBook.Verses, 1)

	_, err = svc.Chapter(ctx, &dto.ChapterRequest{Book: "Hezekiah", Chapter: 1})
	assert.ErrorIs(t, err, rag.ErrParseAmbiguous)

	_, err = svc.Chapter(ctx, &dto.ChapterRequest{Reference: "시편 23편"})
	require.NoError(t, err)
	assert.Equal(t, "시편 23편", engine.chapterRef)

	health := svc.Health(ctx)
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, 0.25, health.Threshold)
	assert.True(t, health.ESVEnabled)
}

func TestAnalyticsService(t *testing.T) {
	svc := NewAnalyticsService(nil, logger.NewNop())
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, svc.Consume(ctx))
	require.NoError(t, svc.Handle(ctx, events.NewTurnRecorded("s1", "grounded", "en", []string{"KJV:JHN.3.16"}, 1, now)))
	require.NoError(t, svc.Handle(ctx, events.NewTurnRecorded("s2", "grounded", "ko", []string{"KRV:JHN.3.16", "KJV:JHN.3.16"}, 0.8, now)))

	// decoded from the bus, sources arrive as []interface{}
	data, err := events.Encode(events.NewTurnRecorded("s3", "ungrounded", "ko", nil, 0.1, now))
	require.NoError(t, err)
	decoded, err := events.Decode(data)
	require.NoError(t, err)
	require.NoError(t, svc.Handle(ctx, decoded))
	require.NoError(t, svc.Handle(ctx, events.BaseEvent{Type: "other"}))

	stats := svc.Stats()
	assert.Equal(t, 3, stats.Turns)
	assert.Equal(t, map[string]int{"grounded": 2, "ungrounded": 1}, stats.ByMode)
	assert.Equal(t, map[string]int{"en": 1, "ko": 2}, stats.ByLanguage)
	require.Len(t, stats.TopVerses, 2)
	assert.Equal(t, VerseCount{VerseKey: "KJV:JHN.3.16", Count: 2}, stats.TopVerses[0])
}
