package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"bibleai-be/internal/config"
	"bibleai-be/internal/repository/memory"
	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/embedding"
	"bibleai-be/pkg/events"
	"bibleai-be/pkg/llm"
	"bibleai-be/pkg/rag"
	ragcontext "bibleai-be/pkg/rag/context"
	"bibleai-be/pkg/rag/hybrid"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/rag/response"
	"bibleai-be/pkg/rag/search"
	"bibleai-be/pkg/rag/session"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/store"
	"bibleai-be/pkg/vectorindex"
	vmemory "bibleai-be/pkg/vectorindex/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// topicEmbedder maps "anxiety" questions onto the first axis and everything else onto the third
type topicEmbedder struct {
	mu   sync.Mutex
	down bool
}

func (e *topicEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.down {
		return nil, errors.New("dial tcp 127.0.0.1:11434: connection refused")
	}
	vec := []float32{0, 0, 1}
	if strings.Contains(strings.ToLower(text), "anxiety") || strings.Contains(text, "염려") {
		vec = []float32{1, 0, 0}
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: vec}}, nil
}

type scriptedLLM struct {
	mu       sync.Mutex
	requests [][]llm.Message
	fail     error
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, history)
	if s.fail != nil {
		return "", s.fail
	}
	return fmt.Sprintf("answer %d", len(s.requests)), nil
}

func (s *scriptedLLM) Generate(ctx context.Context, p string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: p}})
}

func (s *scriptedLLM) ModelName() string { return "test-model" }

func (s *scriptedLLM) last() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// fakeFetcher serves ESV text for any reference except those listed in fail
type fakeFetcher struct {
	mu   sync.Mutex
	refs []string
	fail map[string]bool
}

func (f *fakeFetcher) Translation() string { return "ESV" }

func (f *fakeFetcher) Notice() string { return "ESV notice" }

func (f *fakeFetcher) Passage(ctx context.Context, reference string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, reference)
	if f.fail[reference] {
		return "", errors.New("esv error: status 503")
	}
	return "ESV " + reference, nil
}

type fixture struct {
	engine   *Engine
	embedder *topicEmbedder
	llm      *scriptedLLM
	events   *recordingPublisher
	vectors  *vmemory.Index
}

func chapter(translation string, book bible.BookCode, ch, n int, lang bible.Language) []bible.Verse {
	out := make([]bible.Verse, 0, n)
	for v := 1; v <= n; v++ {
		out = append(out, bible.Verse{
			ID:       bible.VerseID{Book: book, Chapter: ch, Verse: v, Translation: translation},
			Text:     fmt.Sprintf("%s %s %d:%d", translation, book, ch, v),
			Language: lang,
			BookName: book.DisplayName(lang),
		})
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, ragcontext.Options{Window: 2})
}

func newFixtureWith(t *testing.T, expand ragcontext.Options) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := log.New(io.Discard, "", 0)

	verses := memory.NewVerseRepository()
	require.NoError(t, verses.InsertBulk(ctx, chapter("KJV", "JHN", 3, 36, bible.English)))
	require.NoError(t, verses.InsertBulk(ctx, chapter("KJV", "PHP", 4, 23, bible.English)))
	require.NoError(t, verses.InsertBulk(ctx, chapter("KJV", "MAT", 6, 34, bible.English)))
	require.NoError(t, verses.InsertBulk(ctx, chapter("KRV", "JHN", 3, 36, bible.Korean)))
	require.NoError(t, verses.InsertBulk(ctx, chapter("KRV", "PHP", 4, 23, bible.Korean)))

	vectors := vmemory.New()
	require.NoError(t, vectors.Upsert(ctx, []vectorindex.Point{
		{Key: "KJV:PHP.4.6", Translation: "KJV", Vector: []float32{1, 0, 0}},
		{Key: "KJV:MAT.6.34", Translation: "KJV", Vector: []float32{0.8, 0.6, 0}},
		{Key: "KJV:JHN.3.16", Translation: "KJV", Vector: []float32{0, 1, 0}},
		{Key: "KRV:PHP.4.6", Translation: "KRV", Vector: []float32{1, 0, 0}},
		{Key: "KRV:JHN.3.16", Translation: "KRV", Vector: []float32{0, 1, 0}},
	}))

	policy := retry.Policy{Attempts: 2, Timeout: time.Second, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	embedder := &topicEmbedder{}
	semantic := search.NewOrchestrator(search.NewEmbeddingIndex(embedder, vectors), verses, logger)
	sessions := session.NewManager(memory.NewSessionRepository(), nil, session.DefaultConfig(), logger)
	chat := &scriptedLLM{}
	publisher := &recordingPublisher{}

	engine := NewEngine(Deps{
		Sessions:  sessions,
		Retriever: hybrid.NewRetriever(semantic, verses, logger),
		Router:    router.NewModeRouter(router.DefaultThreshold, logger),
		Expander:  ragcontext.NewExpander(verses, expand, logger),
		Assembler: response.NewAssembler(chat, prompt.NewBuilder(prompt.DefaultHistoryWindow), sessions, response.Config{Policy: policy}, logger),
		Verses:    verses,
		Vectors:   vectors,
		Events:    publisher,
		Model:     chat.ModelName(),
	}, Config{TopK: 8, SearchPolicy: policy}, logger)

	return &fixture{engine: engine, embedder: embedder, llm: chat, events: publisher, vectors: vectors}
}

func TestChat_ExactReference(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)

	assert.Equal(t, router.ModeGrounded, res.Mode)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, 1.0, res.Sources[0].Score)
	assert.Equal(t, "exact", res.Sources[0].Kind)
	assert.Equal(t, "John 3:16", res.Sources[0].Reference)
	assert.Equal(t, "KJV", res.Sources[0].Translation)
	assert.Equal(t, bible.English, res.Language)
	assert.Equal(t, "test-model", res.Model)
	assert.NotEmpty(t, res.SessionID)
}

func TestChat_SemanticQueryIsGroundedAndExpanded(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "what does scripture say about anxiety"})
	require.NoError(t, err)

	assert.Equal(t, router.ModeGrounded, res.Mode)
	require.Len(t, res.Sources, 2)
	for _, s := range res.Sources {
		assert.GreaterOrEqual(t, s.Score, router.DefaultThreshold)
		assert.Equal(t, "semantic", s.Kind)
	}
	assert.Equal(t, "KJV:PHP.4.6", res.Sources[0].VerseKey)

	user := f.llm.last()[len(f.llm.last())-1].Content
	for v := 4; v <= 8; v++ {
		assert.Contains(t, user, fmt.Sprintf("v%d: \"KJV PHP 4:%d\"", v, v))
	}
	assert.Contains(t, user, "★ v6:")
	assert.Contains(t, user, "· v5:")
	assert.Contains(t, user, "Matthew 6:32-34")
	assert.NotContains(t, user, "JHN 3:16")
}

func TestChat_DefaultConfigWidensEveryCandidate(t *testing.T) {
	t.Setenv("RAG_CONTEXT_WINDOW", "")
	t.Setenv("RAG_EXPAND_TOP_N", "")
	cfg := config.Load()

	f := newFixtureWith(t, ragcontext.Options{Window: cfg.Rag.ContextWindow, ExpandTopN: cfg.Rag.ExpandTopN})
	require.NoError(t, f.vectors.Upsert(context.Background(), []vectorindex.Point{
		{Key: "KJV:JHN.3.30", Translation: "KJV", Vector: []float32{0.6, 0.8, 0}},
	}))

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "what does scripture say about anxiety"})
	require.NoError(t, err)
	require.Len(t, res.Sources, 3)
	assert.Equal(t, "KJV:JHN.3.30", res.Sources[2].VerseKey)

	user := f.llm.last()[len(f.llm.last())-1].Content
	for v := 4; v <= 8; v++ {
		assert.Contains(t, user, fmt.Sprintf("v%d: \"KJV PHP 4:%d\"", v, v))
	}
	for v := 32; v <= 34; v++ {
		assert.Contains(t, user, fmt.Sprintf("v%d: \"KJV MAT 6:%d\"", v, v))
	}
	for v := 28; v <= 32; v++ {
		assert.Contains(t, user, fmt.Sprintf("v%d: \"KJV JHN 3:%d\"", v, v), "third candidate gets its window too")
	}
}

func TestChat_NonsenseIsUngrounded(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "zzxcvqwer"})
	require.NoError(t, err)
	assert.Equal(t, router.ModeUngrounded, res.Mode)
	assert.Empty(t, res.Sources)
	assert.Less(t, res.Confidence, router.DefaultThreshold)
}

func TestChat_TwoTurnsShareHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Chat(ctx, ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)
	second, err := f.engine.Chat(ctx, ChatRequest{Message: "what does the next verse say?", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	msgs := f.llm.last()
	require.Len(t, msgs, 4) // system, user, assistant, new user
	assert.Equal(t, "John 3:16", msgs[1].Content)
	assert.Equal(t, "answer 1", msgs[2].Content)

	history, err := f.engine.History(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestChat_DeletedSessionStartsFresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Chat(ctx, ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)
	require.NoError(t, f.engine.DeleteSession(ctx, first.SessionID))

	again, err := f.engine.Chat(ctx, ChatRequest{Message: "hello", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, again.SessionID)
	assert.Len(t, f.llm.last(), 2, "no prior history is sent")
}

func TestChat_ClearIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.Chat(ctx, ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)
	require.NoError(t, f.engine.ClearSession(ctx, res.SessionID))
	require.NoError(t, f.engine.ClearSession(ctx, res.SessionID))

	history, err := f.engine.History(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestChat_UnavailableIsReported(t *testing.T) {
	f := newFixture(t)
	f.embedder.down = true

	_, err := f.engine.Chat(context.Background(), ChatRequest{Message: "what does scripture say about anxiety"})
	require.Error(t, err)
	assert.True(t, rag.IsUnavailable(err))
	assert.Empty(t, f.llm.requests, "no ungrounded fallback")
}

func TestChat_ExactHitSurvivesUnavailableIndex(t *testing.T) {
	f := newFixture(t)
	f.embedder.down = true

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, router.ModeGrounded, res.Mode)
	require.Len(t, res.Sources, 1)
}

func TestChat_GenerationFailureLeavesHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Chat(ctx, ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)

	f.llm.fail = errors.New("upstream timeout")
	_, err = f.engine.Chat(ctx, ChatRequest{Message: "and then?", SessionID: first.SessionID})
	require.Error(t, err)
	assert.True(t, rag.IsGenerationFailure(err))

	history, err := f.engine.History(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestChat_KoreanUsesKoreanTranslation(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "요한복음 3장 16절 말씀을 설명해 주세요"})
	require.NoError(t, err)
	assert.Equal(t, bible.Korean, res.Language)
	require.NotEmpty(t, res.Sources)
	assert.Equal(t, "KRV:JHN.3.16", res.Sources[0].VerseKey)
	assert.Equal(t, "요한복음 3:16", res.Sources[0].ReferenceKR)
	assert.Contains(t, f.llm.last()[0].Content, "한국어로 답변")
}

func TestChat_Preferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Chat(ctx, ChatRequest{Message: "hi", Preferences: &store.Preferences{TranslationKR: "KJV"}})
	assert.ErrorIs(t, err, rag.ErrInvalidPreference)
	assert.Empty(t, f.llm.requests)

	res, err := f.engine.Chat(ctx, ChatRequest{Message: "hi", Preferences: &store.Preferences{TranslationKR: "개역한글", Denomination: "Baptist"}})
	require.NoError(t, err)
	assert.Contains(t, f.llm.last()[0].Content, "Denomination: baptist")

	// preferences stick to the session
	_, err = f.engine.Chat(ctx, ChatRequest{Message: "again", SessionID: res.SessionID})
	require.NoError(t, err)
	assert.Contains(t, f.llm.last()[0].Content, "Korean Bible translation: KRV")
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Chat(context.Background(), ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChat_PublishesTurnRecorded(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "John 3:16"})
	require.NoError(t, err)

	require.Len(t, f.events.events, 1)
	e := f.events.events[0]
	assert.Equal(t, events.EventTurnRecorded, e.EventType())
	assert.Equal(t, res.SessionID, e.Payload()["session_id"])
	assert.Equal(t, []string{"KJV:JHN.3.16"}, e.Payload()["sources"])
}

func TestSearch(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Search(context.Background(), "anxiety", "", 3)
	require.NoError(t, err)
	assert.Equal(t, "KJV", res.Translation)
	assert.Equal(t, router.ModeGrounded, res.Mode)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "KJV:PHP.4.6", res.Candidates[0].Verse.ID.Key())
	assert.LessOrEqual(t, len(res.Candidates), 3)

	korean, err := f.engine.Search(context.Background(), "anxiety", "krv", 3)
	require.NoError(t, err)
	assert.Equal(t, "KRV", korean.Translation)
	assert.Equal(t, "KRV:PHP.4.6", korean.Candidates[0].Verse.ID.Key())
}

func TestChapter(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Chapter(context.Background(), "John 3", "")
	require.NoError(t, err)
	assert.Equal(t, bible.BookCode("JHN"), res.Book)
	assert.Equal(t, "요한복음", res.BookNameKR)
	assert.Equal(t, "KJV", res.Translation)
	assert.Len(t, res.Verses, 36)

	ko, err := f.engine.Chapter(context.Background(), "요한복음 3장", "")
	require.NoError(t, err)
	assert.Equal(t, "KRV", ko.Translation)

	_, err = f.engine.Chapter(context.Background(), "Genesis 1", "KJV")
	assert.Error(t, err)
	_, err = f.engine.Chapter(context.Background(), "not a reference", "")
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	h := f.engine.Health(context.Background())
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, int64(36+23+34+36+23), h.Verses)
	assert.Equal(t, []string{"KJV", "KRV"}, h.Translations)
	assert.Equal(t, "memory", h.VectorBackend)
	assert.Equal(t, 5, h.VectorCount)
	assert.Equal(t, router.DefaultThreshold, h.Threshold)
	assert.Equal(t, "test-model", h.Model)
	assert.False(t, h.ESVEnabled)

	f.engine.Fetcher = &fakeFetcher{}
	assert.True(t, f.engine.Health(context.Background()).ESVEnabled)
}

func TestChat_FetchedTranslation(t *testing.T) {
	esv := &store.Preferences{TranslationEN: "ESV"}

	t.Run("searches the local edition and attaches fetched text", func(t *testing.T) {
		f := newFixture(t)
		fetcher := &fakeFetcher{}
		f.engine.Fetcher = fetcher

		res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "John 3:16", Preferences: esv})
		require.NoError(t, err)

		require.Len(t, res.Sources, 1)
		assert.Equal(t, "KJV:JHN.3.16", res.Sources[0].VerseKey)
		assert.Equal(t, []string{"John 3:14-18"}, fetcher.refs)
		require.Len(t, res.Fetched, 1)
		assert.Equal(t, prompt.Fetched{Reference: "John 3:14-18", Translation: "ESV", Text: "ESV John 3:14-18", Notice: "ESV notice"}, res.Fetched[0])

		msgs := f.llm.last()
		assert.Contains(t, msgs[0].Content, "ESV (English Standard Version)")
		user := msgs[len(msgs)-1].Content
		assert.Contains(t, user, `v16: "KJV JHN 3:16"`)
		assert.Contains(t, user, `"ESV John 3:14-18"`)
		assert.Contains(t, user, "[ESV Copyright: ESV notice]")
	})

	t.Run("failed fetch skips that passage", func(t *testing.T) {
		f := newFixture(t)
		f.engine.Fetcher = &fakeFetcher{fail: map[string]bool{"Matthew 6:32-34": true}}

		res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "what does scripture say about anxiety", Preferences: esv})
		require.NoError(t, err)

		require.Len(t, res.Sources, 2)
		require.Len(t, res.Fetched, 1)
		assert.Equal(t, "Philippians 4:4-8", res.Fetched[0].Reference)
		assert.NotContains(t, f.llm.last()[len(f.llm.last())-1].Content, "ESV Matthew")
	})

	t.Run("without a fetcher the local edition is cited", func(t *testing.T) {
		f := newFixture(t)

		res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "John 3:16", Preferences: esv})
		require.NoError(t, err)

		require.Len(t, res.Sources, 1)
		assert.Equal(t, "KJV", res.Sources[0].Translation)
		assert.Empty(t, res.Fetched)
		assert.Contains(t, f.llm.last()[0].Content, "Cite verses in KJV (King James Version)")
		assert.NotContains(t, f.llm.last()[len(f.llm.last())-1].Content, "<fetched_translation>")
	})

	t.Run("ungrounded turns fetch nothing", func(t *testing.T) {
		f := newFixture(t)
		fetcher := &fakeFetcher{}
		f.engine.Fetcher = fetcher

		res, err := f.engine.Chat(context.Background(), ChatRequest{Message: "zzxcvqwer", Preferences: esv})
		require.NoError(t, err)
		assert.Equal(t, router.ModeUngrounded, res.Mode)
		assert.Empty(t, fetcher.refs)
	})
}

func TestSearchAndChapter_FetchedTranslationUsesLocalEdition(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Search(context.Background(), "anxiety", "esv", 3)
	require.NoError(t, err)
	assert.Equal(t, "KJV", res.Translation)
	assert.Equal(t, "KJV:PHP.4.6", res.Candidates[0].Verse.ID.Key())

	ch, err := f.engine.Chapter(context.Background(), "John 3", "ESV")
	require.NoError(t, err)
	assert.Equal(t, "KJV", ch.Translation)
	assert.Len(t, ch.Verses, 36)
}
