package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bibleai-be/internal/repository/contract"
	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/events"
	"bibleai-be/pkg/llm"
	"bibleai-be/pkg/rag"
	ragcontext "bibleai-be/pkg/rag/context"
	"bibleai-be/pkg/rag/hybrid"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/rag/response"
	"bibleai-be/pkg/rag/session"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds parallel requests to the remote translation API
const maxConcurrentFetches = 4

// ErrEmptyMessage is returned for a blank chat message
var ErrEmptyMessage = errors.New("message is required")

// EventPublisher receives analytics events; failures never fail a chat
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Counter reports the size of a backend for health checks
type Counter interface {
	Name() string
	Count(ctx context.Context) (int, error)
}

// PassageFetcher supplies display text of a translation with no local corpus
type PassageFetcher interface {
	Translation() string
	Notice() string
	Passage(ctx context.Context, reference string) (string, error)
}

// Config holds the per-query knobs
type Config struct {
	TopK           int
	MaxExactVerses int
	SearchPolicy   retry.Policy
}

// Deps are the engine's collaborators
type Deps struct {
	Sessions  *session.Manager
	Retriever *hybrid.Retriever
	Router    *router.ModeRouter
	Expander  *ragcontext.Expander
	Assembler *response.Assembler
	Verses    contract.VerseRepository
	Vectors   Counter        // optional
	Events    EventPublisher // optional
	Fetcher   PassageFetcher // optional
	Model     string
}

// Engine is the entry point of the retrieval and conversation pipeline
type Engine struct {
	Deps
	cfg    Config
	logger *log.Logger
	tracer trace.Tracer
}

func NewEngine(deps Deps, cfg Config, logger *log.Logger) *Engine {
	return &Engine{
		Deps:   deps,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("bibleai-be/pkg/rag/executor"),
	}
}

// ChatRequest is one user message. Nil Preferences keep the session's current ones.
type ChatRequest struct {
	Message     string
	SessionID   string
	Preferences *store.Preferences
}

// ChatResult is the answer with provenance
type ChatResult struct {
	Text       string
	SessionID  string
	Sources    []store.Source
	Mode       router.Mode
	Language   bible.Language
	Model      string
	Confidence float64
	Usage      llm.Usage
	Fetched    []prompt.Fetched
	// Degraded is set when semantic search failed and exact references alone answered
	Degraded bool
}

// Chat runs one turn: session, retrieval, routing, expansion, generation, record.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.chat")
	defer span.End()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	var prefs *store.Preferences
	if req.Preferences != nil {
		if err := req.Preferences.Validate(); err != nil {
			return nil, err
		}
		p := req.Preferences.Normalize()
		prefs = &p
	}

	// 1. Session snapshot; the lock is released before any external call
	sess, created, err := e.Sessions.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session unavailable: %w", err)
	}
	if prefs != nil && *prefs != sess.Preferences {
		if err := e.Sessions.SetPreferences(ctx, sess.ID, *prefs); err != nil {
			return nil, fmt.Errorf("session unavailable: %w", err)
		}
		sess.Preferences = *prefs
	}

	lang := bible.DetectLanguage(message)
	translation := sess.Preferences.TranslationFor(lang)
	searchWith := bible.SearchTranslation(translation)
	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.Bool("session.created", created),
		attribute.String("query.language", string(lang)),
		attribute.String("query.translation", translation),
	)

	// 2. Retrieval
	result, err := e.retrieve(ctx, message, lang, searchWith, e.cfg.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval unavailable")
		return nil, err
	}

	// 3. Routing
	decision := e.Router.Decide(result.Candidates, result.Confidence)

	// 4. Expansion
	var passages []ragcontext.ExpandedPassage
	if decision.Grounded() {
		passages, err = e.Expander.Expand(ctx, decision.Candidates)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("context expansion failed: %w", err)
		}
	}
	var fetched []prompt.Fetched
	if translation != searchWith && len(passages) > 0 {
		fetched = e.fetch(ctx, translation, passages)
	}

	// 5. Generation and record
	genCtx, genSpan := e.tracer.Start(ctx, "engine.generate")
	reply, err := e.Assembler.Respond(genCtx, response.Request{
		SessionID:   sess.ID,
		Decision:    decision,
		Passages:    passages,
		History:     sess.Turns,
		Preferences: sess.Preferences,
		Language:    lang,
		Message:     message,
		Fetched:     fetched,
	})
	if err != nil {
		genSpan.RecordError(err)
		genSpan.SetStatus(codes.Error, "generation failed")
		genSpan.End()
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}
	genSpan.SetAttributes(attribute.Int("generation.attempts", reply.Attempts))
	genSpan.End()

	span.SetAttributes(
		attribute.String("rag.mode", string(reply.Mode)),
		attribute.Float64("rag.confidence", decision.Confidence),
		attribute.Int("rag.sources", len(reply.Sources)),
	)
	e.publish(ctx, sess.ID, reply, lang, decision.Confidence)

	e.logf("[ENGINE] session=%s lang=%s mode=%s confidence=%.3f sources=%d", sess.ID, lang, reply.Mode, decision.Confidence, len(reply.Sources))
	return &ChatResult{
		Text:       reply.Text,
		SessionID:  sess.ID,
		Sources:    reply.Sources,
		Mode:       reply.Mode,
		Language:   lang,
		Model:      reply.Model,
		Confidence: decision.Confidence,
		Usage:      reply.Usage,
		Fetched:    fetched,
		Degraded:   result.SemanticErr != nil,
	}, nil
}

// fetch gets remote display text per passage. A failed fetch drops that
// passage's text and the answer cites the searched edition for it.
func (e *Engine) fetch(ctx context.Context, translation string, passages []ragcontext.ExpandedPassage) []prompt.Fetched {
	if e.Fetcher == nil || !strings.EqualFold(e.Fetcher.Translation(), translation) {
		return nil
	}
	ctx, span := e.tracer.Start(ctx, "engine.fetch")
	defer span.End()

	texts := make([]string, len(passages))
	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for i, p := range passages {
		g.Go(func() error {
			fctx := ctx
			if timeout := e.cfg.SearchPolicy.Timeout; timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			ref := p.Reference(bible.English)
			text, err := e.Fetcher.Passage(fctx, ref)
			if err != nil {
				e.logf("[ENGINE] %s fetch failed for %s: %v", translation, ref, err)
				return nil
			}
			texts[i] = text
			return nil
		})
	}
	_ = g.Wait()

	out := make([]prompt.Fetched, 0, len(passages))
	for i, p := range passages {
		if texts[i] == "" {
			continue
		}
		out = append(out, prompt.Fetched{
			Reference:   p.Reference(bible.English),
			Translation: e.Fetcher.Translation(),
			Text:        texts[i],
			Notice:      e.Fetcher.Notice(),
		})
	}
	span.SetAttributes(attribute.Int("fetch.passages", len(out)))
	return out
}

func (e *Engine) retrieve(ctx context.Context, query string, lang bible.Language, translation string, topK int) (*hybrid.Result, error) {
	ctx, span := e.tracer.Start(ctx, "engine.retrieve")
	defer span.End()

	result, err := e.Retriever.Retrieve(ctx, query, lang, hybrid.Options{
		Translation:    translation,
		TopK:           topK,
		MaxExactVerses: e.cfg.MaxExactVerses,
		SearchPolicy:   e.cfg.SearchPolicy,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("retrieval.candidates", len(result.Candidates)),
		attribute.Int("retrieval.exact", result.ExactHits),
		attribute.Int("retrieval.ambiguous", result.Ambiguous),
	)
	return result, nil
}

func (e *Engine) publish(ctx context.Context, sessionID string, reply *response.Reply, lang bible.Language, confidence float64) {
	if e.Events == nil {
		return
	}
	keys := make([]string, len(reply.Sources))
	for i, s := range reply.Sources {
		keys[i] = s.VerseKey
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.Events.Publish(pubCtx, events.NewTurnRecorded(sessionID, string(reply.Mode), string(lang), keys, confidence, time.Now())); err != nil {
		e.logf("[ENGINE] Event publish failed: %v", err)
	}
}

// ClearSession empties a session's history. Idempotent.
func (e *Engine) ClearSession(ctx context.Context, id string) error {
	return e.Sessions.Clear(ctx, id)
}

// DeleteSession destroys a session. Idempotent.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.Sessions.Delete(ctx, id)
}

// History returns the turns of a session in order
func (e *Engine) History(ctx context.Context, id string) ([]store.Turn, error) {
	return e.Sessions.History(ctx, id)
}

// SearchResult is the direct hybrid search used for debugging
type SearchResult struct {
	Query       string
	Language    bible.Language
	Translation string
	Candidates  []store.Candidate
	Confidence  float64
	Mode        router.Mode
}

// Search runs retrieval and routing without generation. An empty translation
// picks the default for the query's language.
func (e *Engine) Search(ctx context.Context, query, translation string, topK int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyMessage
	}
	lang := bible.DetectLanguage(query)
	if translation == "" {
		translation = bible.DefaultTranslation(lang)
	} else {
		translation = bible.SearchTranslation(translation)
	}

	if topK <= 0 {
		topK = e.cfg.TopK
	}
	result, err := e.retrieve(ctx, query, lang, translation, topK)
	if err != nil {
		return nil, err
	}
	decision := e.Router.Decide(result.Candidates, result.Confidence)

	return &SearchResult{
		Query:       query,
		Language:    lang,
		Translation: translation,
		Candidates:  result.Candidates,
		Confidence:  result.Confidence,
		Mode:        decision.Mode,
	}, nil
}

// ChapterResult is a full chapter for reading
type ChapterResult struct {
	Book        bible.BookCode
	BookName    string
	BookNameKR  string
	Chapter     int
	Translation string
	Verses      []bible.Verse
}

// Chapter reads one chapter, e.g. ("John 3", "KJV") or ("요한복음 3장", "").
func (e *Engine) Chapter(ctx context.Context, reference, translation string) (*ChapterResult, error) {
	ref, err := router.ParseReference(reference)
	if err != nil {
		return nil, err
	}
	if translation == "" {
		translation = bible.DefaultTranslation(bible.DetectLanguage(reference))
	}
	return e.ReadChapter(ctx, ref.Book, ref.Chapter, translation)
}

// ReadChapter reads a chapter by book code. translation accepts codes and aliases.
func (e *Engine) ReadChapter(ctx context.Context, book bible.BookCode, chapter int, translation string) (*ChapterResult, error) {
	if !book.Valid() || chapter < 1 {
		return nil, fmt.Errorf("%s %d: %w", book, chapter, rag.ErrParseAmbiguous)
	}
	translation = bible.SearchTranslation(translation)

	verses, err := e.Verses.FindRange(ctx, contract.ChapterRange{
		Translation: translation,
		Book:        book,
		Chapter:     chapter,
		From:        1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter: %w", err)
	}
	if len(verses) == 0 {
		return nil, fmt.Errorf("%s %d in %s: %w", book, chapter, translation, contract.ErrVerseNotFound)
	}

	return &ChapterResult{
		Book:        book,
		BookName:    book.DisplayName(bible.English),
		BookNameKR:  book.DisplayName(bible.Korean),
		Chapter:     chapter,
		Translation: translation,
		Verses:      verses,
	}, nil
}

// HealthStatus is the read-only status surface
type HealthStatus struct {
	Status        string
	Verses        int64
	Translations  []string
	VectorBackend string
	VectorCount   int
	Sessions      int
	Model         string
	Threshold     float64
	ESVEnabled    bool
}

// Health reports corpus size and component readiness. Status is "ok" or "degraded".
func (e *Engine) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{
		Status:    "ok",
		Sessions:  e.Sessions.Len(),
		Model:     e.Model,
		Threshold: e.Router.Threshold(),
	}
	if e.Fetcher != nil {
		h.ESVEnabled = strings.EqualFold(e.Fetcher.Translation(), "ESV")
	}

	n, err := e.Verses.Count(ctx)
	if err != nil {
		e.logf("[ENGINE] Health: verse count failed: %v", err)
		h.Status = "degraded"
	}
	h.Verses = n
	if n == 0 {
		h.Status = "degraded"
	}
	if translations, err := e.Verses.Translations(ctx); err == nil {
		h.Translations = translations
	}

	if e.Vectors != nil {
		h.VectorBackend = e.Vectors.Name()
		count, err := e.Vectors.Count(ctx)
		if err != nil {
			e.logf("[ENGINE] Health: vector count failed: %v", err)
			h.Status = "degraded"
		}
		h.VectorCount = count
	}
	return h
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
