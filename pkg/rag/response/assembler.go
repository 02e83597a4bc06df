package response

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/llm"
	"bibleai-be/pkg/rag"
	ragcontext "bibleai-be/pkg/rag/context"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/store"
)

// DefaultMaxSources caps the citations attached to one answer
const DefaultMaxSources = 5

// Recorder appends the finished exchange to the conversation
type Recorder interface {
	AppendTurns(ctx context.Context, id string, turns ...store.Turn) error
}

// Config tunes the assembler
type Config struct {
	MaxSources int
	Policy     retry.Policy
}

// Request is one turn ready for generation
type Request struct {
	SessionID   string
	Decision    router.Decision
	Passages    []ragcontext.ExpandedPassage
	History     []store.Turn
	Preferences store.Preferences
	Language    bible.Language
	Message     string
	Fetched     []prompt.Fetched
}

// Reply is the generated answer with its provenance
type Reply struct {
	Text     string
	Sources  []store.Source
	Mode     router.Mode
	Model    string
	Attempts int
	Usage    llm.Usage // zero when the provider does not report tokens
}

// Assembler builds the payload, calls the generation service and records the turn pair
type Assembler struct {
	llm      llm.LLMProvider
	builder  *prompt.Builder
	recorder Recorder
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
}

func NewAssembler(llmProvider llm.LLMProvider, builder *prompt.Builder, recorder Recorder, cfg Config, logger *log.Logger) *Assembler {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultMaxSources
	}
	return &Assembler{
		llm:      llmProvider,
		builder:  builder,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Respond generates the answer. On generation failure the session is left
// untouched and a *rag.GenerationError is returned.
func (a *Assembler) Respond(ctx context.Context, req Request) (*Reply, error) {
	payload := a.builder.Build(prompt.Input{
		Mode:        req.Decision.Mode,
		Passages:    req.Passages,
		History:     req.History,
		Preferences: req.Preferences,
		Language:    req.Language,
		Message:     req.Message,
		Fetched:     req.Fetched,
	})

	asked := a.now()
	completion, attempts, err := retry.Do(ctx, a.cfg.Policy, func(ctx context.Context) (*llm.Completion, error) {
		out, err := llm.Complete(ctx, a.llm, payload.Messages())
		if err != nil {
			var se *llm.StatusError
			if errors.As(err, &se) && !se.Temporary() {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		if strings.TrimSpace(out.Text) == "" {
			return nil, fmt.Errorf("empty generation")
		}
		return out, nil
	})
	if err != nil {
		a.logf("[GENERATION] Failed after %d attempt(s): %v", attempts, err)
		return nil, &rag.GenerationError{Attempts: attempts, Err: err}
	}

	text := completion.Text
	reply := &Reply{
		Text:     text,
		Sources:  Sources(req.Decision, a.cfg.MaxSources),
		Mode:     req.Decision.Mode,
		Model:    a.llm.ModelName(),
		Attempts: attempts,
		Usage:    completion.Usage,
	}

	answered := a.now()
	err = a.recorder.AppendTurns(ctx, req.SessionID,
		store.Turn{Role: store.RoleUser, Content: req.Message, Timestamp: asked},
		store.Turn{Role: store.RoleAssistant, Content: text, Sources: reply.Sources, Mode: string(reply.Mode), Timestamp: answered},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record turn: %w", err)
	}

	a.logf("[GENERATION] %s answer, %d source(s), %d attempt(s)", reply.Mode, len(reply.Sources), attempts)
	return reply, nil
}

// Sources lists the citations of a decision, best first. Ungrounded decisions have none.
func Sources(d router.Decision, max int) []store.Source {
	if !d.Grounded() {
		return nil
	}
	n := len(d.Candidates)
	if max > 0 && n > max {
		n = max
	}
	out := make([]store.Source, 0, n)
	for _, c := range d.Candidates[:n] {
		out = append(out, c.Source())
	}
	return out
}

func (a *Assembler) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
