package response

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"bibleai-be/pkg/ai/router"
	"bibleai-be/pkg/bible"
	"bibleai-be/pkg/llm"
	"bibleai-be/pkg/rag"
	"bibleai-be/pkg/rag/prompt"
	"bibleai-be/pkg/retry"
	"bibleai-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	replies []string
	errs    []error
	calls   int
	last    []llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	f.calls++
	f.last = history
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	if len(f.replies) == 0 {
		return "answer", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeLLM) Generate(ctx context.Context, p string, options ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: p}}, options...)
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

type fakeRecorder struct {
	turns map[string][]store.Turn
}

func (f *fakeRecorder) AppendTurns(ctx context.Context, id string, turns ...store.Turn) error {
	if f.turns == nil {
		f.turns = make(map[string][]store.Turn)
	}
	f.turns[id] = append(f.turns[id], turns...)
	return nil
}

func candidates(n int) []store.Candidate {
	out := make([]store.Candidate, n)
	for i := range out {
		out[i] = store.Candidate{
			Verse: bible.Verse{
				ID:   bible.VerseID{Book: "PHP", Chapter: 4, Verse: i + 1, Translation: "KJV"},
				Text: "text",
			},
			Score: 0.9 - float64(i)*0.05,
			Kind:  store.MatchSemantic,
		}
	}
	return out
}

func newAssembler(l *fakeLLM, rec *fakeRecorder) *Assembler {
	return NewAssembler(l, prompt.NewBuilder(0), rec, Config{
		Policy: retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}, nil)
}

func TestRespond_GroundedAttachesCappedSources(t *testing.T) {
	l := &fakeLLM{replies: []string{"Be anxious for nothing [Bible, Philippians 4:6, KJV]"}}
	rec := &fakeRecorder{}
	a := newAssembler(l, rec)

	reply, err := a.Respond(context.Background(), Request{
		SessionID: "s1",
		Decision:  router.Decision{Mode: router.ModeGrounded, Candidates: candidates(8), Confidence: 0.9},
		Language:  bible.English,
		Message:   "anxiety",
	})
	require.NoError(t, err)

	assert.Equal(t, router.ModeGrounded, reply.Mode)
	assert.Equal(t, "fake-model", reply.Model)
	require.Len(t, reply.Sources, DefaultMaxSources)
	assert.Equal(t, "Philippians 4:1", reply.Sources[0].Reference)
	assert.Equal(t, "빌립보서 4:1", reply.Sources[0].ReferenceKR)
	assert.Equal(t, "KJV", reply.Sources[0].Translation)

	turns := rec.turns["s1"]
	require.Len(t, turns, 2)
	assert.Equal(t, store.RoleUser, turns[0].Role)
	assert.Equal(t, "anxiety", turns[0].Content)
	assert.Equal(t, store.RoleAssistant, turns[1].Role)
	assert.Equal(t, store.ModeGrounded, turns[1].Mode)
	assert.Len(t, turns[1].Sources, DefaultMaxSources)
}

func TestRespond_UngroundedHasNoSources(t *testing.T) {
	l := &fakeLLM{}
	rec := &fakeRecorder{}
	a := newAssembler(l, rec)

	reply, err := a.Respond(context.Background(), Request{
		SessionID: "s1",
		Decision:  router.Decision{Mode: router.ModeUngrounded},
		Language:  bible.English,
		Message:   "zzxcvqwer",
	})
	require.NoError(t, err)
	assert.Empty(t, reply.Sources)
	assert.Empty(t, rec.turns["s1"][1].Sources)
	assert.Equal(t, store.ModeUngrounded, rec.turns["s1"][1].Mode)
	assert.Contains(t, l.last[0].Content, "No passage was retrieved")
}

func TestRespond_HistoryIsSent(t *testing.T) {
	l := &fakeLLM{}
	a := newAssembler(l, &fakeRecorder{})

	history := []store.Turn{
		{Role: store.RoleUser, Content: "first question"},
		{Role: store.RoleAssistant, Content: "first answer"},
	}
	_, err := a.Respond(context.Background(), Request{
		SessionID: "s1",
		Decision:  router.Decision{Mode: router.ModeUngrounded},
		History:   history,
		Language:  bible.English,
		Message:   "second question",
	})
	require.NoError(t, err)

	require.Len(t, l.last, 4)
	assert.Equal(t, "first question", l.last[1].Content)
	assert.Equal(t, "first answer", l.last[2].Content)
	assert.True(t, strings.Contains(l.last[3].Content, "second question"))
}

func TestRespond_RetriesThenSucceeds(t *testing.T) {
	l := &fakeLLM{errs: []error{errors.New("connection reset"), &llm.StatusError{Provider: "ollama", Code: http.StatusServiceUnavailable}}}
	a := newAssembler(l, &fakeRecorder{})

	reply, err := a.Respond(context.Background(), Request{SessionID: "s1", Decision: router.Decision{Mode: router.ModeUngrounded}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 3, reply.Attempts)
}

func TestRespond_FailureLeavesSessionUntouched(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	l := &fakeLLM{errs: []error{down, down, down}}
	rec := &fakeRecorder{}
	a := newAssembler(l, rec)

	_, err := a.Respond(context.Background(), Request{SessionID: "s1", Decision: router.Decision{Mode: router.ModeUngrounded}, Message: "hi"})
	require.Error(t, err)
	assert.True(t, rag.IsGenerationFailure(err))
	assert.ErrorIs(t, err, down)

	var ge *rag.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, 3, ge.Attempts)
	assert.Empty(t, rec.turns)
}

func TestRespond_ClientErrorIsNotRetried(t *testing.T) {
	l := &fakeLLM{errs: []error{&llm.StatusError{Provider: "ollama", Code: http.StatusBadRequest}}}
	a := newAssembler(l, &fakeRecorder{})

	_, err := a.Respond(context.Background(), Request{SessionID: "s1", Decision: router.Decision{Mode: router.ModeUngrounded}, Message: "hi"})
	assert.True(t, rag.IsGenerationFailure(err))
	assert.Equal(t, 1, l.calls)
}

func TestRespond_EmptyAnswerIsRetried(t *testing.T) {
	l := &fakeLLM{replies: []string{"  ", "real answer"}}
	a := newAssembler(l, &fakeRecorder{})

	reply, err := a.Respond(context.Background(), Request{SessionID: "s1", Decision: router.Decision{Mode: router.ModeUngrounded}, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "real answer", reply.Text)
}

type usageLLM struct {
	fakeLLM
}

func (u *usageLLM) ChatWithUsage(ctx context.Context, history []llm.Message, options ...llm.Option) (*llm.Completion, error) {
	return &llm.Completion{Text: "counted", Usage: llm.Usage{InputTokens: 300, OutputTokens: 40}}, nil
}

func TestRespond_Usage(t *testing.T) {
	t.Run("reported by the provider", func(t *testing.T) {
		l := &usageLLM{}
		a := NewAssembler(l, prompt.NewBuilder(0), &fakeRecorder{}, Config{}, nil)

		reply, err := a.Respond(context.Background(), Request{SessionID: "s1", Decision: router.Decision{Mode: router.ModeUngrounded}, Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "counted", reply.Text)
		assert.Equal(t, llm.Usage{InputTokens: 300, OutputTokens: 40}, reply.Usage)
		assert.Equal(t, 0, l.calls, "plain Chat is not used")
	})

	t.Run("zero when not reported", func(t *testing.T) {
		a := newAssembler(&fakeLLM{}, &fakeRecorder{})

		reply, err := a.Respond(context.Background(), Request{SessionID: "s1", Decision: router.Decision{Mode: router.ModeUngrounded}, Message: "hi"})
		require.NoError(t, err)
		assert.Equal(t, llm.Usage{}, reply.Usage)
	})
}

func TestSources(t *testing.T) {
	assert.Nil(t, Sources(router.Decision{Mode: router.ModeUngrounded, Candidates: candidates(2)}, 5))
	assert.Len(t, Sources(router.Decision{Mode: router.ModeGrounded, Candidates: candidates(2)}, 5), 2)
	assert.Len(t, Sources(router.Decision{Mode: router.ModeGrounded, Candidates: candidates(7)}, 0), 7)
}
