package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"bibleai-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	data               []byte
	acked, naked, term bool
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return Subject(events.EventTurnRecorded) }
func (m *fakeMsg) Ack() error      { m.acked = true; return nil }
func (m *fakeMsg) Nak() error      { m.naked = true; return nil }
func (m *fakeMsg) Term() error     { m.term = true; return nil }

func TestSubjectAndStream(t *testing.T) {
	assert.Equal(t, "bibleai.chat.turn_recorded", Subject(events.EventTurnRecorded))

	cfg := StreamConfig()
	assert.Equal(t, StreamName, cfg.Name)
	assert.Equal(t, []string{"bibleai.>"}, cfg.Subjects)
}

func TestHandle(t *testing.T) {
	data, err := events.Encode(events.NewTurnRecorded("s1", "grounded", "en", []string{"KJV:JHN.3.16"}, 1, time.Now()))
	require.NoError(t, err)

	t.Run("ack on success", func(t *testing.T) {
		msg := &fakeMsg{data: data}
		var got events.Event
		handle(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			got = e
			return nil
		})
		assert.True(t, msg.acked)
		require.NotNil(t, got)
		assert.Equal(t, events.EventTurnRecorded, got.EventType())
		assert.Equal(t, "s1", got.Payload()["session_id"])
	})

	t.Run("nak on handler error", func(t *testing.T) {
		msg := &fakeMsg{data: data}
		handle(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			return errors.New("store down")
		})
		assert.True(t, msg.naked)
		assert.False(t, msg.acked)
	})

	t.Run("term on garbage", func(t *testing.T) {
		msg := &fakeMsg{data: []byte("garbage")}
		called := false
		handle(context.Background(), msg, func(ctx context.Context, e events.Event) error {
			called = true
			return nil
		})
		assert.True(t, msg.term)
		assert.False(t, called)
	})
}
