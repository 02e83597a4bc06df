package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"bibleai-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotBus_AppliesWrites(t *testing.T) {
	target := newFakeSnapshots()
	bus, err := NewSnapshotBus(target, NewGoChannel(), time.Hour, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, bus.Save(ctx, &store.Session{ID: "a", Turns: []store.Turn{{Role: store.RoleUser, Content: "hi"}}}))
	require.NoError(t, bus.Save(ctx, &store.Session{ID: "b"}))
	require.NoError(t, bus.Delete(ctx, "b"))
	require.NoError(t, bus.Flush(ctx))

	got, err := bus.Load(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Turns, 1)
	_, ok := target.get("b")
	assert.False(t, ok)

	require.NoError(t, bus.Close(ctx))
}

func TestSnapshotBus_StaleWriteIsDropped(t *testing.T) {
	target := newFakeSnapshots()
	b := &SnapshotBus{target: target, last: make(map[string]applied), retention: time.Hour}

	encode := func(m snapshotMessage) *message.Message {
		raw, err := json.Marshal(m)
		require.NoError(t, err)
		return message.NewMessage(watermill.NewUUID(), raw)
	}

	// delete (seq 2) arrives before the save it supersedes (seq 1)
	b.handle(encode(snapshotMessage{Seq: 2, ID: "a", Deleted: true}))
	b.handle(encode(snapshotMessage{Seq: 1, ID: "a", Session: &store.Session{ID: "a"}}))

	_, ok := target.get("a")
	assert.False(t, ok)

	b.handle(encode(snapshotMessage{Seq: 3, ID: "a", Session: &store.Session{ID: "a"}}))
	_, ok = target.get("a")
	assert.True(t, ok)
}

func TestManagerWithSnapshotBus(t *testing.T) {
	target := newFakeSnapshots()
	bus, err := NewSnapshotBus(target, NewGoChannel(), time.Hour, nil)
	require.NoError(t, err)
	m, _ := newManager(t, bus)
	ctx := context.Background()

	s, _, err := m.GetOrCreate(ctx, "")
	require.NoError(t, err)
	require.NoError(t, m.AppendTurns(ctx, s.ID, turn(store.RoleUser, "q"), turn(store.RoleAssistant, "a")))
	require.NoError(t, m.Shutdown(ctx))
	require.NoError(t, bus.Close(ctx))

	saved, ok := target.get(s.ID)
	require.True(t, ok)
	assert.Len(t, saved.Turns, 2)
}
