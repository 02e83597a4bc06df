package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"bibleai-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// SnapshotTopic carries session writes from the request path to the snapshot store
const SnapshotTopic = "session.snapshot"

type snapshotMessage struct {
	Seq     uint64         `json:"seq"`
	ID      string         `json:"id"`
	Deleted bool           `json:"deleted,omitempty"`
	Session *store.Session `json:"session,omitempty"`
}

type applied struct {
	seq uint64
	at  time.Time
}

// SnapshotBus defers snapshot writes to a background consumer over a watermill
// channel. Messages carry a sequence number; a write older than the last one
// applied for the same id is dropped, so a late save never resurrects a delete.
type SnapshotBus struct {
	target Snapshots
	pubSub *gochannel.GoChannel
	logger *log.Logger

	seq     atomic.Uint64
	pending sync.WaitGroup
	done    chan struct{}

	// consumer-owned
	last      map[string]applied
	handled   int
	retention time.Duration
}

func NewSnapshotBus(target Snapshots, pubSub *gochannel.GoChannel, retention time.Duration, logger *log.Logger) (*SnapshotBus, error) {
	messages, err := pubSub.Subscribe(context.Background(), SnapshotTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", SnapshotTopic, err)
	}
	if retention <= 0 {
		retention = 2 * time.Hour
	}

	b := &SnapshotBus{
		target:    target,
		pubSub:    pubSub,
		logger:    logger,
		done:      make(chan struct{}),
		last:      make(map[string]applied),
		retention: retention,
	}
	go b.consume(messages)
	return b, nil
}

// NewGoChannel builds the in-process pub/sub used by the bus
func NewGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
}

// Load reads through to the target
func (b *SnapshotBus) Load(ctx context.Context, id string) (*store.Session, error) {
	return b.target.Load(ctx, id)
}

func (b *SnapshotBus) Save(ctx context.Context, session *store.Session) error {
	return b.publish(snapshotMessage{ID: session.ID, Session: session})
}

func (b *SnapshotBus) Delete(ctx context.Context, id string) error {
	return b.publish(snapshotMessage{ID: id, Deleted: true})
}

func (b *SnapshotBus) publish(m snapshotMessage) error {
	m.Seq = b.seq.Add(1)
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot message: %w", err)
	}

	b.pending.Add(1)
	if err := b.pubSub.Publish(SnapshotTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		b.pending.Done()
		return fmt.Errorf("failed to publish snapshot %s: %w", m.ID, err)
	}
	return nil
}

func (b *SnapshotBus) consume(messages <-chan *message.Message) {
	defer close(b.done)
	for msg := range messages {
		b.handle(msg)
		msg.Ack()
		b.pending.Done()
	}
}

func (b *SnapshotBus) handle(msg *message.Message) {
	var m snapshotMessage
	if err := json.Unmarshal(msg.Payload, &m); err != nil {
		b.logf("[SNAPSHOT] Dropping malformed message %s: %v", msg.UUID, err)
		return
	}

	if prev, ok := b.last[m.ID]; ok && prev.seq > m.Seq {
		return
	}
	now := time.Now()
	b.last[m.ID] = applied{seq: m.Seq, at: now}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if m.Deleted || m.Session == nil {
		err = b.target.Delete(ctx, m.ID)
	} else {
		err = b.target.Save(ctx, m.Session)
	}
	if err != nil {
		b.logf("[SNAPSHOT] Write for %s failed: %v", m.ID, err)
	}

	b.handled++
	if b.handled%1024 == 0 {
		for id, a := range b.last {
			if now.Sub(a.at) > b.retention {
				delete(b.last, id)
			}
		}
	}
}

// Flush waits until every published message has been applied or ctx is done
func (b *SnapshotBus) Flush(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		b.pending.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending writes and stops the consumer
func (b *SnapshotBus) Close(ctx context.Context) error {
	flushErr := b.Flush(ctx)
	if err := b.pubSub.Close(); err != nil {
		return err
	}
	select {
	case <-b.done:
	case <-ctx.Done():
	}
	return flushErr
}

func (b *SnapshotBus) logf(format string, args ...any) {
	if b.logger != nil {
		b.logger.Printf(format, args...)
	}
}
