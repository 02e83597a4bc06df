package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bibleai-be/pkg/store"

	goredis "github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for session snapshots
	sessionKeyPrefix = "session:"
	defaultTTL       = 24 * time.Hour
)

// SessionSnapshotRepository persists session snapshots as JSON with a TTL
type SessionSnapshotRepository struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewSessionSnapshotRepository(client *goredis.Client, ttl time.Duration) *SessionSnapshotRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &SessionSnapshotRepository{client: client, ttl: ttl}
}

// Load returns nil when no snapshot exists. The TTL is refreshed on read.
func (r *SessionSnapshotRepository) Load(ctx context.Context, id string) (*store.Session, error) {
	key := Key(id)
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot %s: %w", id, err)
	}

	session, err := Decode(val)
	if err != nil {
		return nil, err
	}

	_ = r.client.Expire(ctx, key, r.ttl).Err()
	return session, nil
}

func (r *SessionSnapshotRepository) Save(ctx context.Context, session *store.Session) error {
	val, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}
	if err := r.client.Set(ctx, Key(session.ID), val, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session snapshot %s: %w", session.ID, err)
	}
	return nil
}

func (r *SessionSnapshotRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, Key(id)).Err()
}

func (r *SessionSnapshotRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *SessionSnapshotRepository) Close() error {
	return r.client.Close()
}

// Key is the Redis key of a session snapshot
func Key(id string) string {
	return sessionKeyPrefix + id
}

// Decode parses a stored snapshot
func Decode(val []byte) (*store.Session, error) {
	var session store.Session
	if err := json.Unmarshal(val, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("session snapshot without id")
	}
	return &session, nil
}
