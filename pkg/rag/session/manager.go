package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"bibleai-be/pkg/store"

	"github.com/google/uuid"
)

// Store holds live sessions. Implementations need not be safe for concurrent
// mutation of one session: the manager serializes access per id.
type Store interface {
	Get(id string) (*store.Session, bool)
	Save(session *store.Session)
	Delete(id string)
	Items() []*store.Session
}

// Snapshots persists sessions beyond the process. Load returns nil, nil when absent.
type Snapshots interface {
	Load(ctx context.Context, id string) (*store.Session, error)
	Save(ctx context.Context, session *store.Session) error
	Delete(ctx context.Context, id string) error
}

// Config controls expiry
type Config struct {
	TTL           time.Duration // idle time before a session is swept
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{TTL: time.Hour, SweepInterval: 10 * time.Minute}
}

// slot is a ctx-aware per-session mutex; refs counts holders and waiters
type slot struct {
	ch   chan struct{}
	refs int
}

// Manager owns conversation state. Operations on one id are serialized,
// operations on different ids never share a lock.
type Manager struct {
	live      Store
	snapshots Snapshots // optional
	cfg       Config
	logger    *log.Logger
	now       func() time.Time

	mu      sync.Mutex
	slots   map[string]*slot
	deleted map[string]time.Time // explicitly deleted ids, kept for one TTL
}

func NewManager(live Store, snapshots Snapshots, cfg Config, logger *log.Logger) *Manager {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	return &Manager{
		live:      live,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		slots:     make(map[string]*slot),
		deleted:   make(map[string]time.Time),
	}
}

func (m *Manager) acquire(ctx context.Context, id string) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[id] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(id, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.unref(id, s)
		})
	}, nil
}

func (m *Manager) unref(id string, s *slot) {
	m.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, id)
	}
	m.mu.Unlock()
}

// load finds a live session or restores its snapshot. Caller holds the lock.
func (m *Manager) load(ctx context.Context, id string) *store.Session {
	if s, ok := m.live.Get(id); ok {
		return s
	}
	if m.snapshots == nil {
		return nil
	}
	s, err := m.snapshots.Load(ctx, id)
	if err != nil {
		m.logf("[SESSION] Snapshot restore failed for %s: %v", id, err)
		return nil
	}
	if s == nil {
		return nil
	}
	if m.now().Sub(s.LastActiveAt) > m.cfg.TTL {
		return nil
	}
	m.live.Save(s)
	m.logf("[SESSION] Restored %s from snapshot (%d turns)", id, len(s.Turns))
	return s
}

// GetOrCreate returns a copy of the session. An empty or unknown id allocates a
// new session with a fresh id; created reports that case.
func (m *Manager) GetOrCreate(ctx context.Context, id string) (sess *store.Session, created bool, err error) {
	if id != "" {
		release, err := m.acquire(ctx, id)
		if err != nil {
			return nil, false, err
		}
		defer release()

		if s := m.load(ctx, id); s != nil {
			s.LastActiveAt = m.now()
			return s.Clone(), false, nil
		}
	}

	now := m.now()
	s := &store.Session{
		ID:           uuid.NewString(),
		Turns:        []store.Turn{},
		CreatedAt:    now,
		LastActiveAt: now,
	}
	m.live.Save(s)
	m.logf("[SESSION] Created %s", s.ID)
	return s.Clone(), true, nil
}

// AppendTurns atomically appends turns in order. A session swept since
// GetOrCreate is recreated under the same id so the exchange is not lost;
// one deleted explicitly stays deleted and the turns are dropped.
func (m *Manager) AppendTurns(ctx context.Context, id string, turns ...store.Turn) error {
	if id == "" {
		return fmt.Errorf("append turns: empty session id")
	}
	release, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	now := m.now()
	s := m.load(ctx, id)
	if s == nil {
		if m.wasDeleted(id) {
			m.logf("[SESSION] %s deleted during the turn, dropping %d turn(s)", id, len(turns))
			return nil
		}
		s = &store.Session{ID: id, CreatedAt: now}
		m.live.Save(s)
		m.logf("[SESSION] %s vanished before append, recreated", id)
	}
	for _, t := range turns {
		if t.Timestamp.IsZero() {
			t.Timestamp = now
		}
		s.Turns = append(s.Turns, t)
	}
	s.LastActiveAt = now
	m.persist(ctx, s)
	return nil
}

// History returns the turns in append order. An unknown id has no history.
func (m *Manager) History(ctx context.Context, id string) ([]store.Turn, error) {
	release, err := m.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	s := m.load(ctx, id)
	if s == nil {
		return []store.Turn{}, nil
	}
	return s.Clone().Turns, nil
}

// SetPreferences replaces the session's preferences
func (m *Manager) SetPreferences(ctx context.Context, id string, prefs store.Preferences) error {
	release, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	s := m.load(ctx, id)
	if s == nil {
		return nil
	}
	s.Preferences = prefs
	s.LastActiveAt = m.now()
	m.persist(ctx, s)
	return nil
}

// Clear empties the history but keeps the session and its preferences. Idempotent.
func (m *Manager) Clear(ctx context.Context, id string) error {
	release, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	s := m.load(ctx, id)
	if s == nil {
		return nil
	}
	s.Turns = []store.Turn{}
	s.LastActiveAt = m.now()
	m.persist(ctx, s)
	m.logf("[SESSION] Cleared %s", id)
	return nil
}

// Delete destroys the session and its snapshot. Idempotent.
func (m *Manager) Delete(ctx context.Context, id string) error {
	release, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	m.live.Delete(id)
	m.mu.Lock()
	m.deleted[id] = m.now()
	m.mu.Unlock()
	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, id); err != nil {
			m.logf("[SESSION] Snapshot delete failed for %s: %v", id, err)
		}
	}
	m.logf("[SESSION] Deleted %s", id)
	return nil
}

// Sweep evicts sessions idle beyond the TTL. A session currently held or
// awaited by an operation is skipped until a later sweep.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	var expired []string

	m.mu.Lock()
	for _, s := range m.live.Items() {
		if _, held := m.slots[s.ID]; held {
			continue
		}
		if now.Sub(s.LastActiveAt) > m.cfg.TTL {
			m.live.Delete(s.ID)
			expired = append(expired, s.ID)
		}
	}
	for id, at := range m.deleted {
		if now.Sub(at) > m.cfg.TTL {
			delete(m.deleted, id)
		}
	}
	m.mu.Unlock()

	if m.snapshots != nil {
		for _, id := range expired {
			if err := m.snapshots.Delete(ctx, id); err != nil {
				m.logf("[SESSION] Snapshot delete failed for %s: %v", id, err)
			}
		}
	}
	if len(expired) > 0 {
		m.logf("[SESSION] Swept %d idle session(s)", len(expired))
	}
	return len(expired)
}

// Run sweeps on the configured interval until ctx is done
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Shutdown writes a final snapshot of every live session
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}
	var firstErr error
	flushed := 0
	for _, s := range m.live.Items() {
		release, err := m.acquire(ctx, s.ID)
		if err != nil {
			return err
		}
		if err := m.snapshots.Save(ctx, s.Clone()); err != nil && firstErr == nil {
			firstErr = err
		} else if err == nil {
			flushed++
		}
		release()
	}
	m.logf("[SESSION] Flushed %d session snapshot(s)", flushed)
	return firstErr
}

// Len is the number of live sessions
func (m *Manager) Len() int {
	return len(m.live.Items())
}

func (m *Manager) wasDeleted(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.deleted[id]
	return ok
}

// persist saves a copy of the session. Caller holds the lock.
func (m *Manager) persist(ctx context.Context, s *store.Session) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.Save(ctx, s.Clone()); err != nil {
		m.logf("[SESSION] Snapshot save failed for %s: %v", s.ID, err)
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
