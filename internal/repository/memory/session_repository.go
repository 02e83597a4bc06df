package memory

import (
	"bibleai-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository holds live sessions in go-cache. Items never expire on their own:
// the session manager sweeps idle sessions so that a held session is never evicted.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.NoExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Items returns the live sessions. The pointers are shared; callers must hold the session lock to read them.
func (r *SessionRepository) Items() []*store.Session {
	items := r.cache.Items()
	out := make([]*store.Session, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(*store.Session))
	}
	return out
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
