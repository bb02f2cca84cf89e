package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/zonemap/zonemap/pkg/log"
)

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Store keeps sessions in memory and forgets idle ones.
type Store struct {
	fetcher Fetcher
	maxZoom float64
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// Configured sets up the Store based on flags.
func Configured(f Fetcher) *Store {
	ttl := lflag.Duration("session-ttl", time.Hour, "How long an idle session is kept")
	maxZoom := 6.0
	lflag.JSON(&maxZoom, "map-max-zoom", maxZoom, "Maximum zoom when fitting the map to a clicked zone")

	s := NewStore(f, 0, 0)
	lflag.Do(func() {
		s.ttl = *ttl
		s.maxZoom = maxZoom
	})
	return s
}

// NewStore returns an empty Store. A zero ttl keeps sessions forever.
func NewStore(f Fetcher, maxZoom float64, ttl time.Duration) *Store {
	return &Store{
		fetcher:  f,
		maxZoom:  maxZoom,
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]*entry{},
	}
}

// Get returns a live session and marks it as seen.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.sessions, id)
		e.session.Close()
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

// Create starts a new session with a random id.
func (s *Store) Create(ctx context.Context) *Session {
	sess := New(uuid.NewString(), s.fetcher, s.maxZoom)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(ctx)
	s.sessions[sess.ID] = &entry{session: sess, lastSeen: s.now()}
	log.Ctx(ctx).DebugContext(ctx, "created session", slog.String("sessionID", sess.ID))
	return sess
}

// Len is the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

func (s *Store) pruneLocked(ctx context.Context) {
	now := s.now()
	var pruned int
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			e.session.Close()
			pruned++
		}
	}
	if pruned > 0 {
		log.Ctx(ctx).DebugContext(ctx, "pruned idle sessions", slog.Int("count", pruned))
	}
}
