package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

// Registry owns the live sessions of a collector.
// Thread-safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	clock  clock.Clock
	logger *zap.Logger
	opts   []telemetry.Option
}

// NewRegistry creates an empty registry. opts are applied to every
// session monitor after the registry's clock and logger.
func NewRegistry(c clock.Clock, logger *zap.Logger, opts ...telemetry.Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		clock:    c,
		logger:   logger,
		opts:     opts,
	}
}

// Create starts a session with a random id.
func (r *Registry) Create(user telemetry.UserInfo) *Session {
	s, _ := r.Ensure(uuid.NewString(), user)
	return s
}

// Ensure returns the session with id, creating it when missing.
// created reports whether a new session was made.
func (r *Registry) Ensure(id string, user telemetry.UserInfo) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.Touch(r.clock.Now())
		return s, false
	}

	opts := make([]telemetry.Option, 0, len(r.opts)+2)
	opts = append(opts,
		telemetry.WithClock(r.clock),
		telemetry.WithLogger(r.logger.With(zap.String("session", id))))
	opts = append(opts, r.opts...)

	s = New(id, r.clock.Now(), user, opts...)
	r.sessions[id] = s
	r.logger.Debug("session created", zap.String("session", id), zap.String("platform", user.Platform))
	return s, true
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete closes and removes the session with id.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

// IDs returns the session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle closes and removes every session untouched for at least idle.
// It returns the evicted ids in sorted order.
func (r *Registry) EvictIdle(idle time.Duration) []string {
	if idle <= 0 {
		return nil
	}
	now := r.clock.Now()

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastActive()) >= idle {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(evicted))
	for _, s := range evicted {
		s.Close()
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	if len(ids) > 0 {
		r.logger.Info("evicted idle sessions", zap.Int("count", len(ids)), zap.Duration("idle", idle))
	}
	return ids
}

// Close closes every session and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
