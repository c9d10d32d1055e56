package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/hydrate"
	"github.com/careloop/draft-api/internal/remote"
	"github.com/careloop/draft-api/pkg/metrics"
)

// Registry hosts the live sessions, one per device/patient pairing.
type Registry struct {
	store    draftstore.Store
	remote   remote.Client
	resolver *hydrate.Resolver
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(store draftstore.Store, client remote.Client, resolver *hydrate.Resolver, logger zerolog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		store:    store,
		remote:   client,
		resolver: resolver,
		logger:   logger.With().Str("component", "session_registry").Logger(),
		metrics:  m,
		sessions: make(map[string]*Session),
	}
}

// Create builds and registers a new session.
func (r *Registry) Create(opts Options) *Session {
	s := New(opts, r.store, r.remote, r.resolver, r.logger, r.metrics)

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(count))
	}
	return s
}

// Get returns the session or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Remove tears the session down and drops it from the registry. Removing an
// unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if ok {
		s.Teardown()
	}
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(count))
	}
}

// ExpireIdle tears down sessions that have seen no activity for maxIdle.
// Returns the number expired.
func (r *Registry) ExpireIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	for _, s := range stale {
		s.Teardown()
	}
	if len(stale) > 0 {
		r.logger.Info().Int("expired", len(stale)).Msg("expired idle sessions")
	}
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(float64(count))
	}
	return len(stale)
}

// Shutdown tears down every live session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Teardown()
	}
	if r.metrics != nil {
		r.metrics.ActiveSessions.Set(0)
	}
}
