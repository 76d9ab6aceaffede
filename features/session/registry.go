package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"labelflow/internal/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
)

// Registry owns open sessions. Entries idle for longer than the TTL are
// evicted by Sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewRegistry builds a registry. now is the clock used for idle tracking;
// nil means time.Now.
func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
	}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.lastUsed = r.now()
	r.sessions[s.ID] = s
	metrics.SessionsOpen.Set(float64(len(r.sessions)))
}

// Get returns the session and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.lastUsed = r.now()
	return s, nil
}

// ExpiresAt reports when the session becomes eligible for eviction.
func (r *Registry) ExpiresAt(s *Session) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return s.lastUsed.Add(r.ttl)
}

// Remove closes and forgets the session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	metrics.SessionsOpen.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.close()
	return nil
}

// Sweep evicts idle sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	now := r.now()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.lastUsed) >= r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	metrics.SessionsOpen.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Info("evicted idle sessions", "count", n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	metrics.SessionsOpen.Set(0)
	r.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}
