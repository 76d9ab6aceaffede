package session

import (
	"context"
	"sync"
	"time"

	"labelflow/features/workforce"
	"labelflow/internal/draft"
	"labelflow/internal/template"
)

const (
	ModeRepeat    = "repeat"
	ModeBroadcast = "broadcast"
)

// Assignment is how committed drafts are handed to workers.
type Assignment struct {
	Mode        string             `json:"mode"`
	RepeatCount int                `json:"repeat_count"`
	Criteria    workforce.Criteria `json:"criteria"`
	Workers     []workforce.Worker `json:"workers,omitempty"`
}

// Session is one operator's draft workspace bound to a loaded template.
type Session struct {
	ID       string
	Template *template.Template
	Drafts   *draft.Store

	// op serializes commit, CSV import and generation.
	op sync.Mutex

	mu         sync.Mutex
	assignment Assignment

	ctx      context.Context
	cancel   context.CancelFunc
	lastUsed time.Time
}

func newSession(id string, tmpl *template.Template) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         id,
		Template:   tmpl,
		Drafts:     draft.NewStore(len(tmpl.Placeholders)),
		assignment: Assignment{Mode: ModeRepeat, RepeatCount: 1},
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (s *Session) Assignment() Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.assignment
	a.Workers = append([]workforce.Worker(nil), s.assignment.Workers...)
	return a
}

func (s *Session) setAssignment(a Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignment = a
}

// Closed reports whether the session was closed or evicted.
func (s *Session) Closed() bool {
	return s.ctx.Err() != nil
}

func (s *Session) close() {
	s.cancel()
}

// bind returns a context cancelled when either parent or the session ends.
func (s *Session) bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
