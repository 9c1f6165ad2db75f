package desk

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/order-desk/internal/audit"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"go.uber.org/zap"
)

// DefaultTTL is the idle time after which a session is closed.
const DefaultTTL = 12 * time.Hour

var ErrSessionNotFound = errors.New("desk session not found")

// Registry holds the live desk sessions.
type Registry struct {
	base  *upstream.Client
	pub   Publisher
	audit audit.Sink
	opts  Options
	log   *zap.SugaredLogger
	now   func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(base *upstream.Client, pub Publisher, sink audit.Sink, opts Options, log *zap.SugaredLogger) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if sink == nil {
		sink = audit.Nop{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Registry{
		base:     base,
		pub:      pub,
		audit:    sink,
		opts:     opts,
		log:      log,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create opens a session, authorized with token when one is given.
func (r *Registry) Create(token string, claims *auth.Claims) *Session {
	s := newSession(r.base, r.pub, r.audit, r.opts, r.log)
	s.Authorize(token, claims)

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Infow("desk session opened", "session_id", s.ID, "subject", s.Auth.Subject(), "sessions", n)
	return s
}

// Get returns a live session and marks it as used. A session idle past the
// TTL is closed and reported as not found.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok && r.expired(s) {
		delete(r.sessions, id)
		r.mu.Unlock()
		s.Close()
		return nil, ErrSessionNotFound
	}
	r.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch()
	return s, nil
}

// Close ends a session.
func (r *Registry) Close(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	r.log.Infow("desk session closed", "session_id", id)
	return nil
}

// Sweep closes idle sessions and returns how many it closed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if r.expired(s) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		r.log.Infow("expired desk sessions", "count", len(idle))
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

// CloseAll ends every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[uuid.UUID]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) expired(s *Session) bool {
	return r.now().Sub(s.idleSince()) > r.opts.TTL
}
