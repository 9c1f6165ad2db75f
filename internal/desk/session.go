// Package desk wires one browser tab's state containers into a session and
// keeps a registry of live sessions.
package desk

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/order-desk/internal/audit"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/composer"
	"github.com/kiwari-pos/order-desk/internal/dispatch"
	"github.com/kiwari-pos/order-desk/internal/loader"
	"github.com/kiwari-pos/order-desk/internal/rows"
	"github.com/kiwari-pos/order-desk/internal/schedule"
	"github.com/kiwari-pos/order-desk/internal/serials"
	"github.com/kiwari-pos/order-desk/internal/store"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"github.com/kiwari-pos/order-desk/internal/ws"
	"go.uber.org/zap"
)

// Event types pushed in addition to the store's.
const (
	EventRowChanged     = "row.changed"
	EventNotification   = "notification"
	EventOrderSubmitted = "composer.submitted"
	EventSessionClosed  = "session.closed"
)

// Publisher pushes events to a session's browser tab. Satisfied by *ws.Hub.
type Publisher interface {
	BroadcastToSession(sessionID uuid.UUID, event ws.Event)
	CloseSession(sessionID uuid.UUID)
}

// Options configure the sessions a Registry creates.
type Options struct {
	PageSize       int
	ReconcileDelay time.Duration
	TTL            time.Duration
	// Clock drives reconciliation timers; nil means real time.
	Clock schedule.Clock
}

// Session is the state of one browser tab.
type Session struct {
	ID         uuid.UUID
	Auth       *auth.Session
	Client     *upstream.Client
	Store      *store.Store
	Loader     *loader.Loader
	Dispatcher *dispatch.Dispatcher
	Rows       *rows.Rows
	Composer   *composer.Composer
	Serials    *serials.Editor

	ctx      context.Context
	cancel   context.CancelFunc
	pub      Publisher
	log      *zap.SugaredLogger
	lastSeen atomic.Int64
	closed   atomic.Bool
}

func newSession(base *upstream.Client, pub Publisher, sink audit.Sink, opts Options, log *zap.SugaredLogger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:     uuid.New(),
		Auth:   auth.NewSession(),
		ctx:    ctx,
		cancel: cancel,
		pub:    pub,
	}
	s.log = log.With("session_id", s.ID)
	s.Client = base.WithTokens(s.Auth)

	s.Store = store.New(store.WithObserver(s.onStoreEvent))
	s.Loader = loader.New(s.Client, s.Store, opts.PageSize, s.log)
	s.Dispatcher = dispatch.New(s.Client, s.Store, s.Loader,
		dispatch.WithClock(opts.Clock),
		dispatch.WithReconcileDelay(opts.ReconcileDelay),
		dispatch.WithLogger(s.log),
		dispatch.WithAudit(sink, s.ID.String(), s.Auth.Subject),
		dispatch.WithNotifier(func(n dispatch.Notification) { s.publish(EventNotification, n) }),
		dispatch.WithContext(ctx),
	)
	s.Rows = rows.New(ctx, s.Client, s.Store, s.log, func(v rows.View) { s.publish(EventRowChanged, v) })
	s.Composer = composer.New(s.Client, s.log, s.onOrderSubmitted)
	s.Serials = serials.NewEditor(s.Client, s.Dispatcher)
	s.touch()
	return s
}

// Authorize installs the bearer credential of the latest request. An
// anonymous request leaves the stored credential as it is.
func (s *Session) Authorize(token string, claims *auth.Claims) {
	if token == "" {
		return
	}
	s.Auth.Set(token, claims)
}

// Refresh reconciles the cached list with the upstream.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Loader.Reconcile(ctx)
}

// Close stops timers and background fetches and disconnects the tab.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.Dispatcher.Close()
	s.cancel()
	s.publish(EventSessionClosed, map[string]string{"session_id": s.ID.String()})
	if s.pub != nil {
		s.pub.CloseSession(s.ID)
	}
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) onStoreEvent(e store.Event) {
	if e.Type == store.EventRemoved && s.Rows != nil {
		s.Rows.Forget(e.OrderID)
	}
	s.publish(e.Type, e)
}

func (s *Session) onOrderSubmitted(orderID string) {
	s.publish(EventOrderSubmitted, map[string]string{"order_id": orderID})
	if err := s.Loader.Reconcile(s.ctx); err != nil {
		s.log.Warnw("refresh after order submit failed", "order_id", orderID, "err", err)
		s.publish(EventNotification, dispatch.Notification{Level: "error", OrderID: orderID, Message: err.Error()})
	}
}

func (s *Session) publish(eventType string, v any) {
	if s.pub == nil {
		return
	}
	ev, err := ws.NewEvent(eventType, v)
	if err != nil {
		s.log.Warnw("encode event failed", "type", eventType, "err", err)
		return
	}
	s.pub.BroadcastToSession(s.ID, ev)
}
