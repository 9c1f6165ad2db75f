package desk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiwari-pos/order-desk/internal/auth"
	"github.com/kiwari-pos/order-desk/internal/dispatch"
	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/rows"
	"github.com/kiwari-pos/order-desk/internal/schedule"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"github.com/kiwari-pos/order-desk/internal/ws"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	closed []uuid.UUID
}

func (p *recordingPublisher) BroadcastToSession(id uuid.UUID, e ws.Event) {
	p.mu.Lock()
	p.events = append(p.events, e.Type)
	p.mu.Unlock()
}

func (p *recordingPublisher) CloseSession(id uuid.UUID) {
	p.mu.Lock()
	p.closed = append(p.closed, id)
	p.mu.Unlock()
}

func (p *recordingPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}

// fakeAPI serves a fixed set of orders and records the auth header.
type fakeAPI struct {
	mu         sync.Mutex
	orders     []model.Order
	authHeader string
}

func (f *fakeAPI) handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/orders", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.authHeader = r.Header.Get("Authorization")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := min(offset+limit, len(f.orders))
		page := []model.Order{}
		if offset < end {
			page = f.orders[offset:end]
		}
		json.NewEncoder(w).Encode(page)
	})
	r.Get("/orders/{id}/details", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":null,"items":[],"remarks":"leave at gate"}`))
	})
	r.Delete("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, o := range f.orders {
			if o.OrderID == id {
				f.orders = append(f.orders[:i], f.orders[i+1:]...)
				break
			}
		}
		w.Write([]byte(`{"message":"deleted"}`))
	})
	return r
}

func newTestRegistry(t *testing.T, n int) (*Registry, *fakeAPI, *recordingPublisher, *schedule.FakeClock) {
	t.Helper()
	api := &fakeAPI{}
	for i := 1; i <= n; i++ {
		api.orders = append(api.orders, model.Order{OrderID: fmt.Sprintf("ORD-%d", i), PaymentStatus: "pending"})
	}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	pub := &recordingPublisher{}
	clock := schedule.NewFakeClock()
	reg := NewRegistry(upstream.New(srv.URL), pub, nil, Options{PageSize: 2, ReconcileDelay: time.Second, Clock: clock}, nil)
	t.Cleanup(reg.CloseAll)
	return reg, api, pub, clock
}

func TestSession_LoadExpandDelete(t *testing.T) {
	reg, api, pub, clock := newTestRegistry(t, 3)
	s := reg.Create("", nil)
	ctx := context.Background()

	if _, err := s.Loader.Reset(ctx, model.Filter{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := s.Loader.LoadMore(ctx); err != nil {
		t.Fatalf("load more: %v", err)
	}
	if got := s.Store.Len(); got != 3 {
		t.Fatalf("cached orders: got %d, want 3", got)
	}

	if _, err := s.Rows.Toggle("ORD-2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	s.Rows.Wait()
	if v := s.Rows.View("ORD-2"); v.State != rows.Expanded || v.Detail == nil {
		t.Fatalf("row: got %+v", v)
	}

	if _, err := s.Dispatcher.Dispatch(ctx, dispatch.DeleteOrder{OrderID: "ORD-2"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Store.Has("ORD-2") {
		t.Error("order still cached")
	}
	if _, ok := s.Store.Detail("ORD-2"); ok {
		t.Error("detail still cached")
	}
	if v := s.Rows.View("ORD-2"); v.State != rows.Collapsed {
		t.Errorf("row state after delete: %s", v.State)
	}
	if _, err := s.Rows.Toggle("ORD-2"); err == nil {
		t.Error("expanding a deleted order should fail")
	}

	clock.Advance(time.Second)
	if got := s.Store.Len(); got != 2 {
		t.Errorf("after reconcile: got %d orders, want 2", got)
	}
	if len(api.orders) != 2 {
		t.Errorf("upstream orders: got %d", len(api.orders))
	}

	for _, e := range []string{"orders.replaced", "orders.appended", "order.removed", EventRowChanged} {
		if !pub.has(e) {
			t.Errorf("event %s not published", e)
		}
	}
}

func TestSession_ForwardsBearer(t *testing.T) {
	reg, api, _, _ := newTestRegistry(t, 1)
	claims := &auth.Claims{}
	claims.Subject = "user_1"
	s := reg.Create("tok-abc", claims)

	if _, err := s.Loader.Reset(context.Background(), model.Filter{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if api.authHeader != "Bearer tok-abc" {
		t.Errorf("auth header: got %q", api.authHeader)
	}

	s.Authorize("", nil)
	if tok, _ := s.Auth.Token(); tok != "tok-abc" {
		t.Errorf("anonymous request should keep credential, got %q", tok)
	}
}

func TestRegistry_GetAndClose(t *testing.T) {
	reg, _, pub, _ := newTestRegistry(t, 0)
	s := reg.Create("", nil)

	got, err := reg.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("get: %v, %v", got, err)
	}
	if err := reg.Close(s.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := reg.Get(s.ID); err != ErrSessionNotFound {
		t.Errorf("after close: got %v", err)
	}
	if err := reg.Close(s.ID); err != ErrSessionNotFound {
		t.Errorf("second close: got %v", err)
	}
	if len(pub.closed) != 1 {
		t.Errorf("hub closes: got %d, want 1", len(pub.closed))
	}
}

func TestRegistry_ExpiresIdleSessions(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t, 0)
	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.opts.TTL = time.Hour

	idle := reg.Create("", nil)
	fresh := reg.Create("", nil)
	idle.lastSeen.Store(now.Add(-2 * time.Hour).UnixNano())

	if _, err := reg.Get(idle.ID); err != ErrSessionNotFound {
		t.Errorf("idle session: got %v", err)
	}

	fresh.lastSeen.Store(now.Add(-90 * time.Minute).UnixNano())
	if n := reg.Sweep(); n != 1 {
		t.Errorf("swept: got %d, want 1", n)
	}
	if reg.Len() != 0 {
		t.Errorf("live sessions: got %d", reg.Len())
	}
}

func TestSession_CloseStopsReconcile(t *testing.T) {
	reg, api, _, clock := newTestRegistry(t, 1)
	s := reg.Create("", nil)
	ctx := context.Background()
	s.Loader.Reset(ctx, model.Filter{})

	s.Dispatcher.Dispatch(ctx, dispatch.UpdateRemarks{OrderID: "ORD-1", Remarks: "x"})
	api.mu.Lock()
	api.authHeader = "untouched"
	api.mu.Unlock()

	s.Close()
	clock.Advance(time.Second)

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.authHeader != "untouched" {
		t.Error("reconcile ran after close")
	}
}
