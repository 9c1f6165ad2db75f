package loader

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/store"
)

// mockPager implements Pager with a configurable function.
type mockPager struct {
	mu    sync.Mutex
	calls []call
	fn    func(ctx context.Context, f model.Filter, limit, offset int) ([]model.Order, error)
}

type call struct {
	filter        model.Filter
	limit, offset int
}

func (m *mockPager) ListOrders(ctx context.Context, f model.Filter, limit, offset int) ([]model.Order, error) {
	m.mu.Lock()
	m.calls = append(m.calls, call{f, limit, offset})
	m.mu.Unlock()
	return m.fn(ctx, f, limit, offset)
}

func (m *mockPager) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// catalog returns a pager over n synthetic orders.
func catalog(n int) *mockPager {
	return &mockPager{fn: func(_ context.Context, _ model.Filter, limit, offset int) ([]model.Order, error) {
		var out []model.Order
		for i := offset; i < n && i < offset+limit; i++ {
			out = append(out, model.Order{OrderID: strconv.Itoa(i)})
		}
		return out, nil
	}}
}

func TestLoadMore_PagesUntilShortPage(t *testing.T) {
	s := store.New()
	p := catalog(25)
	l := New(p, s, 10, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.LoadMore(ctx); err != nil {
			t.Fatalf("load more: %v", err)
		}
	}

	if got := s.Len(); got != 25 {
		t.Errorf("cached: got %d, want 25", got)
	}
	st := l.State()
	if st.Offset != 25 || st.HasMore {
		t.Errorf("state: got %+v, want offset 25 and no more", st)
	}
	// 10 + 10 + 5, then hasMore=false prevents further requests.
	if got := p.callCount(); got != 3 {
		t.Errorf("requests: got %d, want 3", got)
	}
}

func TestLoadMore_ConcurrentTriggersCollapse(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	p := &mockPager{fn: func(context.Context, model.Filter, int, int) ([]model.Order, error) {
		entered <- struct{}{}
		<-release
		return []model.Order{{OrderID: "a"}}, nil
	}}
	l := New(p, store.New(), 10, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		l.LoadMore(ctx)
		close(done)
	}()
	<-entered

	if !l.State().IsLoadingMore {
		t.Fatal("expected loading flag while request is pending")
	}
	n, err := l.LoadMore(ctx)
	if n != 0 || err != nil {
		t.Errorf("second trigger: got (%d, %v), want dropped", n, err)
	}

	close(release)
	<-done

	if got := p.callCount(); got != 1 {
		t.Errorf("requests: got %d, want 1", got)
	}
	if l.State().IsLoadingMore {
		t.Error("loading flag not cleared")
	}
}

func TestLoadMore_ErrorKeepsHasMore(t *testing.T) {
	p := &mockPager{fn: func(context.Context, model.Filter, int, int) ([]model.Order, error) {
		return nil, errors.New("boom")
	}}
	l := New(p, store.New(), 10, nil)

	if _, err := l.LoadMore(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	st := l.State()
	if !st.HasMore || st.IsLoadingMore || st.Offset != 0 {
		t.Errorf("state after error: got %+v", st)
	}
}

func TestReset_DiscardsListAndRefetchesFirstPage(t *testing.T) {
	s := store.New()
	p := catalog(30)
	l := New(p, s, 10, nil)
	ctx := context.Background()

	l.LoadMore(ctx)
	l.LoadMore(ctx)

	f := model.Filter{PaymentStatus: "paid"}
	if _, err := l.Reset(ctx, f); err != nil {
		t.Fatalf("reset: %v", err)
	}

	last := p.calls[len(p.calls)-1]
	if last.offset != 0 || last.filter != f {
		t.Errorf("first page after reset: got %+v", last)
	}
	if got := s.Len(); got != 10 {
		t.Errorf("cached after reset: got %d, want 10", got)
	}
	if st := l.State(); st.Offset != 10 || !st.HasMore || st.Filter != f {
		t.Errorf("state after reset: got %+v", st)
	}
}

func TestReset_DropsInFlightPage(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	var first sync.Once
	p := &mockPager{fn: func(_ context.Context, f model.Filter, _, _ int) ([]model.Order, error) {
		blocked := false
		first.Do(func() { blocked = true })
		if blocked {
			entered <- struct{}{}
			<-release
			return []model.Order{{OrderID: "stale"}}, nil
		}
		return []model.Order{{OrderID: "fresh"}}, nil
	}}
	s := store.New()
	l := New(p, s, 10, nil)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		l.LoadMore(ctx)
		close(done)
	}()
	<-entered

	if _, err := l.Reset(ctx, model.Filter{Channel: "online"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	close(release)
	<-done

	if s.Has("stale") {
		t.Error("page from previous filter leaked into the list")
	}
	if !s.Has("fresh") {
		t.Error("first page of new filter missing")
	}
	if got := l.State().Offset; got != 1 {
		t.Errorf("offset: got %d, want 1", got)
	}
}

func TestReconcile_RefetchesLoadedWindow(t *testing.T) {
	s := store.New()
	p := catalog(35)
	l := New(p, s, 10, nil)
	ctx := context.Background()

	l.LoadMore(ctx)
	l.LoadMore(ctx)
	s.Remove("3")

	if err := l.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	last := p.calls[len(p.calls)-1]
	if last.offset != 0 || last.limit != 20 {
		t.Errorf("reconcile request: got %+v, want limit 20 offset 0", last)
	}
	if !s.Has("3") || s.Len() != 20 {
		t.Errorf("cache after reconcile: has(3)=%v len=%d", s.Has("3"), s.Len())
	}
	if st := l.State(); st.Offset != 20 || !st.HasMore {
		t.Errorf("state after reconcile: got %+v", st)
	}
}

func TestReconcile_ExhaustedListStaysExhausted(t *testing.T) {
	s := store.New()
	p := catalog(73)
	l := New(p, s, 50, nil)
	ctx := context.Background()

	l.LoadMore(ctx)
	l.LoadMore(ctx)
	if st := l.State(); st.Offset != 73 || st.HasMore {
		t.Fatalf("state before reconcile: got %+v, want offset 73 and no more", st)
	}

	if err := l.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if st := l.State(); st.Offset != 73 || st.HasMore {
		t.Errorf("state after reconcile: got %+v, want offset 73 and no more", st)
	}

	calls := p.callCount()
	if n, err := l.LoadMore(ctx); err != nil || n != 0 {
		t.Fatalf("load more: got %d, %v", n, err)
	}
	if got := p.callCount(); got != calls {
		t.Errorf("pager calls: got %d, want %d", got, calls)
	}
}

func TestReconcile_ShortListGrowsPastFirstPage(t *testing.T) {
	s := store.New()
	p := catalog(3)
	l := New(p, s, 10, nil)
	ctx := context.Background()

	l.LoadMore(ctx)
	// New orders arrive upstream.
	p.fn = catalog(12).fn

	if err := l.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if st := l.State(); st.Offset != 10 || !st.HasMore {
		t.Errorf("state after reconcile: got %+v, want offset 10 and more", st)
	}
}
