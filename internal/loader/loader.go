// Package loader pages the order list into the store and runs the full
// reconciliation refetch.
package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/store"
	"go.uber.org/zap"
)

// DefaultPageSize is used when New is given a non-positive page size.
const DefaultPageSize = 50

// Pager fetches one page of the filtered order list.
// Satisfied by *upstream.Client.
type Pager interface {
	ListOrders(ctx context.Context, f model.Filter, limit, offset int) ([]model.Order, error)
}

// State is a snapshot of the pagination state.
type State struct {
	Filter        model.Filter `json:"filter"`
	Offset        int          `json:"offset"`
	HasMore       bool         `json:"has_more"`
	IsLoadingMore bool         `json:"is_loading_more"`
}

// Loader owns the pagination state for one desk session.
type Loader struct {
	pager    Pager
	store    *store.Store
	pageSize int
	log      *zap.SugaredLogger

	mu      sync.Mutex
	filter  model.Filter
	offset  int
	hasMore bool
	loading bool
	// gen changes on filter reset; pages from an older gen are dropped.
	gen uint64
	// epoch changes on every reconciliation.
	epoch uint64
}

// New creates a Loader with an empty filter.
func New(pager Pager, s *store.Store, pageSize int, log *zap.SugaredLogger) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loader{pager: pager, store: s, pageSize: pageSize, log: log, hasMore: true}
}

// PageSize is the fixed page size.
func (l *Loader) PageSize() int {
	return l.pageSize
}

// State returns the current pagination state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{Filter: l.filter, Offset: l.offset, HasMore: l.hasMore, IsLoadingMore: l.loading}
}

// Filter returns the active filter.
func (l *Loader) Filter() model.Filter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter
}

// LoadMore fetches the next page and appends it. It returns immediately
// with (0, nil) when there is nothing more to load or a load is already in
// flight; such calls are dropped, not queued.
func (l *Loader) LoadMore(ctx context.Context) (int, error) {
	l.mu.Lock()
	if !l.hasMore || l.loading {
		l.mu.Unlock()
		return 0, nil
	}
	l.loading = true
	gen, epoch, offset, f := l.gen, l.epoch, l.offset, l.filter
	l.mu.Unlock()

	page, err := l.pager.ListOrders(ctx, f, l.pageSize, offset)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		// The filter was reset while this page was in flight; Reset already
		// released the loading flag.
		l.log.Debugw("dropping stale page", "offset", offset)
		return 0, nil
	}
	l.loading = false
	if err != nil {
		return 0, fmt.Errorf("load page at offset %d: %w", offset, err)
	}

	l.store.Append(page)
	if epoch != l.epoch {
		// A reconciliation replaced the list meanwhile; resync the offset
		// to what is actually cached.
		l.offset = l.store.Len()
	} else {
		l.offset += len(page)
	}
	l.hasMore = len(page) == l.pageSize
	return len(page), nil
}

// Reset installs a new filter, discards the cached list and fetches the
// first page.
func (l *Loader) Reset(ctx context.Context, f model.Filter) (int, error) {
	l.mu.Lock()
	l.filter = f
	l.offset = 0
	l.hasMore = true
	l.loading = false
	l.gen++
	l.mu.Unlock()

	l.store.Clear()
	return l.LoadMore(ctx)
}

// Reconcile refetches everything loaded so far under the current filter
// and replaces the cache with the result.
func (l *Loader) Reconcile(ctx context.Context) error {
	l.mu.Lock()
	loaded, hadMore := l.offset, l.hasMore
	limit := max(loaded, l.pageSize)
	gen, f := l.gen, l.filter
	l.mu.Unlock()

	records, err := l.pager.ListOrders(ctx, f, limit, 0)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return nil
	}
	l.store.UpsertAll(records)
	l.epoch++
	l.offset = len(records)
	// An exhausted list stays exhausted unless the refetch filled rows
	// beyond the window that was already loaded.
	l.hasMore = len(records) == limit && (hadMore || limit > loaded)
	return nil
}
