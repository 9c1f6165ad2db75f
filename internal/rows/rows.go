// Package rows tracks the expand/collapse state of order rows and fills the
// detail cache on first expansion.
//
// Each row moves through Collapsed -> Expanding -> Expanded -> Collapsed.
// Re-expanding a row whose detail is cached goes straight to Expanded with
// no fetch. Collapsing while Expanding takes effect immediately; the fetch
// still completes and fills the cache but does not re-open the row.
package rows

import (
	"context"
	"errors"
	"sync"

	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/store"
	"go.uber.org/zap"
)

// ErrUnknownOrder is returned when toggling an id that is not listed.
var ErrUnknownOrder = errors.New("order not listed")

// State of a single row.
type State string

const (
	Collapsed State = "collapsed"
	Expanding State = "expanding"
	Expanded  State = "expanded"
)

// Fetcher loads expanded order detail. Satisfied by *upstream.Client.
type Fetcher interface {
	OrderDetails(ctx context.Context, orderID string) (model.OrderDetail, error)
}

// View is what a row renders.
type View struct {
	OrderID string             `json:"order_id"`
	State   State              `json:"state"`
	Detail  *model.OrderDetail `json:"detail,omitempty"`
	Error   string             `json:"error,omitempty"`
}

type row struct {
	state    State
	inflight bool
	err      error
}

// Rows holds per-order expansion state for one desk session.
type Rows struct {
	ctx      context.Context
	fetcher  Fetcher
	store    *store.Store
	log      *zap.SugaredLogger
	onChange func(View)

	mu   sync.Mutex
	rows map[string]*row
	wg   sync.WaitGroup
}

// New creates Rows. Detail fetches run under ctx, not the caller's request
// context, so they outlive the toggle that started them.
func New(ctx context.Context, f Fetcher, s *store.Store, log *zap.SugaredLogger, onChange func(View)) *Rows {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Rows{ctx: ctx, fetcher: f, store: s, log: log, onChange: onChange, rows: make(map[string]*row)}
}

// Toggle flips a row between collapsed and expanded and returns the new
// view. A fetch is started only when the row opens with no cached detail
// and none is already in flight.
func (r *Rows) Toggle(orderID string) (View, error) {
	r.mu.Lock()
	if !r.store.Has(orderID) {
		delete(r.rows, orderID)
		r.mu.Unlock()
		return View{OrderID: orderID, State: Collapsed}, ErrUnknownOrder
	}

	rw := r.rows[orderID]
	if rw == nil {
		rw = &row{state: Collapsed}
		r.rows[orderID] = rw
	}

	switch rw.state {
	case Collapsed:
		if _, cached := r.store.Detail(orderID); cached {
			rw.state = Expanded
			rw.err = nil
			break
		}
		rw.state = Expanding
		rw.err = nil
		if !rw.inflight {
			rw.inflight = true
			r.wg.Add(1)
			go r.fetch(orderID)
		}
	case Expanding, Expanded:
		rw.state = Collapsed
	}
	v := r.viewLocked(orderID, rw)
	r.mu.Unlock()

	r.emit(v)
	return v, nil
}

// View returns the current view for a row.
func (r *Rows) View(orderID string) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	rw := r.rows[orderID]
	if rw == nil {
		return View{OrderID: orderID, State: Collapsed}
	}
	return r.viewLocked(orderID, rw)
}

// Forget drops the row state of a deleted order.
func (r *Rows) Forget(orderID string) {
	r.mu.Lock()
	delete(r.rows, orderID)
	r.mu.Unlock()
}

// Wait blocks until all in-flight detail fetches have settled.
func (r *Rows) Wait() {
	r.wg.Wait()
}

func (r *Rows) fetch(orderID string) {
	defer r.wg.Done()

	detail, err := r.fetcher.OrderDetails(r.ctx, orderID)

	r.mu.Lock()
	rw := r.rows[orderID]
	if rw == nil {
		// Forgotten while in flight (order deleted).
		r.mu.Unlock()
		return
	}
	rw.inflight = false
	if err != nil {
		r.log.Warnw("order detail fetch failed", "order_id", orderID, "err", err)
		rw.err = err
	} else {
		rw.err = nil
		r.store.PutDetail(orderID, detail)
	}
	if rw.state == Expanding {
		rw.state = Expanded
	}
	v := r.viewLocked(orderID, rw)
	r.mu.Unlock()

	r.emit(v)
}

func (r *Rows) viewLocked(orderID string, rw *row) View {
	v := View{OrderID: orderID, State: rw.state}
	if rw.state == Expanded {
		if d, ok := r.store.Detail(orderID); ok {
			v.Detail = &d
		}
		if rw.err != nil {
			v.Error = rw.err.Error()
		}
	}
	return v
}

func (r *Rows) emit(v View) {
	if r.onChange != nil {
		r.onChange(v)
	}
}
