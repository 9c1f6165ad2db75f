// Package store holds a desk session's order cache and its per-order detail
// cache. These methods are the only mutation entry points for either cache.
package store

import (
	"errors"
	"sync"

	"github.com/kiwari-pos/order-desk/internal/model"
)

// ErrNotFound is returned by Update for an id that is not cached.
var ErrNotFound = errors.New("order not cached")

// Event types emitted to the observer after a mutation.
const (
	EventReplaced = "orders.replaced"
	EventAppended = "orders.appended"
	EventPatched  = "order.patched"
	EventRemoved  = "order.removed"
)

// Event describes a committed cache mutation.
type Event struct {
	Type    string        `json:"type"`
	OrderID string        `json:"order_id,omitempty"`
	Orders  []model.Order `json:"orders,omitempty"`
}

// Patch is a partial update merged into a cached order. Nil fields are left
// untouched.
type Patch struct {
	PaymentStatus  *string
	DeliveryStatus *string
	SerialStatus   *string
	Remarks        *string
	InvoiceNumber  *string
}

func (p Patch) empty() bool {
	return p.PaymentStatus == nil && p.DeliveryStatus == nil && p.SerialStatus == nil &&
		p.Remarks == nil && p.InvoiceNumber == nil
}

func (p Patch) applyTo(o *model.Order) {
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.DeliveryStatus != nil {
		o.DeliveryStatus = *p.DeliveryStatus
	}
	if p.SerialStatus != nil {
		o.SerialStatus = *p.SerialStatus
	}
	if p.Remarks != nil {
		v := *p.Remarks
		o.Remarks = &v
	}
	if p.InvoiceNumber != nil {
		v := *p.InvoiceNumber
		o.InvoiceNumber = &v
	}
}

// Store is the order cache plus the lazily filled detail cache. Listing
// order is preserved: it is the order records were upserted or appended in.
type Store struct {
	mu      sync.RWMutex
	ids     []string
	byID    map[string]*model.Order
	details map[string]model.OrderDetail

	observe func(Event)
}

// Option configures a Store.
type Option func(*Store)

// WithObserver registers fn to be called after each committed mutation.
// fn runs outside the store lock.
func WithObserver(fn func(Event)) Option {
	return func(s *Store) { s.observe = fn }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		byID:    make(map[string]*model.Order),
		details: make(map[string]model.OrderDetail),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UpsertAll replaces the full record set. The detail cache is kept; its
// entries are only dropped by Remove.
func (s *Store) UpsertAll(records []model.Order) {
	ids := make([]string, 0, len(records))
	byID := make(map[string]*model.Order, len(records))
	for _, r := range records {
		if _, dup := byID[r.OrderID]; dup {
			continue
		}
		o := r.Clone()
		ids = append(ids, o.OrderID)
		byID[o.OrderID] = &o
	}

	s.mu.Lock()
	s.ids = ids
	s.byID = byID
	snapshot := s.listLocked()
	s.mu.Unlock()

	s.emit(Event{Type: EventReplaced, Orders: snapshot})
}

// Append adds a page of records, skipping ids already cached. It returns the
// number of records actually added.
func (s *Store) Append(records []model.Order) int {
	var added []model.Order

	s.mu.Lock()
	for _, r := range records {
		if _, ok := s.byID[r.OrderID]; ok {
			continue
		}
		o := r.Clone()
		s.ids = append(s.ids, o.OrderID)
		s.byID[o.OrderID] = &o
		added = append(added, o.Clone())
	}
	s.mu.Unlock()

	if len(added) > 0 {
		s.emit(Event{Type: EventAppended, Orders: added})
	}
	return len(added)
}

// Patch merges p into the cached order. An absent id is a no-op; the return
// value reports whether a record was changed.
func (s *Store) Patch(orderID string, p Patch) bool {
	if p.empty() {
		return false
	}

	s.mu.Lock()
	o, ok := s.byID[orderID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	p.applyTo(o)
	snapshot := o.Clone()
	s.mu.Unlock()

	s.emit(Event{Type: EventPatched, OrderID: orderID, Orders: []model.Order{snapshot}})
	return true
}

// Update runs fn on a copy of the cached order under the store lock and
// commits the copy when fn returns nil. A check-then-modify inside fn is
// atomic with respect to every other mutation.
func (s *Store) Update(orderID string, fn func(o *model.Order) error) error {
	s.mu.Lock()
	o, ok := s.byID[orderID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	next := o.Clone()
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	*o = next
	snapshot := next.Clone()
	s.mu.Unlock()

	s.emit(Event{Type: EventPatched, OrderID: orderID, Orders: []model.Order{snapshot}})
	return nil
}

// Remove deletes the order and its detail entry in one step. An absent id
// is a no-op.
func (s *Store) Remove(orderID string) bool {
	s.mu.Lock()
	_, listed := s.byID[orderID]
	_, cached := s.details[orderID]
	if !listed && !cached {
		s.mu.Unlock()
		return false
	}
	delete(s.byID, orderID)
	delete(s.details, orderID)
	for i, id := range s.ids {
		if id == orderID {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventRemoved, OrderID: orderID})
	return true
}

// Clear discards every listed record. Used when the filter changes.
func (s *Store) Clear() {
	s.UpsertAll(nil)
}

// Get returns a copy of the cached order.
func (s *Store) Get(orderID string) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[orderID]
	if !ok {
		return model.Order{}, false
	}
	return o.Clone(), true
}

// Has reports whether the order is currently listed.
func (s *Store) Has(orderID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[orderID]
	return ok
}

// List returns copies of all cached orders in listing order.
func (s *Store) List() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

// Len is the number of listed orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Detail returns the cached expanded detail for an order.
func (s *Store) Detail(orderID string) (model.OrderDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.details[orderID]
	if !ok {
		return model.OrderDetail{}, false
	}
	return d.Clone(), true
}

// PutDetail caches a fetched detail. It is dropped when the order is no
// longer listed, so a fetch that settles after a delete can't resurrect it.
func (s *Store) PutDetail(orderID string, d model.OrderDetail) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[orderID]; !ok {
		return false
	}
	s.details[orderID] = d.Clone()
	return true
}

func (s *Store) listLocked() []model.Order {
	out := make([]model.Order, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *Store) emit(e Event) {
	if s.observe != nil {
		s.observe(e)
	}
}
