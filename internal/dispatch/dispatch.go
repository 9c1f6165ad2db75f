// Package dispatch applies order actions: the optimistic cache patch first,
// then the upstream call, then a debounced reconciliation refetch.
//
// Failed optimistic actions keep their patch. The reconciliation scheduled
// after every settled call replaces the cache with server state, so a
// rejected change is corrected on the next refetch.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kiwari-pos/order-desk/internal/audit"
	"github.com/kiwari-pos/order-desk/internal/enum"
	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/schedule"
	"github.com/kiwari-pos/order-desk/internal/store"
	"go.uber.org/zap"
)

// DefaultReconcileDelay is the debounce window before a reconciliation.
const DefaultReconcileDelay = 1500 * time.Millisecond

var (
	ErrUnknownOrder          = errors.New("order not listed")
	ErrInvoiced              = errors.New("order already invoiced; payment status is locked")
	ErrInvoiceInFlight       = errors.New("invoice creation already in progress")
	ErrInvalidDeliveryStatus = errors.New("invalid delivery status")
	ErrInvalidSerialStatus   = errors.New("invalid serial status")
)

// Backend is the upstream order API. Satisfied by *upstream.Client.
type Backend interface {
	UpdateDelivery(ctx context.Context, orderID, status string) error
	TogglePayment(ctx context.Context, orderID string) (string, error)
	UpdateRemarks(ctx context.Context, orderID, remarks string) error
	CreateInvoice(ctx context.Context, orderID string) (string, error)
	DeleteOrder(ctx context.Context, orderID string) error
	InvoicePrintURL(orderID string) string
}

// Reconciler refetches the current list and replaces the cache.
// Satisfied by *loader.Loader.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// Notification is a user-visible message about a failed action.
type Notification struct {
	Level   string `json:"level"`
	OrderID string `json:"order_id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Result describes what a dispatch did.
type Result struct {
	Kind    string       `json:"kind"`
	OrderID string       `json:"order_id"`
	Order   *model.Order `json:"order,omitempty"`
	// NavigateURL is set for download-invoice; the browser opens it.
	NavigateURL string `json:"navigate_url,omitempty"`
	Ignored     bool   `json:"ignored,omitempty"`
}

// Dispatcher routes actions for one desk session.
type Dispatcher struct {
	backend    Backend
	store      *store.Store
	reconciler Reconciler
	debounce   *schedule.Debouncer

	ctx       context.Context
	clock     schedule.Clock
	delay     time.Duration
	log       *zap.SugaredLogger
	audit     audit.Sink
	sessionID string
	subject   func() string
	notify    func(Notification)

	mu        sync.Mutex
	invoicing map[string]bool
}

type Option func(*Dispatcher)

// WithClock replaces the real clock driving the reconciliation timer.
func WithClock(c schedule.Clock) Option {
	return func(d *Dispatcher) { d.clock = c }
}

func WithReconcileDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		if delay > 0 {
			d.delay = delay
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithAudit records every dispatched action. subject, when non-nil,
// names the authenticated user at dispatch time.
func WithAudit(sink audit.Sink, sessionID string, subject func() string) Option {
	return func(d *Dispatcher) {
		d.audit = sink
		d.sessionID = sessionID
		d.subject = subject
	}
}

// WithNotifier receives a Notification for every failed action and
// failed reconciliation.
func WithNotifier(fn func(Notification)) Option {
	return func(d *Dispatcher) { d.notify = fn }
}

// WithContext sets the context reconciliations run under.
func WithContext(ctx context.Context) Option {
	return func(d *Dispatcher) { d.ctx = ctx }
}

// New creates a Dispatcher.
func New(b Backend, s *store.Store, r Reconciler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		backend:    b,
		store:      s,
		reconciler: r,
		ctx:        context.Background(),
		delay:      DefaultReconcileDelay,
		log:        zap.NewNop().Sugar(),
		audit:      audit.Nop{},
		invoicing:  make(map[string]bool),
	}
	for _, o := range opts {
		o(d)
	}
	d.debounce = schedule.NewDebouncer(d.clock, d.delay, d.reconcile)
	return d
}

// Close cancels any pending reconciliation.
func (d *Dispatcher) Close() {
	d.debounce.Close()
}

// ReconcilePending reports whether a reconciliation is scheduled.
func (d *Dispatcher) ReconcilePending() bool {
	return d.debounce.Pending()
}

// InvoiceInFlight reports whether an invoice request for orderID is pending.
func (d *Dispatcher) InvoiceInFlight(orderID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.invoicing[orderID]
}

// Dispatch applies a. Errors are returned for display and also pushed to
// the notifier; they never leave the cache in a state the next
// reconciliation cannot repair.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action) (Result, error) {
	res := Result{Kind: a.Kind(), OrderID: a.Order()}

	var err error
	switch a := a.(type) {
	case UpdateDelivery:
		err = d.updateDelivery(ctx, a)
	case TogglePayment:
		err = d.togglePayment(ctx, a)
	case CreateInvoice:
		err = d.createInvoice(ctx, a)
	case DownloadInvoice:
		res.NavigateURL = d.backend.InvoicePrintURL(a.OrderID)
	case UpdateRemarks:
		err = d.updateRemarks(ctx, a)
	case SerialStatusUpdated:
		err = d.serialStatusUpdated(a)
	case DeleteOrder:
		err = d.deleteOrder(ctx, a)
	default:
		d.log.Warnw("unrecognized action", "kind", a.Kind(), "order_id", a.Order())
		res.Ignored = true
	}

	if o, ok := d.store.Get(res.OrderID); ok {
		res.Order = &o
	}
	d.record(ctx, res, err)
	if err != nil {
		d.notifyErr(res.Kind, res.OrderID, err)
	}
	return res, err
}

func (d *Dispatcher) updateDelivery(ctx context.Context, a UpdateDelivery) error {
	if !enum.IsDeliveryStatus(a.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidDeliveryStatus, a.Status)
	}
	status := a.Status
	d.store.Patch(a.OrderID, store.Patch{DeliveryStatus: &status})

	err := d.backend.UpdateDelivery(ctx, a.OrderID, a.Status)
	d.debounce.Trigger()
	if err != nil {
		return fmt.Errorf("update delivery for %s: %w", a.OrderID, err)
	}
	return nil
}

func (d *Dispatcher) togglePayment(ctx context.Context, a TogglePayment) error {
	var flipped string
	err := d.store.Update(a.OrderID, func(o *model.Order) error {
		if o.Invoiced() {
			return ErrInvoiced
		}
		flipped = enum.FlipPayment(o.PaymentStatus)
		o.PaymentStatus = flipped
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnknownOrder
	}
	if err != nil {
		return err
	}

	status, err := d.backend.TogglePayment(ctx, a.OrderID)
	d.debounce.Trigger()
	if err != nil {
		return fmt.Errorf("toggle payment for %s: %w", a.OrderID, err)
	}
	if status != "" && status != flipped {
		d.store.Patch(a.OrderID, store.Patch{PaymentStatus: &status})
	}
	return nil
}

func (d *Dispatcher) createInvoice(ctx context.Context, a CreateInvoice) error {
	d.mu.Lock()
	if d.invoicing[a.OrderID] {
		d.mu.Unlock()
		return ErrInvoiceInFlight
	}
	d.invoicing[a.OrderID] = true
	d.mu.Unlock()

	number, err := d.backend.CreateInvoice(ctx, a.OrderID)

	d.mu.Lock()
	delete(d.invoicing, a.OrderID)
	d.mu.Unlock()
	d.debounce.Trigger()

	if err != nil {
		return fmt.Errorf("create invoice for %s: %w", a.OrderID, err)
	}
	if number != "" {
		d.store.Patch(a.OrderID, store.Patch{InvoiceNumber: &number})
	}
	return nil
}

func (d *Dispatcher) updateRemarks(ctx context.Context, a UpdateRemarks) error {
	remarks := a.Remarks
	d.store.Patch(a.OrderID, store.Patch{Remarks: &remarks})

	err := d.backend.UpdateRemarks(ctx, a.OrderID, a.Remarks)
	d.debounce.Trigger()
	if err != nil {
		return fmt.Errorf("update remarks for %s: %w", a.OrderID, err)
	}
	return nil
}

func (d *Dispatcher) serialStatusUpdated(a SerialStatusUpdated) error {
	if !enum.IsSerialStatus(a.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidSerialStatus, a.Status)
	}
	status := a.Status
	d.store.Patch(a.OrderID, store.Patch{SerialStatus: &status})
	return nil
}

func (d *Dispatcher) deleteOrder(ctx context.Context, a DeleteOrder) error {
	d.store.Remove(a.OrderID)

	err := d.backend.DeleteOrder(ctx, a.OrderID)
	d.debounce.Trigger()
	if err != nil {
		// The row stays gone locally until the reconciliation brings it back.
		return fmt.Errorf("delete order %s: %w", a.OrderID, err)
	}
	return nil
}

func (d *Dispatcher) reconcile() {
	if err := d.reconciler.Reconcile(d.ctx); err != nil {
		d.log.Warnw("reconciliation failed", "err", err)
		d.notifyErr("reconcile", "", err)
	}
}

func (d *Dispatcher) notifyErr(kind, orderID string, err error) {
	if d.notify == nil {
		return
	}
	d.notify(Notification{Level: "error", OrderID: orderID, Kind: kind, Message: err.Error()})
}

func (d *Dispatcher) record(ctx context.Context, res Result, err error) {
	e := audit.Entry{
		SessionID: d.sessionID,
		Kind:      res.Kind,
		OrderID:   res.OrderID,
		Outcome:   audit.OutcomeOK,
		At:        time.Now().UTC(),
	}
	if d.subject != nil {
		e.Subject = d.subject()
	}
	switch {
	case res.Ignored:
		e.Outcome = audit.OutcomeIgnored
	case errors.Is(err, ErrInvoiced), errors.Is(err, ErrInvoiceInFlight),
		errors.Is(err, ErrInvalidDeliveryStatus), errors.Is(err, ErrInvalidSerialStatus),
		errors.Is(err, ErrUnknownOrder):
		e.Outcome = audit.OutcomeRejected
		e.Error = err.Error()
	case err != nil:
		e.Outcome = audit.OutcomeFailed
		e.Error = err.Error()
	}
	if perr := d.audit.Publish(ctx, e); perr != nil {
		d.log.Warnw("audit publish failed", "kind", e.Kind, "order_id", e.OrderID, "err", perr)
	}
}
