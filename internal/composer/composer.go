// Package composer assembles a new order: customer, delivery address,
// product lines and pricing, then submits it upstream.
package composer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kiwari-pos/order-desk/internal/enum"
	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/kiwari-pos/order-desk/internal/pricing"
	"github.com/kiwari-pos/order-desk/internal/upstream"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNoCustomer         = errors.New("customer not selected")
	ErrNoAddress          = errors.New("address not selected")
	ErrNoItems            = errors.New("no products added")
	ErrUnknownLine        = errors.New("product is not in the order")
	ErrUnknownAddress     = errors.New("address does not belong to customer")
	ErrInvalidQty         = errors.New("quantity must not be negative")
	ErrInvalidCustomer    = errors.New("invalid customer type")
	ErrInvalidPaymentType = errors.New("invalid payment type")
	ErrInvalidChannel     = errors.New("invalid channel")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrSubmitting         = errors.New("order submission already in progress")
)

// Catalog is the upstream reference data and order creation endpoint.
// Satisfied by *upstream.Client.
type Catalog interface {
	CustomerDetails(ctx context.Context, custType string, id int64) (model.CustomerDetails, error)
	Addresses(ctx context.Context, custType string, id int64) ([]model.Address, error)
	CreateAddress(ctx context.Context, a model.NewAddress) (int64, error)
	ProductDetails(ctx context.Context, productID int64) (model.ProductDetails, error)
	ProductPrice(ctx context.Context, productID int64) (decimal.Decimal, error)
	CreateOrder(ctx context.Context, req upstream.CreateOrderRequest) (string, error)
}

// Customer is the selected customer.
type Customer struct {
	Type    string                `json:"type"`
	ID      int64                 `json:"id"`
	Details model.CustomerDetails `json:"details"`
}

// Options are the order-level settings.
type Options struct {
	DeliveryCharge decimal.Decimal  `json:"delivery_charge"`
	FreeDelivery   bool             `json:"free_delivery"`
	ManualSubtotal *decimal.Decimal `json:"manual_subtotal,omitempty"`
	PaymentType    string           `json:"payment_type"`
	Channel        string           `json:"channel"`
	Remarks        string           `json:"remarks,omitempty"`
}

// Snapshot is the composer state as shown to the user.
type Snapshot struct {
	Customer  *Customer          `json:"customer"`
	Addresses []model.Address    `json:"addresses"`
	AddressID *int64             `json:"address_id"`
	Lines     []pricing.LineItem `json:"lines"`
	Options   Options            `json:"options"`
	Totals    pricing.Totals     `json:"totals"`
}

// Composer holds the draft order for one desk session.
type Composer struct {
	catalog    Catalog
	log        *zap.SugaredLogger
	onComplete func(orderID string)

	mu         sync.Mutex
	customer   *Customer
	addresses  []model.Address
	addressID  int64
	lines      []pricing.LineItem
	opts       Options
	submitting bool
	// custSeq changes on every customer selection; late customer fetches
	// from an earlier selection are dropped.
	custSeq uint64
}

// New creates an empty Composer. onComplete, if set, is called with the new
// order id after a successful submit.
func New(c Catalog, log *zap.SugaredLogger, onComplete func(orderID string)) *Composer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cp := &Composer{catalog: c, log: log, onComplete: onComplete}
	cp.resetLocked()
	return cp
}

// Snapshot returns the current draft with computed totals.
func (c *Composer) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Addresses: append([]model.Address(nil), c.addresses...),
		Lines:     append([]pricing.LineItem(nil), c.lines...),
		Options:   c.opts,
		Totals:    pricing.Calculate(c.lines, c.settingsLocked()),
	}
	if c.customer != nil {
		cust := *c.customer
		s.Customer = &cust
	}
	if c.addressID != 0 {
		id := c.addressID
		s.AddressID = &id
	}
	return s
}

// Totals computes pricing for the current lines and options.
func (c *Composer) Totals() pricing.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.Calculate(c.lines, c.settingsLocked())
}

// SelectCustomer fetches the customer's details and address list. When the
// customer has exactly one address it is selected.
func (c *Composer) SelectCustomer(ctx context.Context, custType string, id int64) error {
	if !enum.IsCustomerType(custType) {
		return fmt.Errorf("%w: %q", ErrInvalidCustomer, custType)
	}

	c.mu.Lock()
	c.custSeq++
	seq := c.custSeq
	c.mu.Unlock()

	details, err := c.catalog.CustomerDetails(ctx, custType, id)
	if err != nil {
		return fmt.Errorf("customer details: %w", err)
	}
	addresses, err := c.catalog.Addresses(ctx, custType, id)
	if err != nil {
		return fmt.Errorf("customer addresses: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.custSeq {
		return nil
	}
	c.customer = &Customer{Type: custType, ID: id, Details: details}
	c.addresses = addresses
	c.addressID = 0
	if len(addresses) == 1 {
		c.addressID = addresses[0].AddressID
	}
	return nil
}

// SelectAddress picks one of the customer's addresses.
func (c *Composer) SelectAddress(addressID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.addresses {
		if a.AddressID == addressID {
			c.addressID = addressID
			return nil
		}
	}
	return ErrUnknownAddress
}

// AddAddress creates an address for the selected customer, refetches the
// list and selects the new entry.
func (c *Composer) AddAddress(ctx context.Context, a model.NewAddress) (int64, error) {
	c.mu.Lock()
	if c.customer == nil {
		c.mu.Unlock()
		return 0, ErrNoCustomer
	}
	cust := *c.customer
	seq := c.custSeq
	c.mu.Unlock()

	a.CustType = cust.Type
	a.CustomerID = cust.ID
	created, err := c.catalog.CreateAddress(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("create address: %w", err)
	}
	addresses, err := c.catalog.Addresses(ctx, cust.Type, cust.ID)
	if err != nil {
		return 0, fmt.Errorf("refresh addresses: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.custSeq {
		return created, nil
	}
	c.addresses = addresses
	c.addressID = newest(addresses, created)
	return c.addressID, nil
}

// newest prefers the id the create call returned; otherwise the list is
// ordered by id and the last entry is the newest.
func newest(addresses []model.Address, created int64) int64 {
	if len(addresses) == 0 {
		return 0
	}
	for _, a := range addresses {
		if a.AddressID == created {
			return created
		}
	}
	last := addresses[0].AddressID
	for _, a := range addresses[1:] {
		if a.AddressID > last {
			last = a.AddressID
		}
	}
	return last
}

// AddProduct adds one unit of a product. A product already in the order
// has its quantity incremented; its other fields are left as they are.
// New lines take price and metadata from the catalog; a missing MRP
// defaults to the selling price.
func (c *Composer) AddProduct(ctx context.Context, productID int64) error {
	c.mu.Lock()
	if c.incrementLocked(productID) {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	details, err := c.catalog.ProductDetails(ctx, productID)
	if err != nil {
		return fmt.Errorf("product details: %w", err)
	}
	price, err := c.catalog.ProductPrice(ctx, productID)
	if err != nil {
		return fmt.Errorf("product price: %w", err)
	}

	mrp := details.MRP
	if mrp.IsZero() {
		mrp = price
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incrementLocked(productID) {
		return nil
	}
	c.lines = append(c.lines, pricing.LineItem{
		ProductID:            productID,
		Name:                 details.Name,
		Image:                details.Image,
		MRP:                  mrp,
		SellingPrice:         price,
		ExtraDiscountPercent: decimal.Zero,
		GSTPercent:           details.GSTPercent,
		Stock:                details.Stock,
		Qty:                  1,
	})
	return nil
}

func (c *Composer) incrementLocked(productID int64) bool {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines[i].Qty++
			return true
		}
	}
	return false
}

// LineEdit is a partial change to one line. Nil fields are left as they are.
type LineEdit struct {
	Qty                  *int
	ExtraDiscountPercent *decimal.Decimal
	SellingPrice         *decimal.Decimal
}

// EditLine validates every field of e and then applies them together; an
// invalid field leaves the line untouched.
func (c *Composer) EditLine(productID int64, e LineEdit) error {
	if e.Qty != nil && *e.Qty < 0 {
		return ErrInvalidQty
	}
	if e.SellingPrice != nil && e.SellingPrice.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrInvalidAmount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ProductID != productID {
			continue
		}
		l := &c.lines[i]
		if e.Qty != nil {
			l.Qty = *e.Qty
		}
		if e.ExtraDiscountPercent != nil {
			l.ExtraDiscountPercent = *e.ExtraDiscountPercent
		}
		if e.SellingPrice != nil {
			l.SellingPrice = *e.SellingPrice
		}
		return nil
	}
	return ErrUnknownLine
}

// SetQty sets a line's quantity. Zero is allowed; the line stays but is
// not submitted.
func (c *Composer) SetQty(productID int64, qty int) error {
	return c.EditLine(productID, LineEdit{Qty: &qty})
}

// SetExtraDiscount sets a line's extra discount percent.
func (c *Composer) SetExtraDiscount(productID int64, percent decimal.Decimal) error {
	return c.EditLine(productID, LineEdit{ExtraDiscountPercent: &percent})
}

// SetSellingPrice overrides the catalog price of a line.
func (c *Composer) SetSellingPrice(productID int64, price decimal.Decimal) error {
	return c.EditLine(productID, LineEdit{SellingPrice: &price})
}

// RemoveLine drops a product from the order.
func (c *Composer) RemoveLine(productID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
	}
	return ErrUnknownLine
}

// SetOptions replaces the order-level settings. Empty payment type and
// channel keep their defaults.
func (c *Composer) SetOptions(o Options) error {
	if o.DeliveryCharge.IsNegative() {
		return fmt.Errorf("%w: negative delivery charge", ErrInvalidAmount)
	}
	if o.ManualSubtotal != nil && o.ManualSubtotal.IsNegative() {
		return fmt.Errorf("%w: negative subtotal", ErrInvalidAmount)
	}
	if o.PaymentType == "" {
		o.PaymentType = enum.PaymentTypeCOD
	}
	if o.Channel == "" {
		o.Channel = enum.ChannelOffline
	}
	if o.PaymentType != enum.PaymentTypeCOD && o.PaymentType != enum.PaymentTypePrepaid {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentType, o.PaymentType)
	}
	if o.Channel != enum.ChannelOnline && o.Channel != enum.ChannelOffline {
		return fmt.Errorf("%w: %q", ErrInvalidChannel, o.Channel)
	}

	c.mu.Lock()
	c.opts = o
	c.mu.Unlock()
	return nil
}

// ParseManualSubtotal reads a user-entered subtotal override. An empty
// string clears the override.
func ParseManualSubtotal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative subtotal", ErrInvalidAmount)
	}
	return &d, nil
}

// Validate reports the first reason the draft cannot be submitted.
func (c *Composer) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

func (c *Composer) validateLocked() error {
	if c.customer == nil || c.customer.ID == 0 {
		return ErrNoCustomer
	}
	if c.addressID == 0 {
		return ErrNoAddress
	}
	for _, l := range c.lines {
		if l.Qty > 0 {
			return nil
		}
	}
	return ErrNoItems
}

// Submit validates and creates the order. On success the draft is reset
// and the completion callback fires; on any failure the draft is kept.
func (c *Composer) Submit(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return "", ErrSubmitting
	}
	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return "", err
	}
	req := c.requestLocked()
	c.submitting = true
	c.mu.Unlock()

	orderID, err := c.catalog.CreateOrder(ctx, req)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("create order: %w", err)
	}
	c.resetLocked()
	c.mu.Unlock()

	c.log.Infow("order created", "order_id", orderID, "items", req.TotalItems)
	if c.onComplete != nil {
		c.onComplete(orderID)
	}
	return orderID, nil
}

// Reset discards the draft.
func (c *Composer) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Composer) resetLocked() {
	c.customer = nil
	c.addresses = nil
	c.addressID = 0
	c.lines = nil
	c.opts = Options{PaymentType: enum.PaymentTypeCOD, Channel: enum.ChannelOffline}
	c.custSeq++
}

func (c *Composer) settingsLocked() pricing.Settings {
	return pricing.Settings{
		DeliveryCharge: c.opts.DeliveryCharge,
		FreeDelivery:   c.opts.FreeDelivery,
		ManualSubtotal: c.opts.ManualSubtotal,
	}
}

func (c *Composer) requestLocked() upstream.CreateOrderRequest {
	var lines []pricing.LineItem
	for _, l := range c.lines {
		if l.Qty > 0 {
			lines = append(lines, l)
		}
	}
	t := pricing.Calculate(lines, c.settingsLocked())

	req := upstream.CreateOrderRequest{
		AddressID:      c.addressID,
		TotalItems:     pricing.TotalQty(lines),
		Subtotal:       upstream.NewMoney(t.EffectiveSubtotal),
		GST:            upstream.NewMoney(t.GSTTotal),
		DeliveryCharge: upstream.NewMoney(t.DeliveryCharge),
		TotalAmount:    upstream.NewMoney(t.Total),
		PaymentType:    c.opts.PaymentType,
		Channel:        c.opts.Channel,
		Remarks:        c.opts.Remarks,
		Items:          make([]upstream.CreateOrderItemRequest, len(lines)),
	}
	id := c.customer.ID
	if c.customer.Type == enum.CustomerTypeOffline {
		req.OfflineCustomerID = &id
	} else {
		req.CustomerID = &id
	}
	for i, l := range t.Lines {
		req.Items[i] = upstream.CreateOrderItemRequest{
			ProductID:      l.ProductID,
			Qty:            lines[i].Qty,
			FinalUnitPrice: upstream.NewMoney(l.FinalUnitPrice),
			LineTotal:      upstream.NewMoney(l.LineTotal),
			GSTAmount:      upstream.NewMoney(l.GST),
		}
	}
	return req
}
