package model

import (
	"github.com/shopspring/decimal"
)

// Order is an order summary as listed by GET /orders.
type Order struct {
	OrderID           string           `json:"order_id"`
	CustomerID        *int64           `json:"customer_id,omitempty"`
	OfflineCustomerID *int64           `json:"offline_customer_id,omitempty"`
	Customer          *CustomerContact `json:"customer,omitempty"`
	AddressID         int64            `json:"address_id,omitempty"`
	CreatedAt         Timestamp        `json:"created_at"`
	TotalItems        int              `json:"total_items"`
	Subtotal          decimal.Decimal  `json:"subtotal"`
	GST               decimal.Decimal  `json:"gst"`
	DeliveryCharge    decimal.Decimal  `json:"delivery_charge"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	Channel           string           `json:"channel"`
	PaymentType       string           `json:"payment_type,omitempty"`
	PaymentStatus     string           `json:"payment_status"`
	DeliveryStatus    string           `json:"delivery_status"`
	SerialStatus      string           `json:"serial_status"`
	AWBNumber         *string          `json:"awb_number,omitempty"`
	InvoiceNumber     *string          `json:"invoice_number,omitempty"`
	Remarks           *string          `json:"remarks,omitempty"`
	Address           *Address         `json:"address,omitempty"`
	Items             []OrderItem      `json:"items,omitempty"`
}

// Invoiced reports whether an invoice number has been issued. Financial
// fields must not be mutated once this is true.
func (o *Order) Invoiced() bool {
	return o.InvoiceNumber != nil && *o.InvoiceNumber != ""
}

// Clone returns a deep copy so callers can't alias cached state.
func (o Order) Clone() Order {
	c := o
	c.CustomerID = cloneInt64(o.CustomerID)
	c.OfflineCustomerID = cloneInt64(o.OfflineCustomerID)
	c.AWBNumber = cloneString(o.AWBNumber)
	c.InvoiceNumber = cloneString(o.InvoiceNumber)
	c.Remarks = cloneString(o.Remarks)
	if o.Customer != nil {
		cc := *o.Customer
		c.Customer = &cc
	}
	if o.Address != nil {
		a := *o.Address
		c.Address = &a
	}
	c.Items = cloneItems(o.Items)
	return c
}

// OrderItem is a persisted order line.
type OrderItem struct {
	ItemID      int64           `json:"item_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	Serials     []string        `json:"serials,omitempty"`
}

// OrderDetail is the expanded view of one order fetched on first row expansion.
type OrderDetail struct {
	Address *Address    `json:"address"`
	Items   []OrderItem `json:"items"`
	Remarks *string     `json:"remarks"`
}

// Clone returns a deep copy of the detail.
func (d OrderDetail) Clone() OrderDetail {
	c := d
	if d.Address != nil {
		a := *d.Address
		c.Address = &a
	}
	c.Items = cloneItems(d.Items)
	c.Remarks = cloneString(d.Remarks)
	return c
}

// Filter narrows the order list. Empty fields are not sent.
type Filter struct {
	Search         string `json:"search"`
	PaymentStatus  string `json:"payment_status"`
	DeliveryStatus string `json:"delivery_status"`
	Channel        string `json:"channel"`
	DateFrom       string `json:"date_from"` // YYYY-MM-DD
	DateTo         string `json:"date_to"`   // YYYY-MM-DD
}

func cloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	out := make([]OrderItem, len(items))
	for i, it := range items {
		out[i] = it
		if it.Serials != nil {
			out[i].Serials = append([]string(nil), it.Serials...)
		}
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
