package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kiwari-pos/order-desk/internal/model"
	"github.com/shopspring/decimal"
)

// Money is a decimal amount serialized as a JSON number with two places.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps d.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Round(2).StringFixed(2)), nil
}

// CreateOrderRequest is the body of POST /orders/create. Exactly one of
// CustomerID and OfflineCustomerID is set, depending on the customer type.
type CreateOrderRequest struct {
	CustomerID        *int64                   `json:"customer_id"`
	OfflineCustomerID *int64                   `json:"offline_customer_id"`
	AddressID         int64                    `json:"address_id"`
	TotalItems        int                      `json:"total_items"`
	Subtotal          Money                    `json:"subtotal"`
	GST               Money                    `json:"gst"`
	DeliveryCharge    Money                    `json:"delivery_charge"`
	TotalAmount       Money                    `json:"total_amount"`
	PaymentType       string                   `json:"payment_type"`
	Channel           string                   `json:"channel"`
	Remarks           string                   `json:"remarks,omitempty"`
	Items             []CreateOrderItemRequest `json:"items"`
}

// CreateOrderItemRequest is one line of a new order.
type CreateOrderItemRequest struct {
	ProductID      int64 `json:"product_id"`
	Qty            int   `json:"qty"`
	FinalUnitPrice Money `json:"final_unit_price"`
	LineTotal      Money `json:"line_total"`
	GSTAmount      Money `json:"gst_amount"`
}

// FilterQuery encodes f plus paging as the order list query string.
func FilterQuery(f model.Filter, limit, offset int) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("search", f.Search)
	set("payment_status", f.PaymentStatus)
	set("delivery_status", f.DeliveryStatus)
	set("channel", f.Channel)
	set("date_from", f.DateFrom)
	set("date_to", f.DateTo)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

// ListOrders fetches one page of order summaries.
func (c *Client) ListOrders(ctx context.Context, f model.Filter, limit, offset int) ([]model.Order, error) {
	var out []model.Order
	if err := c.do(ctx, http.MethodGet, "/orders", FilterQuery(f, limit, offset), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrderDetails fetches the expanded view of one order.
func (c *Client) OrderDetails(ctx context.Context, orderID string) (model.OrderDetail, error) {
	var out model.OrderDetail
	err := c.do(ctx, http.MethodGet, orderPath(orderID, "/details"), nil, nil, &out)
	return out, err
}

// SerialNumbers fetches per-item serial assignments.
func (c *Client) SerialNumbers(ctx context.Context, orderID string) ([]model.SerialEntry, error) {
	var out []model.SerialEntry
	if err := c.do(ctx, http.MethodGet, orderPath(orderID, "/serial_numbers"), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSerialNumbers persists serials and returns the serial_status reported
// by the upstream, which may be empty.
func (c *Client) SaveSerialNumbers(ctx context.Context, orderID string, entries []model.SerialEntry) (string, error) {
	type entry struct {
		ItemID  int64    `json:"item_id"`
		Serials []string `json:"serials"`
	}
	body := struct {
		Entries []entry `json:"entries"`
	}{Entries: make([]entry, len(entries))}
	for i, e := range entries {
		body.Entries[i] = entry{ItemID: e.ItemID, Serials: e.Serials}
	}

	var out struct {
		SerialStatus string `json:"serial_status"`
	}
	if err := c.do(ctx, http.MethodPost, orderPath(orderID, "/serial_numbers/save"), nil, body, &out); err != nil {
		return "", err
	}
	return out.SerialStatus, nil
}

// UpdateDelivery sets the delivery status.
func (c *Client) UpdateDelivery(ctx context.Context, orderID, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, orderPath(orderID, "/update-delivery"), nil, body, nil)
}

// TogglePayment flips the payment status and returns the new value.
func (c *Client) TogglePayment(ctx context.Context, orderID string) (string, error) {
	var out struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := c.do(ctx, http.MethodPut, orderPath(orderID, "/toggle-payment"), nil, nil, &out); err != nil {
		return "", err
	}
	return out.PaymentStatus, nil
}

// UpdateRemarks replaces the order remarks.
func (c *Client) UpdateRemarks(ctx context.Context, orderID, remarks string) error {
	body := map[string]string{"remarks": remarks}
	return c.do(ctx, http.MethodPut, orderPath(orderID, "/remarks"), nil, body, nil)
}

// CreateOrder submits a new order and returns its id.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (string, error) {
	var out struct {
		OrderID string `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders/create", nil, req, &out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodDelete, orderPath(orderID, ""), nil, nil, nil)
}

// CreateInvoice asks the upstream to raise an invoice and returns its
// number when the response carries one.
func (c *Client) CreateInvoice(ctx context.Context, orderID string) (string, error) {
	var out struct {
		InvoiceNumber string `json:"invoice_number"`
	}
	if err := c.do(ctx, http.MethodPost, "/zoho/invoice/"+url.PathEscape(orderID), nil, nil, &out); err != nil {
		return "", err
	}
	return out.InvoiceNumber, nil
}

// InvoicePrintURL is opened as a browser navigation, never fetched here.
func (c *Client) InvoicePrintURL(orderID string) string {
	return c.URL("/zoho/orders/"+url.PathEscape(orderID)+"/invoice/print", nil)
}
