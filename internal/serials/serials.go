// Package serials edits the serial numbers assigned to an order's items.
package serials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kiwari-pos/order-desk/internal/dispatch"
	"github.com/kiwari-pos/order-desk/internal/enum"
	"github.com/kiwari-pos/order-desk/internal/model"
)

var (
	ErrNoEntries       = errors.New("no serial data provided")
	ErrDuplicateSerial = errors.New("serial number used twice")
	ErrTooManySerials  = errors.New("more serial numbers than item quantity")
)

// Client reads and writes serial assignments. Satisfied by *upstream.Client.
type Client interface {
	SerialNumbers(ctx context.Context, orderID string) ([]model.SerialEntry, error)
	SaveSerialNumbers(ctx context.Context, orderID string, entries []model.SerialEntry) (string, error)
}

// Dispatcher receives the serial-status-updated action after a save.
// Satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, a dispatch.Action) (dispatch.Result, error)
}

// Pad returns a copy of entries where every Serials slice has exactly
// Quantity slots, filled with "" where unassigned.
func Pad(entries []model.SerialEntry) []model.SerialEntry {
	out := make([]model.SerialEntry, len(entries))
	for i, e := range entries {
		slots := make([]string, max(e.Quantity, 0))
		copy(slots, e.Serials)
		for j := range slots {
			slots[j] = strings.TrimSpace(slots[j])
		}
		e.Serials = slots
		out[i] = e
	}
	return out
}

// DeriveStatus computes the order-level serial status over all item slots:
// none when nothing is assigned, complete when every slot is filled,
// partial otherwise. A mix of complete and empty items is partial.
func DeriveStatus(entries []model.SerialEntry) string {
	var required, assigned int
	for _, e := range entries {
		required += max(e.Quantity, 0)
		for i, s := range e.Serials {
			if i >= e.Quantity {
				break
			}
			if strings.TrimSpace(s) != "" {
				assigned++
			}
		}
	}
	switch {
	case assigned == 0:
		return enum.SerialStatusNone
	case assigned < required:
		return enum.SerialStatusPartial
	default:
		return enum.SerialStatusComplete
	}
}

// Editor loads and saves serial assignments for orders of one desk session.
type Editor struct {
	client     Client
	dispatcher Dispatcher
}

func NewEditor(c Client, d Dispatcher) *Editor {
	return &Editor{client: c, dispatcher: d}
}

// Load fetches the current assignment padded to item quantities.
func (e *Editor) Load(ctx context.Context, orderID string) ([]model.SerialEntry, error) {
	entries, err := e.client.SerialNumbers(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load serials for %s: %w", orderID, err)
	}
	return Pad(entries), nil
}

// Save validates and persists serials, then patches the cached order's
// serial status. Empty slots are not sent. The returned status is the
// upstream's when it reports one.
func (e *Editor) Save(ctx context.Context, orderID string, entries []model.SerialEntry) (string, error) {
	if len(entries) == 0 {
		return "", ErrNoEntries
	}
	if err := checkCapacity(entries); err != nil {
		return "", err
	}
	padded := Pad(entries)
	if err := checkDuplicates(padded); err != nil {
		return "", err
	}

	send := make([]model.SerialEntry, len(padded))
	for i, en := range padded {
		filled := make([]string, 0, len(en.Serials))
		for _, s := range en.Serials {
			if s != "" {
				filled = append(filled, s)
			}
		}
		en.Serials = filled
		send[i] = en
	}

	status, err := e.client.SaveSerialNumbers(ctx, orderID, send)
	if err != nil {
		return "", fmt.Errorf("save serials for %s: %w", orderID, err)
	}
	if !enum.IsSerialStatus(status) {
		status = DeriveStatus(padded)
	}

	if _, err := e.dispatcher.Dispatch(ctx, dispatch.SerialStatusUpdated{OrderID: orderID, Status: status}); err != nil {
		return status, err
	}
	return status, nil
}

// checkCapacity rejects entries that carry more non-empty serials than
// their quantity has slots; padding would otherwise drop them.
func checkCapacity(entries []model.SerialEntry) error {
	for i, e := range entries {
		n := 0
		for _, s := range e.Serials {
			if strings.TrimSpace(s) != "" {
				n++
			}
		}
		if n > max(e.Quantity, 0) {
			return fmt.Errorf("item[%d]: %w: %d serials for quantity %d", i, ErrTooManySerials, n, e.Quantity)
		}
	}
	return nil
}

func checkDuplicates(entries []model.SerialEntry) error {
	seen := make(map[string]bool)
	for _, e := range entries {
		for _, s := range e.Serials {
			if s == "" {
				continue
			}
			key := strings.ToUpper(s)
			if seen[key] {
				return fmt.Errorf("%w: %s", ErrDuplicateSerial, s)
			}
			seen[key] = true
		}
	}
	return nil
}
