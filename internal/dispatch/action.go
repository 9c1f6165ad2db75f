package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadPayload is returned by Decode when an action's payload cannot be read.
var ErrBadPayload = errors.New("invalid action payload")

// Action kinds as sent by the browser.
const (
	KindUpdateDelivery      = "update-delivery"
	KindTogglePayment       = "toggle-payment"
	KindCreateInvoice       = "create-invoice"
	KindDownloadInvoice     = "download-invoice"
	KindUpdateRemarks       = "update-remarks"
	KindSerialStatusUpdated = "serial-status-updated"
	KindDeleteOrder         = "delete-order"
)

// Action is a user-triggered operation on one order. The set of
// implementations is closed; see the type switch in Dispatch.
type Action interface {
	Order() string
	Kind() string
	action()
}

type UpdateDelivery struct {
	OrderID string
	Status  string
}

type TogglePayment struct {
	OrderID string
}

type CreateInvoice struct {
	OrderID string
}

type DownloadInvoice struct {
	OrderID string
}

type UpdateRemarks struct {
	OrderID string
	Remarks string
}

// SerialStatusUpdated is raised internally after a serial save has
// already completed upstream.
type SerialStatusUpdated struct {
	OrderID string
	Status  string
}

type DeleteOrder struct {
	OrderID string
}

// Unknown carries a kind the dispatcher does not recognise.
type Unknown struct {
	OrderID string
	Name    string
}

func (a UpdateDelivery) Order() string      { return a.OrderID }
func (a TogglePayment) Order() string       { return a.OrderID }
func (a CreateInvoice) Order() string       { return a.OrderID }
func (a DownloadInvoice) Order() string     { return a.OrderID }
func (a UpdateRemarks) Order() string       { return a.OrderID }
func (a SerialStatusUpdated) Order() string { return a.OrderID }
func (a DeleteOrder) Order() string         { return a.OrderID }
func (a Unknown) Order() string             { return a.OrderID }

func (UpdateDelivery) Kind() string      { return KindUpdateDelivery }
func (TogglePayment) Kind() string       { return KindTogglePayment }
func (CreateInvoice) Kind() string       { return KindCreateInvoice }
func (DownloadInvoice) Kind() string     { return KindDownloadInvoice }
func (UpdateRemarks) Kind() string       { return KindUpdateRemarks }
func (SerialStatusUpdated) Kind() string { return KindSerialStatusUpdated }
func (DeleteOrder) Kind() string         { return KindDeleteOrder }
func (a Unknown) Kind() string           { return a.Name }

func (UpdateDelivery) action()      {}
func (TogglePayment) action()       {}
func (CreateInvoice) action()       {}
func (DownloadInvoice) action()     {}
func (UpdateRemarks) action()       {}
func (SerialStatusUpdated) action() {}
func (DeleteOrder) action()         {}
func (Unknown) action()             {}

// Decode builds an Action from the (order id, kind, payload) triple sent by
// a UI control. Payloads for value-carrying kinds may be a bare JSON string
// or an object with the named field ("status", "remarks", "serial_status").
// Unrecognised kinds decode to Unknown without error.
func Decode(orderID, kind string, payload json.RawMessage) (Action, error) {
	switch kind {
	case KindUpdateDelivery:
		s, err := stringPayload(payload, "status")
		if err != nil {
			return nil, err
		}
		return UpdateDelivery{OrderID: orderID, Status: s}, nil
	case KindTogglePayment:
		return TogglePayment{OrderID: orderID}, nil
	case KindCreateInvoice:
		return CreateInvoice{OrderID: orderID}, nil
	case KindDownloadInvoice:
		return DownloadInvoice{OrderID: orderID}, nil
	case KindUpdateRemarks:
		s, err := stringPayload(payload, "remarks")
		if err != nil {
			return nil, err
		}
		return UpdateRemarks{OrderID: orderID, Remarks: s}, nil
	case KindSerialStatusUpdated:
		s, err := stringPayload(payload, "serial_status")
		if err != nil {
			return nil, err
		}
		return SerialStatusUpdated{OrderID: orderID, Status: s}, nil
	case KindDeleteOrder:
		return DeleteOrder{OrderID: orderID}, nil
	default:
		return Unknown{OrderID: orderID, Name: kind}, nil
	}
}

func stringPayload(raw json.RawMessage, field string) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj map[string]*string
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if v := obj[field]; v != nil {
		return *v, nil
	}
	return "", nil
}
