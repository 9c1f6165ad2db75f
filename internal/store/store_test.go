package store

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kiwari-pos/order-desk/internal/model"
)

func orders(ids ...string) []model.Order {
	out := make([]model.Order, len(ids))
	for i, id := range ids {
		out[i] = model.Order{OrderID: id, PaymentStatus: "pending", DeliveryStatus: "NOT_SHIPPED"}
	}
	return out
}

func listIDs(s *Store) []string {
	var ids []string
	for _, o := range s.List() {
		ids = append(ids, o.OrderID)
	}
	return ids
}

func strPtr(s string) *string { return &s }

func TestUpsertAll_ReplacesSet(t *testing.T) {
	s := New()
	s.UpsertAll(orders("a", "b", "c"))
	s.UpsertAll(orders("c", "d"))

	if got, want := listIDs(s), []string{"c", "d"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids: got %v, want %v", got, want)
	}
	if s.Has("a") {
		t.Error("expected a to be dropped by full replace")
	}
}

func TestAppend_SkipsDuplicates(t *testing.T) {
	s := New()
	s.UpsertAll(orders("a", "b"))

	added := s.Append(orders("b", "c", "c", "d"))
	if added != 2 {
		t.Errorf("added: got %d, want 2", added)
	}
	if got, want := listIDs(s), []string{"a", "b", "c", "d"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids: got %v, want %v", got, want)
	}
}

func TestPatch_MergesFields(t *testing.T) {
	s := New()
	s.UpsertAll(orders("a"))

	if !s.Patch("a", Patch{DeliveryStatus: strPtr("SHIPPED"), Remarks: strPtr("fragile")}) {
		t.Fatal("expected patch to apply")
	}
	o, _ := s.Get("a")
	if o.DeliveryStatus != "SHIPPED" {
		t.Errorf("delivery status: got %s, want SHIPPED", o.DeliveryStatus)
	}
	if o.Remarks == nil || *o.Remarks != "fragile" {
		t.Errorf("remarks: got %v, want fragile", o.Remarks)
	}
	if o.PaymentStatus != "pending" {
		t.Errorf("payment status changed unexpectedly: %s", o.PaymentStatus)
	}
}

func TestPatch_AbsentIDIsNoop(t *testing.T) {
	var events []Event
	s := New(WithObserver(func(e Event) { events = append(events, e) }))
	s.UpsertAll(orders("a"))
	before := s.List()
	events = nil

	if s.Patch("missing", Patch{PaymentStatus: strPtr("paid")}) {
		t.Fatal("expected no-op on absent id")
	}
	if !reflect.DeepEqual(before, s.List()) {
		t.Error("cache changed after patching absent id")
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestRemove_DropsOrderAndDetail(t *testing.T) {
	s := New()
	s.UpsertAll(orders("a", "b"))
	s.PutDetail("a", model.OrderDetail{Remarks: strPtr("x")})

	if !s.Remove("a") {
		t.Fatal("expected remove to report a change")
	}
	if s.Has("a") {
		t.Error("order still listed")
	}
	if _, ok := s.Detail("a"); ok {
		t.Error("detail still cached")
	}
	if s.Remove("a") {
		t.Error("second remove should be a no-op")
	}
	if got, want := listIDs(s), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ids: got %v, want %v", got, want)
	}
}

func TestPutDetail_IgnoredForUnlistedOrder(t *testing.T) {
	s := New()
	if s.PutDetail("ghost", model.OrderDetail{}) {
		t.Fatal("expected detail for unlisted order to be dropped")
	}
	if _, ok := s.Detail("ghost"); ok {
		t.Error("detail cached for unlisted order")
	}
}

func TestDetailSurvivesUpsertAll(t *testing.T) {
	s := New()
	s.UpsertAll(orders("a"))
	s.PutDetail("a", model.OrderDetail{Remarks: strPtr("keep")})
	s.UpsertAll(orders("a"))

	d, ok := s.Detail("a")
	if !ok || d.Remarks == nil || *d.Remarks != "keep" {
		t.Fatalf("detail lost after refetch: %+v", d)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := New()
	s.UpsertAll([]model.Order{{OrderID: "a", Items: []model.OrderItem{{Serials: []string{"", ""}}}}})

	o, _ := s.Get("a")
	o.Items[0].Serials[0] = "mutated"

	again, _ := s.Get("a")
	if again.Items[0].Serials[0] != "" {
		t.Error("caller mutation leaked into cache")
	}
}

func TestObserverEvents(t *testing.T) {
	var types []string
	s := New(WithObserver(func(e Event) { types = append(types, e.Type) }))

	s.UpsertAll(orders("a"))
	s.Append(orders("b"))
	s.Append(orders("b"))
	s.Patch("a", Patch{SerialStatus: strPtr("partial")})
	s.Remove("b")

	want := []string{EventReplaced, EventAppended, EventPatched, EventRemoved}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("events: got %v, want %v", types, want)
	}
}

func TestUpdate_CommitsOnlyOnSuccess(t *testing.T) {
	var events []Event
	s := New(WithObserver(func(e Event) { events = append(events, e) }))
	s.UpsertAll(orders("a"))
	events = nil

	err := s.Update("a", func(o *model.Order) error {
		o.PaymentStatus = "paid"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if o, _ := s.Get("a"); o.PaymentStatus != "paid" {
		t.Errorf("payment status: got %s, want paid", o.PaymentStatus)
	}
	if len(events) != 1 || events[0].Type != EventPatched {
		t.Errorf("events: got %+v, want one %s", events, EventPatched)
	}

	errLocked := errors.New("locked")
	err = s.Update("a", func(o *model.Order) error {
		o.PaymentStatus = "pending"
		return errLocked
	})
	if !errors.Is(err, errLocked) {
		t.Fatalf("got %v, want %v", err, errLocked)
	}
	if o, _ := s.Get("a"); o.PaymentStatus != "paid" {
		t.Errorf("rejected update leaked: got %s, want paid", o.PaymentStatus)
	}
	if len(events) != 1 {
		t.Errorf("events after rejected update: got %d, want 1", len(events))
	}
}

func TestUpdate_AbsentID(t *testing.T) {
	s := New()
	err := s.Update("missing", func(*model.Order) error {
		t.Fatal("fn must not run for an absent id")
		return nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want %v", err, ErrNotFound)
	}
}
