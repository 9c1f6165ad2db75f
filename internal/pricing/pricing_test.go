package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate_ReferenceOrder(t *testing.T) {
	items := []LineItem{{
		ProductID:            1,
		MRP:                  dec("500"),
		SellingPrice:         dec("450"),
		ExtraDiscountPercent: dec("10"),
		GSTPercent:           dec("18"),
		Qty:                  2,
	}}

	got := Calculate(items, Settings{DeliveryCharge: dec("50")})

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"final unit price", got.Lines[0].FinalUnitPrice, "405"},
		{"line total", got.Lines[0].LineTotal, "810"},
		{"product discount", got.ProductDiscount, "100"},
		{"extra discount", got.ExtraDiscount, "90"},
		{"gst total", got.GSTTotal, "145.80"},
		{"original subtotal", got.OriginalSubtotal, "1000"},
		{"effective subtotal", got.EffectiveSubtotal, "810"},
		{"total", got.Total, "860"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s: got %s, want %s", c.name, c.got, c.want)
		}
	}
}

func TestCalculate_EmptyItems(t *testing.T) {
	got := Calculate(nil, Settings{DeliveryCharge: dec("75")})
	if !got.SubtotalExclGST.IsZero() || !got.GSTTotal.IsZero() || !got.OriginalSubtotal.IsZero() {
		t.Fatalf("expected zero aggregates, got %+v", got.Summary())
	}
	if !got.Total.Equal(dec("75")) {
		t.Errorf("total: got %s, want 75", got.Total)
	}

	free := Calculate(nil, Settings{DeliveryCharge: dec("75"), FreeDelivery: true})
	if !free.Total.IsZero() {
		t.Errorf("free delivery total: got %s, want 0", free.Total)
	}
}

func TestCalculate_ManualSubtotalOverride(t *testing.T) {
	items := []LineItem{{MRP: dec("100"), SellingPrice: dec("100"), Qty: 3}}
	manual := dec("250")

	got := Calculate(items, Settings{DeliveryCharge: dec("20"), ManualSubtotal: &manual})

	if !got.SubtotalExclGST.Equal(dec("300")) {
		t.Errorf("subtotal excl gst: got %s, want 300", got.SubtotalExclGST)
	}
	if !got.EffectiveSubtotal.Equal(manual) {
		t.Errorf("effective subtotal: got %s, want 250", got.EffectiveSubtotal)
	}
	if !got.Total.Equal(dec("270")) {
		t.Errorf("total: got %s, want 270", got.Total)
	}
}

func TestCalculate_SellingAboveMRPClampsProductDiscount(t *testing.T) {
	items := []LineItem{{MRP: dec("90"), SellingPrice: dec("100"), Qty: 1}}
	got := Calculate(items, Settings{})
	if !got.ProductDiscount.IsZero() {
		t.Errorf("product discount: got %s, want 0", got.ProductDiscount)
	}
}

func TestCalculate_OutOfRangeDiscountDoesNotPanic(t *testing.T) {
	items := []LineItem{
		{MRP: dec("100"), SellingPrice: dec("100"), ExtraDiscountPercent: dec("150"), Qty: 1},
		{MRP: dec("100"), SellingPrice: dec("100"), ExtraDiscountPercent: dec("-20"), Qty: 1},
	}
	got := Calculate(items, Settings{})

	// 100*(1-1.5) = -50 and 100*(1+0.2) = 120
	if !got.Lines[0].LineTotal.Equal(dec("-50")) {
		t.Errorf("line 0 total: got %s, want -50", got.Lines[0].LineTotal)
	}
	if !got.Lines[1].LineTotal.Equal(dec("120")) {
		t.Errorf("line 1 total: got %s, want 120", got.Lines[1].LineTotal)
	}
	// Negative extra discount is clamped at zero per line.
	if !got.Lines[1].ExtraDiscount.IsZero() {
		t.Errorf("line 1 extra discount: got %s, want 0", got.Lines[1].ExtraDiscount)
	}
}

func TestCalculate_RandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for n := 0; n < 500; n++ {
		var items []LineItem
		count := rng.Intn(6)
		for i := 0; i < count; i++ {
			sp := decimal.NewFromInt(int64(rng.Intn(5000))).Div(decimal.NewFromInt(7))
			items = append(items, LineItem{
				ProductID:            int64(i + 1),
				MRP:                  sp.Add(decimal.NewFromInt(int64(rng.Intn(300)))),
				SellingPrice:         sp,
				ExtraDiscountPercent: decimal.NewFromInt(int64(rng.Intn(101))),
				GSTPercent:           decimal.NewFromInt(int64(rng.Intn(29))),
				Qty:                  rng.Intn(10),
			})
		}
		s := Settings{
			DeliveryCharge: decimal.NewFromInt(int64(rng.Intn(200))),
			FreeDelivery:   rng.Intn(2) == 0,
		}

		got := Calculate(items, s)

		if got.Total.IsNegative() {
			t.Fatalf("iteration %d: negative total %s", n, got.Total)
		}

		sum := decimal.Zero
		for _, it := range items {
			sum = sum.Add(CalculateLine(it).FinalUnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
		}
		if !got.SubtotalExclGST.Equal(sum) {
			t.Fatalf("iteration %d: subtotal %s != sum of final*qty %s", n, got.SubtotalExclGST, sum)
		}
	}
}

func TestTotals_SummaryRoundsAtBoundary(t *testing.T) {
	// Three lines of 0.333... each must not accumulate per-line rounding.
	third := decimal.NewFromInt(1).Div(decimal.NewFromInt(3))
	items := []LineItem{
		{SellingPrice: third, MRP: third, Qty: 1},
		{SellingPrice: third, MRP: third, Qty: 1},
		{SellingPrice: third, MRP: third, Qty: 1},
	}
	s := Calculate(items, Settings{}).Summary()

	if s.Lines[0].LineTotal != "0.33" {
		t.Errorf("line total: got %s, want 0.33", s.Lines[0].LineTotal)
	}
	if s.SubtotalExclGST != "1.00" {
		t.Errorf("subtotal: got %s, want 1.00", s.SubtotalExclGST)
	}
}

func TestTotalQty(t *testing.T) {
	if got := TotalQty([]LineItem{{Qty: 2}, {Qty: 0}, {Qty: 5}}); got != 7 {
		t.Errorf("total qty: got %d, want 7", got)
	}
}
