// Package pricing derives draft order totals from line items.
//
// All arithmetic is done in full decimal precision. Rounding to two places
// happens only when a result is serialized (Summary, MarshalJSON).
package pricing

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LineItem is a product line in a draft order. Inputs are not validated:
// a negative or >100 ExtraDiscountPercent produces the raw arithmetic result.
type LineItem struct {
	ProductID            int64           `json:"product_id"`
	Name                 string          `json:"name"`
	Image                string          `json:"image,omitempty"`
	MRP                  decimal.Decimal `json:"mrp"`
	SellingPrice         decimal.Decimal `json:"selling_price"`
	ExtraDiscountPercent decimal.Decimal `json:"extra_discount_percent"`
	GSTPercent           decimal.Decimal `json:"gst_percent"`
	Stock                int             `json:"stock"`
	Qty                  int             `json:"qty"`
}

// Settings carries the order-level inputs.
type Settings struct {
	DeliveryCharge decimal.Decimal
	FreeDelivery   bool
	// ManualSubtotal overrides the computed subtotal when non-nil.
	ManualSubtotal *decimal.Decimal
}

// Line is the per-line derivation.
type Line struct {
	ProductID       int64
	FinalUnitPrice  decimal.Decimal
	LineTotal       decimal.Decimal
	ProductDiscount decimal.Decimal
	ExtraDiscount   decimal.Decimal
	GST             decimal.Decimal
}

// Totals is the full derivation for a draft order.
type Totals struct {
	Lines             []Line
	OriginalSubtotal  decimal.Decimal
	ProductDiscount   decimal.Decimal
	ExtraDiscount     decimal.Decimal
	SubtotalExclGST   decimal.Decimal
	GSTTotal          decimal.Decimal
	EffectiveSubtotal decimal.Decimal
	DeliveryCharge    decimal.Decimal
	Total             decimal.Decimal
}

// Calculate derives per-line and aggregate amounts. It is pure and never
// fails; an empty list yields zero aggregates and a total equal to the
// applicable delivery charge.
func Calculate(items []LineItem, s Settings) Totals {
	t := Totals{
		Lines:            make([]Line, 0, len(items)),
		OriginalSubtotal: decimal.Zero,
		ProductDiscount:  decimal.Zero,
		ExtraDiscount:    decimal.Zero,
		SubtotalExclGST:  decimal.Zero,
		GSTTotal:         decimal.Zero,
	}

	for _, it := range items {
		l := CalculateLine(it)
		t.Lines = append(t.Lines, l)

		qty := decimal.NewFromInt(int64(it.Qty))
		t.OriginalSubtotal = t.OriginalSubtotal.Add(it.MRP.Mul(qty))
		t.ProductDiscount = t.ProductDiscount.Add(l.ProductDiscount)
		t.ExtraDiscount = t.ExtraDiscount.Add(l.ExtraDiscount)
		t.SubtotalExclGST = t.SubtotalExclGST.Add(l.LineTotal)
		t.GSTTotal = t.GSTTotal.Add(l.GST)
	}

	t.EffectiveSubtotal = t.SubtotalExclGST
	if s.ManualSubtotal != nil {
		t.EffectiveSubtotal = *s.ManualSubtotal
	}

	t.DeliveryCharge = decimal.Zero
	if !s.FreeDelivery {
		t.DeliveryCharge = s.DeliveryCharge
	}
	t.Total = t.EffectiveSubtotal.Add(t.DeliveryCharge)
	return t
}

// CalculateLine derives the amounts for a single line.
func CalculateLine(it LineItem) Line {
	qty := decimal.NewFromInt(int64(it.Qty))

	// final_unit = selling * (1 - extra% / 100)
	final := it.SellingPrice.Mul(decimal.NewFromInt(1).Sub(it.ExtraDiscountPercent.Div(hundred)))
	lineTotal := final.Mul(qty)

	return Line{
		ProductID:       it.ProductID,
		FinalUnitPrice:  final,
		LineTotal:       lineTotal,
		ProductDiscount: decimal.Max(decimal.Zero, it.MRP.Sub(it.SellingPrice).Mul(qty)),
		ExtraDiscount:   decimal.Max(decimal.Zero, it.SellingPrice.Sub(final).Mul(qty)),
		GST:             lineTotal.Mul(it.GSTPercent).Div(hundred),
	}
}

// TotalQty is the number of units across all lines.
func TotalQty(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Qty
	}
	return n
}

// --- Serialization ---

// LineSummary is a Line rounded for display.
type LineSummary struct {
	ProductID       int64  `json:"product_id"`
	FinalUnitPrice  string `json:"final_unit_price"`
	LineTotal       string `json:"line_total"`
	ProductDiscount string `json:"product_discount"`
	ExtraDiscount   string `json:"extra_discount"`
	GST             string `json:"gst_amount"`
}

// Summary is Totals rounded to two decimal places.
type Summary struct {
	Lines             []LineSummary `json:"lines"`
	OriginalSubtotal  string        `json:"original_subtotal"`
	ProductDiscount   string        `json:"product_discount"`
	ExtraDiscount     string        `json:"extra_discount"`
	SubtotalExclGST   string        `json:"subtotal_excl_gst"`
	GSTTotal          string        `json:"gst_total"`
	EffectiveSubtotal string        `json:"effective_subtotal"`
	DeliveryCharge    string        `json:"delivery_charge"`
	Total             string        `json:"total"`
}

// Summary rounds every amount for display.
func (t Totals) Summary() Summary {
	lines := make([]LineSummary, len(t.Lines))
	for i, l := range t.Lines {
		lines[i] = LineSummary{
			ProductID:       l.ProductID,
			FinalUnitPrice:  l.FinalUnitPrice.StringFixed(2),
			LineTotal:       l.LineTotal.StringFixed(2),
			ProductDiscount: l.ProductDiscount.StringFixed(2),
			ExtraDiscount:   l.ExtraDiscount.StringFixed(2),
			GST:             l.GST.StringFixed(2),
		}
	}
	return Summary{
		Lines:             lines,
		OriginalSubtotal:  t.OriginalSubtotal.StringFixed(2),
		ProductDiscount:   t.ProductDiscount.StringFixed(2),
		ExtraDiscount:     t.ExtraDiscount.StringFixed(2),
		SubtotalExclGST:   t.SubtotalExclGST.StringFixed(2),
		GSTTotal:          t.GSTTotal.StringFixed(2),
		EffectiveSubtotal: t.EffectiveSubtotal.StringFixed(2),
		DeliveryCharge:    t.DeliveryCharge.StringFixed(2),
		Total:             t.Total.StringFixed(2),
	}
}

func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Summary())
}
