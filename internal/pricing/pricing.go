// Package pricing computes order amounts from line snapshots.  All
// monetary arithmetic uses decimal values; binary floats are never
// involved so repeated computations over the same lines always yield
// the same result.
package pricing

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Line is the minimal view of an order line needed for amount
// computation: the unit price snapshotted when the line was added and
// the quantity ordered.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

// Amounts groups the three derived amounts of an order.  Each value
// carries exactly two decimal places.
type Amounts struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Compute derives subtotal, VAT amount and total for the given lines
// and VAT rate (a percentage, e.g. 5.5 for 5.5%).  The sum runs at
// full precision; rounding to two decimals happens once per output.
// Total is the sum of the rounded subtotal and the rounded VAT amount
// so that total == subtotal + vat_amount holds exactly.
func Compute(lines []Line, vatRate decimal.Decimal) Amounts {
	raw := decimal.Zero
	for _, l := range lines {
		raw = raw.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	subtotal := raw.Round(2)
	vatAmount := raw.Mul(vatRate).Div(hundred).Round(2)
	return Amounts{
		Subtotal:  subtotal,
		VATAmount: vatAmount,
		Total:     subtotal.Add(vatAmount),
	}
}

// LineTotal returns unit_price * quantity rounded to two decimals.
// Used when rendering individual lines in responses.
func LineTotal(unitPrice decimal.Decimal, quantity int64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(quantity)).Round(2)
}
