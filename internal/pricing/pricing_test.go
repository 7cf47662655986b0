package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeHappyPath(t *testing.T) {
	lines := []Line{{UnitPrice: dec("20.00"), Quantity: 2}}
	a := Compute(lines, dec("5.5"))

	assert.True(t, a.Subtotal.Equal(dec("40.00")), "subtotal=%s", a.Subtotal)
	assert.True(t, a.VATAmount.Equal(dec("2.20")), "vat=%s", a.VATAmount)
	assert.True(t, a.Total.Equal(dec("42.20")), "total=%s", a.Total)
}

func TestComputeNoFloatDrift(t *testing.T) {
	// 29.90 * 3 = 89.70; 89.70 * 5.5% = 4.9335 -> 4.93; total 94.63.
	lines := []Line{{UnitPrice: dec("29.90"), Quantity: 3}}
	a := Compute(lines, dec("5.5"))

	assert.True(t, a.Subtotal.Equal(dec("89.70")), "subtotal=%s", a.Subtotal)
	assert.True(t, a.VATAmount.Equal(dec("4.93")), "vat=%s", a.VATAmount)
	assert.True(t, a.Total.Equal(dec("94.63")), "total=%s", a.Total)
}

func TestComputeRoundsOncePerOutput(t *testing.T) {
	// Two lines whose raw totals end in half cents.  Rounding per line
	// (0.335 -> 0.34 twice = 0.68) would differ from rounding the full
	// precision sum (0.67).
	lines := []Line{
		{UnitPrice: dec("0.335"), Quantity: 1},
		{UnitPrice: dec("0.335"), Quantity: 1},
	}
	a := Compute(lines, decimal.Zero)
	assert.True(t, a.Subtotal.Equal(dec("0.67")), "subtotal=%s", a.Subtotal)
}

func TestTotalIsSumOfRoundedParts(t *testing.T) {
	cases := []struct {
		price string
		qty   int64
		vat   string
	}{
		{"19.99", 7, "20"},
		{"0.01", 3, "5.5"},
		{"123.45", 1, "2.1"},
		{"10.00", 100, "0"},
	}
	for _, c := range cases {
		a := Compute([]Line{{UnitPrice: dec(c.price), Quantity: c.qty}}, dec(c.vat))
		require.True(t, a.Total.Equal(a.Subtotal.Add(a.VATAmount)),
			"price=%s qty=%d vat=%s: %s != %s + %s", c.price, c.qty, c.vat, a.Total, a.Subtotal, a.VATAmount)
	}
}

func TestComputeDeterministic(t *testing.T) {
	lines := []Line{
		{UnitPrice: dec("12.34"), Quantity: 5},
		{UnitPrice: dec("0.99"), Quantity: 13},
	}
	first := Compute(lines, dec("7.7"))
	for i := 0; i < 50; i++ {
		again := Compute(lines, dec("7.7"))
		require.True(t, first.Total.Equal(again.Total))
		require.True(t, first.Subtotal.Equal(again.Subtotal))
		require.True(t, first.VATAmount.Equal(again.VATAmount))
	}
}

func TestComputeEmptyLines(t *testing.T) {
	a := Compute(nil, dec("5.5"))
	assert.True(t, a.Subtotal.IsZero())
	assert.True(t, a.VATAmount.IsZero())
	assert.True(t, a.Total.IsZero())
}

func TestLineTotal(t *testing.T) {
	assert.True(t, LineTotal(dec("29.90"), 3).Equal(dec("89.70")))
	assert.True(t, LineTotal(dec("0.335"), 1).Equal(dec("0.34")))
}
