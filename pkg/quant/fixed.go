// Package quant holds the fixed-point value types used on the hotpath.
// All monetary values are strictly int64 ticks with 8 decimal places;
// floats and decimals appear only at the venue boundary.
package quant

import (
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places carried by every fixed-point value.
const Scale = 8

// tick is the integral value of 1.0 at Scale decimals.
const tick = int64(100_000_000)

// Price is a fixed-point price with 8 decimal places.
type Price int64

// Quantity is a fixed-point quantity with 8 decimal places.
type Quantity int64

// Volume is a fixed-point volume (price*quantity magnitude) with 8 decimal places.
type Volume int64

// PriceFromFloat converts a float to a Price, rounding to the nearest tick.
func PriceFromFloat(v float64) Price {
	return Price(math.Round(v * float64(tick)))
}

// QuantityFromFloat converts a float to a Quantity, rounding to the nearest tick.
func QuantityFromFloat(v float64) Quantity {
	return Quantity(math.Round(v * float64(tick)))
}

// PriceFromString parses a decimal string into a Price.
// Digits beyond the 8th decimal place are truncated. Returns false on
// invalid or partial input.
func PriceFromString(s string) (Price, bool) {
	n, ok := fixedFromString(s)
	return Price(n), ok
}

// QuantityFromString parses a decimal string into a Quantity.
func QuantityFromString(s string) (Quantity, bool) {
	n, ok := fixedFromString(s)
	return Quantity(n), ok
}

// VolumeFromString parses a decimal string into a Volume.
func VolumeFromString(s string) (Volume, bool) {
	n, ok := fixedFromString(s)
	return Volume(n), ok
}

func fixedFromString(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.Shift(Scale).IntPart(), true
}

func fixedString(n int64) string {
	return decimal.New(n, -Scale).String()
}

func (p Price) String() string    { return fixedString(int64(p)) }
func (q Quantity) String() string { return fixedString(int64(q)) }
func (v Volume) String() string   { return fixedString(int64(v)) }

func (p Price) Float() float64    { return float64(p) / float64(tick) }
func (q Quantity) Float() float64 { return float64(q) / float64(tick) }
func (v Volume) Float() float64   { return float64(v) / float64(tick) }

// Add returns p + o. Addition on ticks is exact.
func (p Price) Add(o Price) Price { return p + o }

// MulInt returns p scaled by an integer factor.
func (p Price) MulInt(n int64) Price { return Price(int64(p) * n) }

// Add returns q + o.
func (q Quantity) Add(o Quantity) Quantity { return q + o }

// MulInt returns q scaled by an integer factor.
func (q Quantity) MulInt(n int64) Quantity { return Quantity(int64(q) * n) }

// Notional returns the volume of a fill at price p for quantity q.
func Notional(p Price, q Quantity) Volume {
	// The raw tick product exceeds int64 for ordinary fills, so multiply
	// in arbitrary precision and truncate back to 8 decimals.
	prod := decimal.NewFromInt(int64(p)).Mul(decimal.NewFromInt(int64(q)))
	return Volume(prod.Shift(-Scale).IntPart())
}

// IsZero reports whether the quantity is exactly zero.
func (q Quantity) IsZero() bool { return q == 0 }
