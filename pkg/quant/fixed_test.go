package quant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceRoundTrip(t *testing.T) {
	cases := []string{
		"30000.5",
		"0.00000001",
		"1",
		"0.1",
		"99999999.99999999",
		"0",
		"-2.5",
	}
	for _, s := range cases {
		p, ok := PriceFromString(s)
		require.True(t, ok, "parse %q", s)
		back, ok := PriceFromString(p.String())
		require.True(t, ok)
		assert.Equal(t, p, back, "round trip %q", s)
	}
}

func TestQuantityRoundTrip(t *testing.T) {
	q, ok := QuantityFromString("0.1")
	require.True(t, ok)
	assert.Equal(t, Quantity(10_000_000), q)
	assert.Equal(t, "0.1", q.String())
}

func TestFromStringRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "not_a_number", "12.3abc", "1.2.3", "--5"} {
		_, ok := PriceFromString(s)
		assert.False(t, ok, "should reject %q", s)
	}
}

func TestFromFloat(t *testing.T) {
	assert.Equal(t, Price(3000050000000), PriceFromFloat(30000.5))
	assert.Equal(t, Quantity(20000000), QuantityFromFloat(0.2))
}

func TestArithmeticExact(t *testing.T) {
	a, _ := PriceFromString("0.1")
	b, _ := PriceFromString("0.2")
	sum := a.Add(b)
	assert.Equal(t, "0.3", sum.String())
	assert.Equal(t, "0.5", a.MulInt(5).String())
	assert.True(t, a < b)
}

func TestNotional(t *testing.T) {
	p, _ := PriceFromString("30000")
	q, _ := QuantityFromString("0.5")
	assert.Equal(t, "15000", Notional(p, q).String())
}

func TestParseFloatStrict(t *testing.T) {
	v, ok := ParseFloat("30000.5")
	require.True(t, ok)
	assert.Equal(t, 30000.5, v)

	for _, s := range []string{"", "abc", "1.2x", "NaN", "+Inf"} {
		_, ok := ParseFloat(s)
		assert.False(t, ok, "should reject %q", s)
	}
}

func TestParseInt64(t *testing.T) {
	v, ok := ParseInt64("1700000000000")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), v)
	assert.Equal(t, int64(1_700_000_000_000_000_000), MillisToNanos(v))

	_, ok = ParseInt64("17e3")
	assert.False(t, ok)
}
