package quant

import "strconv"

// ParseFloat parses a full decimal string into a float64.
// Partial parses, empty input, NaN and infinities are rejected; venue
// feeds occasionally ship garbage rows and a half-parsed number must not
// leak into the book.
func ParseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if v != v || v > 1e308 || v < -1e308 {
		return 0, false
	}
	return v, true
}

// ParseInt64 parses a full base-10 string into an int64.
func ParseInt64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MillisToNanos converts a millisecond venue timestamp to nanoseconds.
func MillisToNanos(ms int64) int64 { return ms * 1_000_000 }
