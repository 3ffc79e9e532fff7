package bybit

import (
	"strings"
	"time"

	"connector_go/internal/domain"
	"connector_go/pkg/quant"
)

var months = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// ParseOptionSymbol recognizes Bybit option symbols of the form
// UNDERLYING-DDMMMYY-STRIKE-{C|P}, with an optional -USDT suffix
// (e.g. BTC-30AUG24-50000-C). Returns false for anything else.
func ParseOptionSymbol(symbol, exchange string) (domain.SymbolInfo, bool) {
	full := symbol
	trimmed := strings.TrimSuffix(symbol, "-USDT")

	parts := strings.Split(trimmed, "-")
	if len(parts) != 4 {
		return domain.SymbolInfo{}, false
	}
	underlying, expiryStr, strikeStr, typeStr := parts[0], parts[1], parts[2], parts[3]
	if underlying == "" {
		return domain.SymbolInfo{}, false
	}

	expiry, ok := parseExpiry(expiryStr)
	if !ok {
		return domain.SymbolInfo{}, false
	}

	strike, ok := quant.PriceFromString(strikeStr)
	if !ok || strike <= 0 {
		return domain.SymbolInfo{}, false
	}

	var optType domain.OptionType
	switch typeStr {
	case "C":
		optType = domain.OptionCall
	case "P":
		optType = domain.OptionPut
	default:
		return domain.SymbolInfo{}, false
	}

	return domain.SymbolInfo{
		Exchange:   exchange,
		Symbol:     full,
		Type:       domain.InstrumentOption,
		Strike:     strike,
		Expiry:     expiry,
		OptionType: optType,
	}, true
}

// parseExpiry parses DDMMMYY (e.g. 30AUG24, 5SEP24). Options settle at
// 08:00 UTC.
func parseExpiry(s string) (time.Time, bool) {
	if len(s) < 6 || len(s) > 7 {
		return time.Time{}, false
	}
	dayLen := len(s) - 5
	day := 0
	for _, c := range s[:dayLen] {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
		day = day*10 + int(c-'0')
	}
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, ok := months[strings.ToUpper(s[dayLen:dayLen+3])]
	if !ok {
		return time.Time{}, false
	}
	year := 0
	for _, c := range s[dayLen+3:] {
		if c < '0' || c > '9' {
			return time.Time{}, false
		}
		year = year*10 + int(c-'0')
	}
	return time.Date(2000+year, month, day, 8, 0, 0, 0, time.UTC), true
}
