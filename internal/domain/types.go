package domain

// InstrumentType classifies a SymbolInfo as spot, future, inverse, or option.
type InstrumentType uint8

const (
	InstrumentSpot InstrumentType = iota
	InstrumentFuture
	InstrumentInverse
	InstrumentOption
)

// ParseInstrumentType maps a venue-config string to an InstrumentType.
func ParseInstrumentType(s string) (InstrumentType, bool) {
	switch s {
	case "", "spot":
		return InstrumentSpot, true
	case "future", "linear":
		return InstrumentFuture, true
	case "inverse":
		return InstrumentInverse, true
	case "option":
		return InstrumentOption, true
	default:
		return InstrumentSpot, false
	}
}

// BookUpdateType distinguishes a full snapshot from an incremental delta.
type BookUpdateType uint8

const (
	BookSnapshot BookUpdateType = iota
	BookDelta
)

// Side is the direction of an order.
type Side uint8

const (
	SideBuy Side = iota
	SideSell
)

// OptionType distinguishes a call from a put for option instruments.
type OptionType uint8

const (
	OptionCall OptionType = iota
	OptionPut
)

// OrderStatus is the tracker's view of an order's lifecycle state.
type OrderStatus uint8

const (
	OrderPreSubmit OrderStatus = iota
	OrderSubmitted
	OrderPartiallyFilled
	OrderFilled
	OrderCanceled
	OrderRejected
	OrderExpired
)

// Terminal reports whether the status is a final state that will not
// transition further.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCanceled, OrderRejected, OrderExpired:
		return true
	default:
		return false
	}
}

// String returns the lower-snake-case name of the status.
func (s OrderStatus) String() string {
	switch s {
	case OrderPreSubmit:
		return "pre_submit"
	case OrderSubmitted:
		return "submitted"
	case OrderPartiallyFilled:
		return "partially_filled"
	case OrderFilled:
		return "filled"
	case OrderCanceled:
		return "canceled"
	case OrderRejected:
		return "rejected"
	case OrderExpired:
		return "expired"
	default:
		return "unknown"
	}
}
