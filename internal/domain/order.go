package domain

import (
	"time"

	"connector_go/pkg/quant"
)

// OrderID is the locally assigned order identifier.
type OrderID uint64

// Order is a local order as submitted by the strategy.
// All monetary values are strictly fixed-point.
type Order struct {
	ID        OrderID
	Symbol    SymbolID
	Side      Side
	Price     quant.Price
	Quantity  quant.Quantity
	CreatedAt time.Time
}

// OrderState is the tracker's view of a single order.
type OrderState struct {
	LocalOrder      Order
	ExchangeOrderID string
	ClientOrderID   string // cloid; set for wallet-signed venues
	Status          OrderStatus
}
