// Package event defines the uniform event model produced by the venue
// connectors and the pooled allocation scheme for book updates.
package event

import (
	"time"

	"connector_go/internal/domain"
	"connector_go/pkg/quant"
)

// BookLevel is a single price level.
type BookLevel struct {
	Price    quant.Price
	Quantity quant.Quantity
}

// BookUpdate describes bid/ask levels for one symbol; either a full
// snapshot of the visible depth or a delta of changed levels only.
type BookUpdate struct {
	Symbol       domain.SymbolID
	Instrument   domain.InstrumentType
	Type         domain.BookUpdateType
	Bids         []BookLevel
	Asks         []BookLevel
	ExchangeTsNs int64

	// Option metadata, populated when Instrument == InstrumentOption.
	Strike     quant.Price
	Expiry     time.Time
	OptionType domain.OptionType
}

// BookUpdateEvent owns a BookUpdate plus receive/publish timestamps.
// Instances live in a fixed-capacity pool; they are acquired by a parser,
// published through the book bus, and released by the final consumer.
type BookUpdateEvent struct {
	Update    BookUpdate
	RecvNs    int64
	PublishNs int64
}

// reset clears the dynamic fields so a re-acquired event starts empty.
// Level slices keep their capacity.
func (ev *BookUpdateEvent) reset() {
	ev.Update.Symbol = 0
	ev.Update.Instrument = domain.InstrumentSpot
	ev.Update.Type = domain.BookSnapshot
	ev.Update.Bids = ev.Update.Bids[:0]
	ev.Update.Asks = ev.Update.Asks[:0]
	ev.Update.ExchangeTsNs = 0
	ev.Update.Strike = 0
	ev.Update.Expiry = time.Time{}
	ev.Update.OptionType = domain.OptionCall
	ev.RecvNs = 0
	ev.PublishNs = 0
}

// TradeEvent is a single public trade.
type TradeEvent struct {
	Symbol       domain.SymbolID
	Instrument   domain.InstrumentType
	Price        quant.Price
	Quantity     quant.Quantity
	IsBuy        bool
	ExchangeTsNs int64
}

// OrderEvent is a private-channel order lifecycle notification.
type OrderEvent struct {
	Order  OrderSnapshot
	Status domain.OrderStatus
}

// OrderSnapshot is the order view carried inside an OrderEvent.
type OrderSnapshot struct {
	ID             domain.OrderID
	Symbol         domain.SymbolID
	Side           domain.Side
	Price          quant.Price
	Quantity       quant.Quantity
	FilledQuantity quant.Quantity
}
