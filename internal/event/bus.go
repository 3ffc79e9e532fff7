package event

import (
	"log/slog"
	"sync"
)

// BookUpdateBus accepts pooled book-update events. Ownership of the handle
// transfers on publish; the bus (or its consumer) releases it.
type BookUpdateBus interface {
	Publish(h *BookHandle)
}

// TradeBus accepts public trades by value.
type TradeBus interface {
	Publish(ev TradeEvent)
}

// OrderExecutionBus accepts private-channel order lifecycle events.
type OrderExecutionBus interface {
	Publish(ev OrderEvent)
}

// MemoryBookBus is a channel-backed BookUpdateBus for cmd/app and the
// tests. Publish never blocks: when the subscriber lags, the event is
// released back to its pool and counted as dropped.
type MemoryBookBus struct {
	ch      chan *BookHandle
	mu      sync.Mutex
	dropped uint64
}

func NewMemoryBookBus(buffer int) *MemoryBookBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryBookBus{ch: make(chan *BookHandle, buffer)}
}

func (b *MemoryBookBus) Publish(h *BookHandle) {
	select {
	case b.ch <- h:
	default:
		h.Release()
		b.mu.Lock()
		b.dropped++
		if b.dropped%1024 == 1 {
			slog.Warn("book bus saturated, dropping", slog.Uint64("dropped", b.dropped))
		}
		b.mu.Unlock()
	}
}

// Events returns the subscriber channel. The consumer must Release every
// handle it receives.
func (b *MemoryBookBus) Events() <-chan *BookHandle { return b.ch }

// Dropped returns the number of events discarded due to backpressure.
func (b *MemoryBookBus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// MemoryTradeBus is a channel-backed TradeBus.
type MemoryTradeBus struct {
	ch chan TradeEvent
}

func NewMemoryTradeBus(buffer int) *MemoryTradeBus {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryTradeBus{ch: make(chan TradeEvent, buffer)}
}

func (b *MemoryTradeBus) Publish(ev TradeEvent) {
	select {
	case b.ch <- ev:
	default:
	}
}

func (b *MemoryTradeBus) Events() <-chan TradeEvent { return b.ch }

// MemoryOrderBus is a channel-backed OrderExecutionBus.
type MemoryOrderBus struct {
	ch chan OrderEvent
}

func NewMemoryOrderBus(buffer int) *MemoryOrderBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryOrderBus{ch: make(chan OrderEvent, buffer)}
}

func (b *MemoryOrderBus) Publish(ev OrderEvent) {
	select {
	case b.ch <- ev:
	default:
	}
}

func (b *MemoryOrderBus) Events() <-chan OrderEvent { return b.ch }
