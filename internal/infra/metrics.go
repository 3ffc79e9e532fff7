package infra

import "sync/atomic"

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	framesParsed  atomic.Uint64
	framesDropped atomic.Uint64 // pool exhausted or unparseable
	booksOut      atomic.Uint64
	tradesOut     atomic.Uint64

	ordersSubmitted atomic.Uint64
	ordersRejected  atomic.Uint64

	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

func (m *Metrics) RecordFrame()          { m.framesParsed.Add(1) }
func (m *Metrics) RecordFrameDropped()   { m.framesDropped.Add(1) }
func (m *Metrics) RecordBookPublished()  { m.booksOut.Add(1) }
func (m *Metrics) RecordTradePublished() { m.tradesOut.Add(1) }
func (m *Metrics) RecordOrderSubmitted() { m.ordersSubmitted.Add(1) }
func (m *Metrics) RecordOrderRejected()  { m.ordersRejected.Add(1) }

func (m *Metrics) IncrementConnections() { m.activeConnections.Add(1) }
func (m *Metrics) DecrementConnections() { m.activeConnections.Add(-1) }

// MetricsSnapshot is a point-in-time view of all counters.
type MetricsSnapshot struct {
	FramesParsed      uint64
	FramesDropped     uint64
	BooksPublished    uint64
	TradesPublished   uint64
	OrdersSubmitted   uint64
	OrdersRejected    uint64
	ActiveConnections int32
}

// Snapshot captures the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		FramesParsed:      m.framesParsed.Load(),
		FramesDropped:     m.framesDropped.Load(),
		BooksPublished:    m.booksOut.Load(),
		TradesPublished:   m.tradesOut.Load(),
		OrdersSubmitted:   m.ordersSubmitted.Load(),
		OrdersRejected:    m.ordersRejected.Load(),
		ActiveConnections: m.activeConnections.Load(),
	}
}
