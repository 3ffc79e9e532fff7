package exec

import (
	"sync"

	"connector_go/internal/domain"
)

// MemoryOrderTracker is the in-process domain.OrderTracker used by cmd/app
// and the tests. One entry per local order id.
type MemoryOrderTracker struct {
	mu     sync.Mutex
	orders map[domain.OrderID]domain.OrderState
}

func NewMemoryOrderTracker() *MemoryOrderTracker {
	return &MemoryOrderTracker{orders: make(map[domain.OrderID]domain.OrderState)}
}

// Track registers a local order in its pre-submit state. Executors that
// cancel or replace by exchange id rely on this entry existing.
func (t *MemoryOrderTracker) Track(order domain.Order) {
	t.mu.Lock()
	t.orders[order.ID] = domain.OrderState{LocalOrder: order, Status: domain.OrderPreSubmit}
	t.mu.Unlock()
}

func (t *MemoryOrderTracker) OnSubmitted(order domain.Order, exchangeOrderID, clientOrderID string) {
	t.mu.Lock()
	t.orders[order.ID] = domain.OrderState{
		LocalOrder:      order,
		ExchangeOrderID: exchangeOrderID,
		ClientOrderID:   clientOrderID,
		Status:          domain.OrderSubmitted,
	}
	t.mu.Unlock()
}

func (t *MemoryOrderTracker) OnCanceled(id domain.OrderID) {
	t.mu.Lock()
	if st, ok := t.orders[id]; ok {
		st.Status = domain.OrderCanceled
		t.orders[id] = st
	}
	t.mu.Unlock()
}

func (t *MemoryOrderTracker) OnReplaced(oldID domain.OrderID, newOrder domain.Order, exchangeOrderID, clientOrderID string) {
	t.mu.Lock()
	st := t.orders[oldID]
	st.LocalOrder = newOrder
	if exchangeOrderID != "" {
		st.ExchangeOrderID = exchangeOrderID
	}
	if clientOrderID != "" {
		st.ClientOrderID = clientOrderID
	}
	st.Status = domain.OrderSubmitted
	t.orders[oldID] = st
	t.mu.Unlock()
}

func (t *MemoryOrderTracker) Get(id domain.OrderID) (domain.OrderState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.orders[id]
	return st, ok
}

// ApplyStatus records a status observed on a private channel.
func (t *MemoryOrderTracker) ApplyStatus(id domain.OrderID, status domain.OrderStatus) {
	t.mu.Lock()
	if st, ok := t.orders[id]; ok && !st.Status.Terminal() {
		st.Status = status
		t.orders[id] = st
	}
	t.mu.Unlock()
}
