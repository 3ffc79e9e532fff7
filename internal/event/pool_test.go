package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connector_go/internal/domain"
	"connector_go/pkg/quant"
)

func TestPoolAcquireRelease(t *testing.T) {
	p := NewBookPool(2)

	h1, ok := p.Acquire()
	require.True(t, ok)
	h2, ok := p.Acquire()
	require.True(t, ok)

	_, ok = p.Acquire()
	assert.False(t, ok, "exhausted pool must fail, not block")

	h1.Release()
	h3, ok := p.Acquire()
	require.True(t, ok)

	h2.Release()
	h3.Release()
	assert.Equal(t, 2, p.Free())
}

func TestPoolResetOnRelease(t *testing.T) {
	p := NewBookPool(1)

	h, ok := p.Acquire()
	require.True(t, ok)
	ev := h.Event()
	ev.Update.Symbol = 7
	ev.Update.Type = domain.BookDelta
	ev.Update.Bids = append(ev.Update.Bids, BookLevel{Price: quant.PriceFromFloat(1), Quantity: quant.QuantityFromFloat(2)})
	ev.Update.Asks = append(ev.Update.Asks, BookLevel{Price: quant.PriceFromFloat(3), Quantity: quant.QuantityFromFloat(4)})
	ev.RecvNs = 42
	h.Release()

	h2, ok := p.Acquire()
	require.True(t, ok)
	got := h2.Event()
	assert.Equal(t, domain.SymbolID(0), got.Update.Symbol)
	assert.Equal(t, domain.BookSnapshot, got.Update.Type)
	assert.Empty(t, got.Update.Bids)
	assert.Empty(t, got.Update.Asks)
	assert.Zero(t, got.RecvNs)
	h2.Release()
}

func TestPoolDoubleReleaseNoop(t *testing.T) {
	p := NewBookPool(1)
	h, ok := p.Acquire()
	require.True(t, ok)
	h.Release()
	h.Release()
	assert.Equal(t, 1, p.Free())
}

func TestPoolCrossGoroutineRelease(t *testing.T) {
	p := NewBookPool(8)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		h, ok := p.Acquire()
		if !ok {
			continue
		}
		wg.Add(1)
		go func(h *BookHandle) {
			defer wg.Done()
			h.Release()
		}(h)
		wg.Wait()
	}
	assert.Equal(t, 8, p.Free())
}

func TestMemoryBookBusBackpressure(t *testing.T) {
	p := NewBookPool(4)
	bus := NewMemoryBookBus(1)

	h1, _ := p.Acquire()
	h2, _ := p.Acquire()
	bus.Publish(h1)
	bus.Publish(h2) // buffer full: released, not blocked

	assert.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, 3, p.Free(), "dropped event must return to the pool")

	got := <-bus.Events()
	got.Release()
	assert.Equal(t, 4, p.Free())
}
