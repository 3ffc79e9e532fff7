package hyperliquid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connector_go/internal/domain"
	"connector_go/internal/event"
)

func testConnector(t *testing.T) (*Connector, *event.MemoryBookBus, *event.MemoryTradeBus, *domain.MemorySymbolRegistry) {
	t.Helper()
	registry := domain.NewMemorySymbolRegistry()
	bookBus := event.NewMemoryBookBus(16)
	tradeBus := event.NewMemoryTradeBus(16)
	c := NewConnector(Config{
		WSEndpoint: "wss://api.hyperliquid.xyz/ws",
		Symbols:    []string{"BTC", "ETH"},
	}, bookBus, tradeBus, registry)
	return c, bookBus, tradeBus, registry
}

func TestL2BookParse(t *testing.T) {
	c, bookBus, _, registry := testConnector(t)

	c.handleMessage([]byte(`{"channel":"l2Book","data":{"coin":"BTC","time":1700000000000,"levels":[[{"px":"30000.5","sz":"0.1","n":3}],[{"px":"30001","sz":"0.2","n":1}]]}}`))

	h := <-bookBus.Events()
	defer h.Release()
	ev := h.Event()

	wantID, ok := registry.GetSymbolID("hyperliquid", "BTC")
	require.True(t, ok)
	assert.Equal(t, wantID, ev.Update.Symbol)
	assert.Equal(t, domain.BookSnapshot, ev.Update.Type, "venue ships full books only")
	assert.Equal(t, domain.InstrumentFuture, ev.Update.Instrument)
	assert.Equal(t, int64(1_700_000_000_000_000_000), ev.Update.ExchangeTsNs)

	require.Len(t, ev.Update.Bids, 1)
	assert.Equal(t, "30000.5", ev.Update.Bids[0].Price.String())
	require.Len(t, ev.Update.Asks, 1)
	assert.Equal(t, "0.2", ev.Update.Asks[0].Quantity.String())
}

func TestL2BookBadLevelSkipped(t *testing.T) {
	c, bookBus, _, _ := testConnector(t)

	c.handleMessage([]byte(`{"channel":"l2Book","data":{"coin":"BTC","time":1,"levels":[[{"px":"oops","sz":"1","n":1},{"px":"30000","sz":"1","n":1}],[]]}}`))

	h := <-bookBus.Events()
	defer h.Release()
	require.Len(t, h.Event().Update.Bids, 1)
}

func TestTradesParse(t *testing.T) {
	c, _, tradeBus, _ := testConnector(t)

	c.handleMessage([]byte(`{"channel":"trades","data":[{"coin":"ETH","side":"B","px":"2000","sz":"1.5","time":1700000000001},{"coin":"ETH","side":"A","px":"2001","sz":"0.5","time":1700000000002}]}`))

	first := <-tradeBus.Events()
	assert.True(t, first.IsBuy)
	assert.Equal(t, "2000", first.Price.String())
	second := <-tradeBus.Events()
	assert.False(t, second.IsBuy)
	assert.Equal(t, int64(1_700_000_000_002_000_000), second.ExchangeTsNs)
}

func TestControlFramesIgnored(t *testing.T) {
	c, bookBus, tradeBus, _ := testConnector(t)

	c.handleMessage([]byte(`{"channel":"subscriptionResponse","data":{}}`))
	c.handleMessage([]byte(`{"channel":"pong"}`))

	select {
	case <-bookBus.Events():
		t.Fatal("unexpected book event")
	case <-tradeBus.Events():
		t.Fatal("unexpected trade event")
	default:
	}
}

func TestInvalidConfigRefusesStart(t *testing.T) {
	registry := domain.NewMemorySymbolRegistry()
	c := NewConnector(Config{}, event.NewMemoryBookBus(1), event.NewMemoryTradeBus(1), registry)
	assert.ErrorIs(t, c.Start(), domain.ErrInvalidConfig)
	assert.False(t, c.Running())
}
