package polymarket

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
		WSEndpoint: "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		TokenIDs:   []string{"1234", "5678"},
	}, bookBus, tradeBus, registry)
	return c, bookBus, tradeBus, registry
}

func TestSubscriptionPayload(t *testing.T) {
	c, _, _, _ := testConnector(t)
	assert.Equal(t,
		`{"assets_ids":["1234","5678"],"type":"market","operation":"subscribe"}`,
		c.subscription("subscribe"))
}

func TestInitialSnapshotArray(t *testing.T) {
	c, bookBus, _, registry := testConnector(t)

	c.handleMessage([]byte(`[{"event_type":"book","asset_id":"1234","bids":[{"price":"0.45","size":"100"}],"asks":[{"price":"0.55","size":"50"}],"timestamp":"1700000000000"},{"event_type":"book","asset_id":"5678","bids":[{"price":"0.2","size":"10"}],"asks":[]}]`))

	h1 := <-bookBus.Events()
	defer h1.Release()
	ev := h1.Event()
	wantID, ok := registry.GetSymbolID("polymarket", "1234")
	require.True(t, ok)
	assert.Equal(t, wantID, ev.Update.Symbol)
	assert.Equal(t, domain.BookSnapshot, ev.Update.Type)
	require.Len(t, ev.Update.Bids, 1)
	assert.Equal(t, "0.45", ev.Update.Bids[0].Price.String())
	assert.Equal(t, int64(1_700_000_000_000_000_000), ev.Update.ExchangeTsNs)

	h2 := <-bookBus.Events()
	defer h2.Release()
	assert.Len(t, h2.Event().Update.Bids, 1)
}

func TestBookEventObject(t *testing.T) {
	c, bookBus, _, _ := testConnector(t)

	c.handleMessage([]byte(`{"event_type":"book","asset_id":"1234","buys":[{"price":"0.4","size":"20"}],"sells":[{"price":"0.6","size":"30"}]}`))

	h := <-bookBus.Events()
	defer h.Release()
	ev := h.Event()
	require.Len(t, ev.Update.Bids, 1, "buys map to bids")
	require.Len(t, ev.Update.Asks, 1, "sells map to asks")
}

func TestPriceChangesIgnored(t *testing.T) {
	c, bookBus, tradeBus, _ := testConnector(t)

	c.handleMessage([]byte(`{"asset_id":"1234","price_changes":[{"price":"0.5","size":"1","side":"BUY"}]}`))

	select {
	case <-bookBus.Events():
		t.Fatal("price_changes must not publish")
	case <-tradeBus.Events():
		t.Fatal("price_changes must not publish")
	default:
	}
}

func TestLastTradePrice(t *testing.T) {
	c, _, tradeBus, _ := testConnector(t)

	c.handleMessage([]byte(`{"event_type":"last_trade_price","asset_id":"1234","price":"0.47","size":"200","side":"BUY","timestamp":"1700000000001"}`))

	ev := <-tradeBus.Events()
	assert.Equal(t, "0.47", ev.Price.String())
	assert.Equal(t, "200", ev.Quantity.String())
	assert.True(t, ev.IsBuy)
}

func TestUnknownEventTypeDropped(t *testing.T) {
	c, bookBus, tradeBus, _ := testConnector(t)

	c.handleMessage([]byte(`{"event_type":"tick_size_change","asset_id":"1234"}`))
	c.handleMessage([]byte(`pong`))

	select {
	case <-bookBus.Events():
		t.Fatal("unexpected book event")
	case <-tradeBus.Events():
		t.Fatal("unexpected trade event")
	default:
	}
}

func TestEmptyBookReturnsSlot(t *testing.T) {
	c, _, _, _ := testConnector(t)
	c.handleMessage([]byte(`{"event_type":"book","asset_id":"1234","bids":[],"asks":[]}`))
	assert.Equal(t, event.DefaultBookPoolCapacity, c.pool.Free())
}
