package bitget

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
)

func testExecutor(t *testing.T, poster *fakePoster) (*Executor, *exec.MemoryOrderTracker, domain.SymbolID) {
	t.Helper()
	registry := domain.NewMemorySymbolRegistry()
	sid := registry.RegisterSymbol(domain.SymbolInfo{
		Exchange: "bitget", Symbol: "BTCUSDT", Type: domain.InstrumentFuture,
	})
	tracker := exec.NewMemoryOrderTracker()
	client := NewRestClient("k", "s", "p", "https://api.bitget.com", poster)
	e := NewExecutor(client, registry, tracker, DefaultExecutorParams(), exec.NoPolicies())
	t.Cleanup(e.Close)
	return e, tracker, sid
}

func TestSubmitComposesMixOrder(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"code":"00000","msg":"success","data":{"orderId":"ex-7","clientOid":"3"}}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	e.SubmitOrder(domain.Order{ID: 3, Symbol: sid, Side: domain.SideSell,
		Price: 3000000000000, Quantity: 50000000})

	require.Len(t, poster.posts, 1)
	assert.Equal(t, "https://api.bitget.com"+pathPlaceOrder, poster.posts[0].url)

	var body placeOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Equal(t, "BTCUSDT", body.Symbol)
	assert.Equal(t, "USDT-FUTURES", body.ProductType)
	assert.Equal(t, "crossed", body.MarginMode)
	assert.Equal(t, "sell", body.Side)
	assert.Equal(t, "open", body.TradeSide)
	assert.Equal(t, "limit", body.OrderType)
	assert.Equal(t, "30000", body.Price)
	assert.Equal(t, "0.5", body.Size)
	assert.Equal(t, "3", body.ClientOid)

	st, ok := tracker.Get(3)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSubmitted, st.Status)
	assert.Equal(t, "ex-7", st.ExchangeOrderID)
}

func TestSubmitVenueErrorNoTracker(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"code":"40034","msg":"param error"}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	e.SubmitOrder(domain.Order{ID: 1, Symbol: sid, Price: 1, Quantity: 1})

	_, ok := tracker.Get(1)
	assert.False(t, ok)
}

func TestCancelPrefersExchangeID(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"code":"00000","data":{"orderId":"ex-1"}}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	order := domain.Order{ID: 1, Symbol: sid, Price: 1, Quantity: 1}
	tracker.OnSubmitted(order, "ex-1", "")
	e.CancelOrder(1)

	var body cancelOrderRequest
	require.Len(t, poster.posts, 1)
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Equal(t, "ex-1", body.OrderID)
	assert.Empty(t, body.ClientOid)

	st, _ := tracker.Get(1)
	assert.Equal(t, domain.OrderCanceled, st.Status)
}

func TestCancelFallsBackToClientOid(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"code":"00000","data":{}}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	order := domain.Order{ID: 5, Symbol: sid, Price: 1, Quantity: 1}
	tracker.Track(order) // pre-submit, no exchange id yet
	e.CancelOrder(5)

	var body cancelOrderRequest
	require.Len(t, poster.posts, 1)
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Empty(t, body.OrderID)
	assert.Equal(t, "5", body.ClientOid)
}

func TestReplaceComposesModify(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"code":"00000","data":{"orderId":"ex-2"}}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	order := domain.Order{ID: 2, Symbol: sid, Price: 3000000000000, Quantity: 100000000}
	tracker.OnSubmitted(order, "ex-2", "")

	replacement := order
	replacement.Price = 3000100000000
	replacement.Quantity = 200000000
	e.ReplaceOrder(2, replacement)

	var body modifyOrderRequest
	require.Len(t, poster.posts, 1)
	assert.Equal(t, "https://api.bitget.com"+pathModifyOrder, poster.posts[0].url)
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Equal(t, "ex-2", body.OrderID)
	assert.Equal(t, "30001", body.NewPrice)
	assert.Equal(t, "2", body.NewSize)

	st, _ := tracker.Get(2)
	assert.Equal(t, "30001", st.LocalOrder.Price.String())
}
