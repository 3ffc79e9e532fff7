package bybit

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
)

func testExecutor(t *testing.T, poster *fakePoster, policies exec.Policies) (*Executor, *exec.MemoryOrderTracker, domain.SymbolID) {
	t.Helper()
	registry := domain.NewMemorySymbolRegistry()
	sid := registry.RegisterSymbol(domain.SymbolInfo{
		Exchange: "bybit", Symbol: "BTCUSDT", Type: domain.InstrumentFuture,
	})
	tracker := exec.NewMemoryOrderTracker()
	client := NewRestClient("k", "s", "https://api.bybit.com", poster)
	e := NewExecutor(client, registry, tracker, policies)
	t.Cleanup(e.Close)
	return e, tracker, sid
}

func testOrder(id domain.OrderID, sid domain.SymbolID) domain.Order {
	return domain.Order{
		ID:        id,
		Symbol:    sid,
		Side:      domain.SideBuy,
		Price:     3000050000000,  // 30000.5
		Quantity:  10000000,       // 0.1
		CreatedAt: time.Now(),
	}
}

func TestSubmitSuccessUpdatesTracker(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"ex-123"}}`))
	}}
	e, tracker, sid := testExecutor(t, poster, exec.NoPolicies())

	e.SubmitOrder(testOrder(1, sid))

	require.Len(t, poster.posts, 1)
	assert.Equal(t, "https://api.bybit.com/v5/order/create", poster.posts[0].url)

	var body createOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Equal(t, "linear", body.Category)
	assert.Equal(t, "BTCUSDT", body.Symbol)
	assert.Equal(t, "Buy", body.Side)
	assert.Equal(t, "Limit", body.OrderType)
	assert.Equal(t, "30000.5", body.Price)
	assert.Equal(t, "0.1", body.Qty)
	assert.Equal(t, "1", body.OrderLinkID)

	st, ok := tracker.Get(1)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSubmitted, st.Status)
	assert.Equal(t, "ex-123", st.ExchangeOrderID)
}

func TestSubmitVenueFailureLeavesTracker(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"retCode":10001,"retMsg":"params error"}`))
	}}
	e, tracker, sid := testExecutor(t, poster, exec.NoPolicies())

	e.SubmitOrder(testOrder(1, sid))

	_, ok := tracker.Get(1)
	assert.False(t, ok, "venue failure must not advance the tracker")
}

func TestSubmitTransportErrorLeavesTracker(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onError("HTTP 502: upstream unhappy")
	}}
	e, tracker, sid := testExecutor(t, poster, exec.NoPolicies())

	e.SubmitOrder(testOrder(1, sid))

	_, ok := tracker.Get(1)
	assert.False(t, ok)
}

func TestSubmitUnknownSymbolAborts(t *testing.T) {
	poster := &fakePoster{}
	e, _, _ := testExecutor(t, poster, exec.NoPolicies())

	order := testOrder(1, 9999)
	e.SubmitOrder(order)
	assert.Empty(t, poster.posts, "no transport call for unknown symbol")
}

func TestRateLimitRejectStopsSecondSubmit(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"retCode":0,"result":{"orderId":"ex-1"}}`))
	}}
	policies := exec.Policies{
		RateLimit: exec.NewActiveRateLimit(exec.RateLimitConfig{
			Capacity: 1, RefillRate: 1, Mode: exec.RateLimitReject,
		}),
	}
	e, tracker, sid := testExecutor(t, poster, policies)

	e.SubmitOrder(testOrder(1, sid))
	e.SubmitOrder(testOrder(2, sid))

	assert.Len(t, poster.posts, 1, "second submit must not reach transport")
	_, ok := tracker.Get(1)
	assert.True(t, ok)
	_, ok = tracker.Get(2)
	assert.False(t, ok, "rate-limited order must not touch the tracker")
}

func TestCancelUsesExchangeID(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"retCode":0,"result":{"orderId":"ex-9"}}`))
	}}
	e, tracker, sid := testExecutor(t, poster, exec.NoPolicies())

	order := testOrder(9, sid)
	tracker.OnSubmitted(order, "ex-9", "")

	e.CancelOrder(9)

	require.Len(t, poster.posts, 1)
	assert.Equal(t, "https://api.bybit.com/v5/order/cancel", poster.posts[0].url)
	var body cancelOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Equal(t, "ex-9", body.OrderID)

	st, _ := tracker.Get(9)
	assert.Equal(t, domain.OrderCanceled, st.Status)
}

func TestCancelUnknownOrderAborts(t *testing.T) {
	poster := &fakePoster{}
	e, _, _ := testExecutor(t, poster, exec.NoPolicies())
	e.CancelOrder(404)
	assert.Empty(t, poster.posts)
}

func TestReplaceUsesAmendEndpoint(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"retCode":0,"result":{"orderId":"ex-5"}}`))
	}}
	e, tracker, sid := testExecutor(t, poster, exec.NoPolicies())

	order := testOrder(5, sid)
	tracker.OnSubmitted(order, "ex-5", "")

	replacement := order
	replacement.Price = 3000100000000 // 30001
	e.ReplaceOrder(5, replacement)

	require.Len(t, poster.posts, 1)
	assert.Equal(t, "https://api.bybit.com/v5/order/amend", poster.posts[0].url)
	var body amendOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &body))
	assert.Equal(t, "ex-5", body.OrderID)
	assert.Equal(t, "30001", body.Price)

	st, _ := tracker.Get(5)
	assert.Equal(t, domain.OrderSubmitted, st.Status)
	assert.Equal(t, "30001", st.LocalOrder.Price.String())
}

func TestTimeoutClearedOnResponse(t *testing.T) {
	tracker, err := exec.NewTimeoutTracker(exec.TimeoutConfig{
		SubmitTimeout:  time.Second,
		CancelTimeout:  time.Second,
		ReplaceTimeout: time.Second,
		CheckInterval:  10 * time.Millisecond,
		Mode:           exec.TimeoutLogOnly,
	})
	require.NoError(t, err)

	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"retCode":0,"result":{"orderId":"ex-1"}}`))
	}}
	e, _, sid := testExecutor(t, poster, exec.Policies{Timeout: tracker})

	e.SubmitOrder(testOrder(1, sid))
	assert.False(t, tracker.HasPending(1), "success continuation must clear the pending op")
}
