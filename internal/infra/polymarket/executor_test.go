package polymarket

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
	"connector_go/internal/net"
)

const testKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

type capturedPost struct {
	url  string
	body string
}

type fakePoster struct {
	posts   []capturedPost
	respond func(onSuccess func([]byte), onError func(string))
}

func (f *fakePoster) Post(url, body string, headers []net.Header,
	onSuccess func([]byte), onError func(string)) {
	f.posts = append(f.posts, capturedPost{url: url, body: body})
	if f.respond != nil {
		f.respond(onSuccess, onError)
	}
}

func testExecutor(t *testing.T, poster *fakePoster) (*Executor, *exec.MemoryOrderTracker, domain.SymbolID) {
	t.Helper()
	registry := domain.NewMemorySymbolRegistry()
	sid := registry.RegisterSymbol(domain.SymbolInfo{
		Exchange: "polymarket", Symbol: "1234", Type: domain.InstrumentSpot,
	})
	tracker := exec.NewMemoryOrderTracker()
	e, err := NewExecutor(Config{
		WSEndpoint:   "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		RestEndpoint: "https://clob.polymarket.com",
		WalletKey:    testKey,
	}, registry, tracker, poster, exec.NoPolicies())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, tracker, sid
}

func TestNewExecutorRejectsBadKey(t *testing.T) {
	_, err := NewExecutor(Config{WalletKey: "zz"}, domain.NewMemorySymbolRegistry(),
		exec.NewMemoryOrderTracker(), &fakePoster{}, exec.NoPolicies())
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSubmitBuildsSignedBuyOrder(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"success":true,"orderID":"0xorder1"}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	// Buy 100 shares at 0.45.
	e.SubmitOrder(domain.Order{ID: 1, Symbol: sid, Side: domain.SideBuy,
		Price: 45000000, Quantity: 10000000000})

	require.Len(t, poster.posts, 1)
	assert.True(t, strings.HasSuffix(poster.posts[0].url, "/order"))

	var req postOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &req))
	assert.Equal(t, "GTC", req.OrderType)
	assert.Equal(t, "1234", req.Order.TokenID)
	assert.Equal(t, "BUY", req.Order.Side)
	assert.Equal(t, "45000000", req.Order.MakerAmount, "45 USDC at 6 decimals")
	assert.Equal(t, "100000000", req.Order.TakerAmount, "100 shares at 6 decimals")
	assert.True(t, strings.HasPrefix(req.Order.Signature, "0x"))
	assert.Len(t, req.Order.Signature, 132, "65-byte signature")

	st, ok := tracker.Get(1)
	require.True(t, ok)
	assert.Equal(t, domain.OrderSubmitted, st.Status)
	assert.Equal(t, "0xorder1", st.ExchangeOrderID)
}

func TestSubmitSellSwapsAmounts(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"success":true,"orderID":"0xorder2"}`))
	}}
	e, _, sid := testExecutor(t, poster)

	e.SubmitOrder(domain.Order{ID: 2, Symbol: sid, Side: domain.SideSell,
		Price: 45000000, Quantity: 10000000000})

	var req postOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &req))
	assert.Equal(t, "SELL", req.Order.Side)
	assert.Equal(t, "100000000", req.Order.MakerAmount, "sell makes shares")
	assert.Equal(t, "45000000", req.Order.TakerAmount, "sell takes USDC")
}

func TestSubmitVenueFailureNoTracker(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"success":false,"errorMsg":"not enough balance"}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	e.SubmitOrder(domain.Order{ID: 3, Symbol: sid, Price: 45000000, Quantity: 1000000000})

	_, ok := tracker.Get(3)
	assert.False(t, ok)
}

func TestCancelOrder(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"canceled":["0xorder1"]}`))
	}}
	e, tracker, sid := testExecutor(t, poster)

	tracker.OnSubmitted(domain.Order{ID: 4, Symbol: sid, Price: 1, Quantity: 1}, "0xorder1", "")
	e.CancelOrder(4)

	require.Len(t, poster.posts, 1)
	assert.True(t, strings.HasSuffix(poster.posts[0].url, "/cancel-order"))
	var req cancelOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &req))
	assert.Equal(t, "0xorder1", req.OrderID)

	st, _ := tracker.Get(4)
	assert.Equal(t, domain.OrderCanceled, st.Status)
}

func TestReplaceNotSupported(t *testing.T) {
	poster := &fakePoster{}
	e, tracker, sid := testExecutor(t, poster)

	order := domain.Order{ID: 5, Symbol: sid, Price: 1, Quantity: 1}
	tracker.OnSubmitted(order, "0xorder5", "")
	e.ReplaceOrder(5, order)

	assert.Empty(t, poster.posts, "no transport call; replace is a higher-level policy")
	st, _ := tracker.Get(5)
	assert.Equal(t, domain.OrderSubmitted, st.Status)
}

func TestSignatureDiffersPerSalt(t *testing.T) {
	poster := &fakePoster{respond: func(onSuccess func([]byte), onError func(string)) {
		onSuccess([]byte(`{"success":true,"orderID":"x"}`))
	}}
	e, _, sid := testExecutor(t, poster)

	e.SubmitOrder(domain.Order{ID: 6, Symbol: sid, Price: 45000000, Quantity: 1000000000})
	e.SubmitOrder(domain.Order{ID: 7, Symbol: sid, Price: 45000000, Quantity: 1000000000})

	var first, second postOrderRequest
	require.NoError(t, json.Unmarshal([]byte(poster.posts[0].body), &first))
	require.NoError(t, json.Unmarshal([]byte(poster.posts[1].body), &second))
	assert.NotEqual(t, first.Order.Salt, second.Order.Salt)
	assert.NotEqual(t, first.Order.Signature, second.Order.Signature,
		"different salts must produce different signatures")
}
