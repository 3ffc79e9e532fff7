// Package bitget implements the Bitget v2 connector: public market-data
// ingest with batched subscriptions, the private login channel, and the
// signed mix-order REST executor.
package bitget

import (
	"strconv"
	"time"

	"connector_go/internal/domain"
)

const (
	Origin = "https://www.bitget.com"

	pathPlaceOrder  = "/api/v2/mix/order/place-order"
	pathCancelOrder = "/api/v2/mix/order/cancel-order"
	pathModifyOrder = "/api/v2/mix/order/modify-order"

	// successCode is Bitget's venue-level success marker.
	successCode = "00000"

	// subscribeBatchSize caps symbols per subscribe message.
	subscribeBatchSize = 10
)

// SymbolEntry is one subscribed instrument.
type SymbolEntry struct {
	Name  string
	Type  domain.InstrumentType
	Depth int // 1, 5, 15, or 0 for full depth
}

// Config configures the Bitget connector.
type Config struct {
	PublicEndpoint  string
	PrivateEndpoint string
	RestEndpoint    string
	Symbols         []SymbolEntry
	ReconnectDelay  time.Duration
	APIKey          string
	APISecret       string
	Passphrase      string
	EnablePrivate   bool
}

func (c Config) Valid() bool {
	if c.PublicEndpoint == "" {
		return false
	}
	for _, s := range c.Symbols {
		if s.Name == "" {
			return false
		}
	}
	if c.EnablePrivate &&
		(c.PrivateEndpoint == "" || c.APIKey == "" || c.APISecret == "" || c.Passphrase == "") {
		return false
	}
	return true
}

// instType maps an instrument type to the websocket instType parameter.
func instType(t domain.InstrumentType) string {
	switch t {
	case domain.InstrumentFuture:
		return "USDT-FUTURES"
	case domain.InstrumentInverse:
		return "COIN-FUTURES"
	case domain.InstrumentOption:
		return "USDC-FUTURES"
	default:
		return "SPOT"
	}
}

// bookChannel selects the books channel for a configured depth.
func bookChannel(depth int) string {
	switch depth {
	case 1, 5, 15:
		return "books" + strconv.Itoa(depth)
	default:
		return "books"
	}
}

// ExecutorParams are the mix-order body constants.
type ExecutorParams struct {
	ProductType string // e.g. "USDT-FUTURES"
	MarginMode  string // e.g. "crossed"
	MarginCoin  string // e.g. "USDT"
	Force       string // e.g. "gtc"
}

// DefaultExecutorParams matches the linear USDT perpetual account setup.
func DefaultExecutorParams() ExecutorParams {
	return ExecutorParams{
		ProductType: "USDT-FUTURES",
		MarginMode:  "crossed",
		MarginCoin:  "USDT",
		Force:       "gtc",
	}
}

// Wire frames.

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type frameArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type publicFrame struct {
	Action string   `json:"action"` // "snapshot" | "update"; omitted means snapshot
	Arg    frameArg `json:"arg"`
}

type bookFrame struct {
	Action string     `json:"action"`
	Arg    frameArg   `json:"arg"`
	Data   []bookData `json:"data"`
}

type bookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	TsMS string     `json:"ts"`
}

type tradeFrame struct {
	Arg  frameArg    `json:"arg"`
	Data []tradeItem `json:"data"`
}

type tradeItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
	TsMS  string `json:"ts"`
}

type privateOrderFrame struct {
	Arg  frameArg           `json:"arg"`
	Data []privateOrderItem `json:"data"`
}

type privateOrderItem struct {
	InstID    string `json:"instId"`
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Status    string `json:"status"`
	FillSize  string `json:"accBaseVolume"`
}

// REST messages.

type restResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data restResult `json:"data"`
}

type restResult struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
}

type placeOrderRequest struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	MarginMode  string `json:"marginMode"`
	MarginCoin  string `json:"marginCoin"`
	Size        string `json:"size"`
	Price       string `json:"price"`
	Side        string `json:"side"`
	TradeSide   string `json:"tradeSide"`
	OrderType   string `json:"orderType"`
	Force       string `json:"force"`
	ClientOid   string `json:"clientOid"`
}

type cancelOrderRequest struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	MarginCoin  string `json:"marginCoin"`
	OrderID     string `json:"orderId,omitempty"`
	ClientOid   string `json:"clientOid,omitempty"`
}

type modifyOrderRequest struct {
	Symbol      string `json:"symbol"`
	ProductType string `json:"productType"`
	OrderID     string `json:"orderId"`
	NewSize     string `json:"newSize"`
	NewPrice    string `json:"newPrice"`
}
