// Package bybit implements the Bybit v5 connector: public market-data
// ingest, the authenticated private channel, and the signed REST order
// executor.
package bybit

import (
	"time"

	"connector_go/internal/domain"
)

const (
	// Origin sent on the websocket handshake.
	Origin = "https://www.bybit.com"

	// recvWindow is the fixed X-BAPI-RECV-WINDOW value; it is part of the
	// signature preimage and must match the header byte-for-byte.
	recvWindow = "10000"

	pathOrderCreate = "/v5/order/create"
	pathOrderCancel = "/v5/order/cancel"
	pathOrderAmend  = "/v5/order/amend"
)

// SymbolEntry is one subscribed instrument.
type SymbolEntry struct {
	Name  string
	Type  domain.InstrumentType
	Depth int
}

// Config configures the Bybit connector.
type Config struct {
	PublicEndpoint  string
	PrivateEndpoint string
	RestEndpoint    string
	Symbols         []SymbolEntry
	ReconnectDelay  time.Duration
	APIKey          string
	APISecret       string
	EnablePrivate   bool
}

// Valid checks the config before the connector transitions to running.
func (c Config) Valid() bool {
	if c.PublicEndpoint == "" {
		return false
	}
	for _, s := range c.Symbols {
		if s.Name == "" || s.Depth <= 0 {
			return false
		}
	}
	if c.EnablePrivate && (c.PrivateEndpoint == "" || c.APIKey == "" || c.APISecret == "") {
		return false
	}
	return true
}

// Category maps an instrument type to the REST "category" parameter.
func Category(t domain.InstrumentType) string {
	switch t {
	case domain.InstrumentFuture:
		return "linear"
	case domain.InstrumentInverse:
		return "inverse"
	case domain.InstrumentOption:
		return "option"
	default:
		return "spot"
	}
}

// Wire frames, public stream.

type publicFrame struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	TsMS  int64  `json:"ts"`
}

type bookFrame struct {
	Topic string   `json:"topic"`
	Type  string   `json:"type"`
	TsMS  int64    `json:"ts"`
	Data  bookData `json:"data"`
}

type bookData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

type tradeFrame struct {
	Topic string      `json:"topic"`
	TsMS  int64       `json:"ts"`
	Data  []tradeItem `json:"data"`
}

type tradeItem struct {
	Symbol   string `json:"s"`
	Price    string `json:"p"`
	Quantity string `json:"v"`
	Side     string `json:"S"`
	TsMS     int64  `json:"T"`
}

// Wire frames, private stream.

type privateFrame struct {
	Op      string `json:"op"`
	Success bool   `json:"success"`
	Topic   string `json:"topic"`
}

type orderFrame struct {
	Topic string      `json:"topic"`
	Data  []orderItem `json:"data"`
}

type orderItem struct {
	Symbol      string `json:"symbol"`
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	CumExecQty  string `json:"cumExecQty"`
	OrderStatus string `json:"orderStatus"`
}

type executionFrame struct {
	Topic string          `json:"topic"`
	Data  []executionItem `json:"data"`
}

type executionItem struct {
	Symbol      string `json:"symbol"`
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
	Side        string `json:"side"`
	ExecPrice   string `json:"execPrice"`
	ExecQty     string `json:"execQty"`
	ExecType    string `json:"execType"`
}

// REST responses.

type restResponse struct {
	RetCode int64      `json:"retCode"`
	RetMsg  string     `json:"retMsg"`
	Result  restResult `json:"result"`
}

type restResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// Request bodies.

type createOrderRequest struct {
	Category    string `json:"category"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	OrderType   string `json:"orderType"`
	Qty         string `json:"qty"`
	Price       string `json:"price"`
	OrderLinkID string `json:"orderLinkId"`
}

type cancelOrderRequest struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderID  string `json:"orderId"`
}

type amendOrderRequest struct {
	Category string `json:"category"`
	Symbol   string `json:"symbol"`
	OrderID  string `json:"orderId"`
	Qty      string `json:"qty"`
	Price    string `json:"price"`
}
