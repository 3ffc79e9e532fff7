// Package polymarket implements the Polymarket CLOB connector: market
// websocket ingest keyed by asset ids, and a wallet-signed order executor.
package polymarket

import (
	"time"

	"connector_go/internal/domain"
)

const (
	Origin = "https://polymarket.com"

	// Polygon mainnet CLOB exchange contract; the EIP-712 domain binds
	// signatures to it.
	exchangeContract = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	chainID          = 137

	pathPostOrder   = "/order"
	pathCancelOrder = "/cancel-order"

	// usdcScale is the 6-decimal fixed point the CLOB uses for amounts.
	usdcScale = 1_000_000
)

// Config configures the Polymarket connector and executor.
type Config struct {
	WSEndpoint     string
	RestEndpoint   string
	TokenIDs       []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration

	WalletKey    string // hex private key for order signing
	FunderWallet string // maker address holding the USDC
}

func (c Config) Valid() bool {
	if c.WSEndpoint == "" {
		return false
	}
	for _, id := range c.TokenIDs {
		if id == "" {
			return false
		}
	}
	return true
}

// Prediction-market outcomes trade like spot tokens.
const domainInstrument = domain.InstrumentSpot

// Wire frames. The initial frame after subscribe is an array of book
// snapshots; later frames are single objects keyed by event_type.

type marketFrame struct {
	EventType    string        `json:"event_type"`
	AssetID      string        `json:"asset_id"`
	Bids         []priceLevel  `json:"bids"`
	Asks         []priceLevel  `json:"asks"`
	Buys         []priceLevel  `json:"buys"`
	Sells        []priceLevel  `json:"sells"`
	Price        string        `json:"price"`
	Size         string        `json:"size"`
	Side         string        `json:"side"`
	TimestampMS  string        `json:"timestamp"`
	PriceChanges []interface{} `json:"price_changes"`
}

type priceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// Executor wire shapes.

type signedOrder struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"` // "BUY" | "SELL"
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type postOrderRequest struct {
	Order     signedOrder `json:"order"`
	Owner     string      `json:"owner"`
	OrderType string      `json:"orderType"` // "GTC"
}

type postOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderID"`
	ErrMsg  string `json:"errorMsg"`
}

type cancelOrderRequest struct {
	OrderID string `json:"orderID"`
}

type cancelOrderResponse struct {
	Canceled []string `json:"canceled"`
	ErrMsg   string   `json:"errorMsg"`
}
