// Package hyperliquid implements the Hyperliquid connector: l2Book/trades
// ingest with paced subscriptions and app-level pings, and the
// wallet-signed order executor talking to the /exchange endpoint.
package hyperliquid

import (
	"time"

	"connector_go/internal/domain"
)

const (
	Origin = "https://app.hyperliquid.xyz"

	// DefaultSignerSocket is where the signer daemon listens on POSIX hosts.
	DefaultSignerSocket = "/dev/shm/hl_sign.sock"
	// DefaultSignerTCPAddr is the loopback fallback.
	DefaultSignerTCPAddr = "127.0.0.1:8787"
	// signerTimeout bounds one sign round trip.
	signerTimeout = 50 * time.Millisecond

	// subscribePaceEvery / subscribePaceDelay throttle subscription bursts
	// so the venue does not drop the socket.
	subscribePaceEvery = 5
	subscribePaceDelay = 50 * time.Millisecond

	appPingInterval = 30 * time.Second
)

// Config configures the Hyperliquid connector and executor.
type Config struct {
	WSEndpoint     string
	RestEndpoint   string // base for /info and /exchange
	Symbols        []string
	ReconnectDelay time.Duration

	PrivateKeyHex  string
	AccountAddress string
	VaultAddress   string
	Mainnet        bool
	SignerSocket   string
	SignerTCPAddr  string
	UseLocalSigner bool
}

func (c Config) Valid() bool {
	if c.WSEndpoint == "" {
		return false
	}
	for _, s := range c.Symbols {
		if s == "" {
			return false
		}
	}
	return true
}

// Wire frames.

type wsFrame struct {
	Channel string `json:"channel"`
}

type bookFrame struct {
	Channel string   `json:"channel"`
	Data    bookData `json:"data"`
}

type bookData struct {
	Coin   string        `json:"coin"`
	TimeMS int64         `json:"time"`
	Levels [][]bookLevel `json:"levels"` // [bids, asks]
}

type bookLevel struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

type tradesFrame struct {
	Channel string      `json:"channel"`
	Data    []tradeItem `json:"data"`
}

type tradeItem struct {
	Coin   string `json:"coin"`
	Side   string `json:"side"` // "B" | "A"
	Px     string `json:"px"`
	Sz     string `json:"sz"`
	TimeMS int64  `json:"time"`
}

type metaResponse struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

// Exchange request/response shapes.

type limitOrderType struct {
	Limit struct {
		Tif string `json:"tif"`
	} `json:"limit"`
}

func gtcOrderType() limitOrderType {
	var t limitOrderType
	t.Limit.Tif = "Gtc"
	return t
}

type orderWire struct {
	Asset      int            `json:"a"`
	IsBuy      bool           `json:"b"`
	Price      string         `json:"p"`
	Size       string         `json:"s"`
	ReduceOnly bool           `json:"r"`
	Type       limitOrderType `json:"t"`
	Cloid      string         `json:"c"`
}

type orderAction struct {
	Type     string      `json:"type"` // "order"
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"` // "na"
}

type cancelByCloidAction struct {
	Type    string            `json:"type"` // "cancelByCloid"
	Cancels []cancelWireCloid `json:"cancels"`
}

type cancelWireCloid struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

type modifyAction struct {
	Type  string    `json:"type"` // "modify"
	Oid   uint64    `json:"oid"`
	Order orderWire `json:"order"`
}

type exchangeResponse struct {
	Status   string `json:"status"` // "ok" | "err"
	Response struct {
		Data struct {
			Statuses []orderStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

type orderStatusWire struct {
	Resting *struct {
		Oid uint64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		Oid uint64 `json:"oid"`
	} `json:"filled"`
	Error string `json:"error"`
}

// domainInstrument is the instrument type registered for Hyperliquid
// coins; everything on the venue is a linear perp.
const domainInstrument = domain.InstrumentFuture
