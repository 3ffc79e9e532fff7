package polymarket

import (
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/goccy/go-json"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
	"connector_go/internal/infra"
	"connector_go/internal/net"
)

// Poster is the transport surface the executor writes through.
type Poster interface {
	Post(url, body string, headers []net.Header, onSuccess func([]byte), onError func(string))
}

// Executor places and cancels CLOB orders. Each order is an EIP-712
// typed-data signature over the exchange order struct; the venue has no
// modify endpoint, so replace is rejected rather than synthesized from
// cancel+submit.
type Executor struct {
	cfg       Config
	registry  domain.SymbolRegistry
	tracker   domain.OrderTracker
	transport Poster
	policies  exec.Policies
	log       *slog.Logger

	key     *ecdsa.PrivateKey
	address string
	saltSeq int64
}

func NewExecutor(cfg Config, registry domain.SymbolRegistry, tracker domain.OrderTracker,
	transport Poster, policies exec.Policies) (*Executor, error) {
	key, err := crypto.HexToECDSA(trimHexPrefix(cfg.WalletKey))
	if err != nil {
		return nil, fmt.Errorf("%w: bad wallet key", domain.ErrInvalidConfig)
	}
	p := policies.Normalize()
	p.Timeout.Start()
	return &Executor{
		cfg:       cfg,
		registry:  registry,
		tracker:   tracker,
		transport: transport,
		policies:  p,
		log:       slog.Default().With("module", "polymarket_executor"),
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey).Hex(),
		saltSeq:   time.Now().UnixNano(),
	}, nil
}

// Close stops the timeout checker.
func (e *Executor) Close() { e.policies.Timeout.Stop() }

func (e *Executor) SubmitOrder(order domain.Order) {
	if !e.policies.RateLimit.TryAcquire(order.ID) {
		infra.GlobalMetrics.RecordOrderRejected()
		return
	}
	info, ok := e.registry.GetSymbolInfo(order.Symbol)
	if !ok {
		e.log.Error("submit: unknown symbol", slog.Uint64("symbol", uint64(order.Symbol)))
		return
	}

	signed, err := e.buildSignedOrder(order, info.Symbol)
	if err != nil {
		e.log.Error("submit: signing failed", slog.Any("error", err))
		return
	}
	body, err := json.Marshal(postOrderRequest{Order: signed, Owner: e.maker(), OrderType: "GTC"})
	if err != nil {
		e.log.Error("submit: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackSubmit(order.ID)
	headers := []net.Header{{Key: "Content-Type", Value: "application/json"}}
	e.transport.Post(e.cfg.RestEndpoint+pathPostOrder, string(body), headers,
		func(resp []byte) {
			e.policies.Timeout.ClearPending(order.ID)
			var r postOrderResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("submit: bad response", slog.Any("error", err))
				return
			}
			if !r.Success {
				e.log.Error("submit rejected by venue", slog.String("error", r.ErrMsg))
				return
			}
			infra.GlobalMetrics.RecordOrderSubmitted()
			e.tracker.OnSubmitted(order, r.OrderID, "")
		},
		func(msg string) {
			e.policies.Timeout.ClearPending(order.ID)
			e.log.Error("submit transport error", slog.String("error", msg))
		})
}

func (e *Executor) CancelOrder(id domain.OrderID) {
	if !e.policies.RateLimit.TryAcquire(id) {
		return
	}
	state, ok := e.tracker.Get(id)
	if !ok {
		e.log.Error("cancel: unknown order", slog.Uint64("order_id", uint64(id)))
		return
	}
	if state.ExchangeOrderID == "" {
		e.log.Error("cancel: no exchange order id", slog.Uint64("order_id", uint64(id)))
		return
	}

	body, err := json.Marshal(cancelOrderRequest{OrderID: state.ExchangeOrderID})
	if err != nil {
		e.log.Error("cancel: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackCancel(id)
	headers := []net.Header{{Key: "Content-Type", Value: "application/json"}}
	e.transport.Post(e.cfg.RestEndpoint+pathCancelOrder, string(body), headers,
		func(resp []byte) {
			e.policies.Timeout.ClearPending(id)
			var r cancelOrderResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("cancel: bad response", slog.Any("error", err))
				return
			}
			if len(r.Canceled) == 0 {
				e.log.Error("cancel rejected by venue", slog.String("error", r.ErrMsg))
				return
			}
			e.tracker.OnCanceled(id)
		},
		func(msg string) {
			e.policies.Timeout.ClearPending(id)
			e.log.Error("cancel transport error",
				slog.Uint64("order_id", uint64(id)), slog.String("error", msg))
		})
}

// ReplaceOrder is not supported: the venue has no modify endpoint and the
// core does not synthesize cancel+submit.
func (e *Executor) ReplaceOrder(oldID domain.OrderID, _ domain.Order) {
	e.log.Error("replace not supported on this venue", slog.Uint64("order_id", uint64(oldID)))
}

func (e *Executor) maker() string {
	if e.cfg.FunderWallet != "" {
		return e.cfg.FunderWallet
	}
	return e.address
}

// buildSignedOrder converts the fixed-point order into the CLOB's
// 6-decimal maker/taker amounts and signs the typed data.
func (e *Executor) buildSignedOrder(order domain.Order, tokenID string) (signedOrder, error) {
	priceRaw := scaleToUSDC(order.Price.Float())
	sizeRaw := scaleToUSDC(order.Quantity.Float())
	notionalRaw := priceRaw * sizeRaw / usdcScale

	var side string
	var makerAmount, takerAmount int64
	if order.Side == domain.SideBuy {
		side = "BUY"
		makerAmount, takerAmount = notionalRaw, sizeRaw
	} else {
		side = "SELL"
		makerAmount, takerAmount = sizeRaw, notionalRaw
	}

	e.saltSeq++
	o := signedOrder{
		Salt:          e.saltSeq,
		Maker:         e.maker(),
		Signer:        e.address,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       tokenID,
		MakerAmount:   fmt.Sprintf("%d", makerAmount),
		TakerAmount:   fmt.Sprintf("%d", takerAmount),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: 0,
	}

	sig, err := e.signOrder(o)
	if err != nil {
		return signedOrder{}, err
	}
	o.Signature = sig
	return o, nil
}

func (e *Executor) signOrder(o signedOrder) (string, error) {
	sideIndex := "0"
	if o.Side == "SELL" {
		sideIndex = "1"
	}
	tokenID, ok := new(big.Int).SetString(o.TokenID, 10)
	if !ok {
		return "", fmt.Errorf("token id is not numeric: %s", o.TokenID)
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(chainID)),
			VerifyingContract: exchangeContract,
		},
		Message: apitypes.TypedDataMessage{
			"salt":          fmt.Sprintf("%d", o.Salt),
			"maker":         o.Maker,
			"signer":        o.Signer,
			"taker":         o.Taker,
			"tokenId":       tokenID.String(),
			"makerAmount":   o.MakerAmount,
			"takerAmount":   o.TakerAmount,
			"expiration":    o.Expiration,
			"nonce":         o.Nonce,
			"feeRateBps":    o.FeeRateBps,
			"side":          sideIndex,
			"signatureType": "0",
		},
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return "", err
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return "", err
	}
	digest := crypto.Keccak256([]byte{0x19, 0x01}, domainSeparator, messageHash)

	sig, err := crypto.Sign(digest, e.key)
	if err != nil {
		return "", err
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// scaleToUSDC converts a quantity to the CLOB's 6-decimal integer form.
func scaleToUSDC(v float64) int64 {
	return int64(v*float64(usdcScale) + 0.5)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
