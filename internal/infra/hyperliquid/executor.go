package hyperliquid

import (
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
	"connector_go/internal/infra"
	"connector_go/internal/net"
)

// Poster is the transport surface the executor writes through.
type Poster interface {
	Post(url, body string, headers []net.Header, onSuccess func([]byte), onError func(string))
}

// Executor submits, cancels and replaces Hyperliquid orders. Every action
// is wallet-signed; cancels address orders by cloid, replaces address them
// by the numeric exchange oid and carry the original cloid over.
type Executor struct {
	cfg       Config
	registry  domain.SymbolRegistry
	tracker   domain.OrderTracker
	signer    ActionSigner
	transport Poster
	policies  exec.Policies
	log       *slog.Logger

	assetMu  sync.Mutex
	assetIDs map[string]int
	loaded   bool
}

func NewExecutor(cfg Config, registry domain.SymbolRegistry, tracker domain.OrderTracker,
	signer ActionSigner, transport Poster, policies exec.Policies) *Executor {
	p := policies.Normalize()
	p.Timeout.Start()
	e := &Executor{
		cfg:       cfg,
		registry:  registry,
		tracker:   tracker,
		signer:    signer,
		transport: transport,
		policies:  p,
		log:       slog.Default().With("module", "hyperliquid_executor"),
		assetIDs:  make(map[string]int),
	}
	e.loadAssetIDs()
	return e
}

// Close stops the timeout checker.
func (e *Executor) Close() { e.policies.Timeout.Stop() }

// loadAssetIDs lazily fetches the coin → asset index map via /info.
func (e *Executor) loadAssetIDs() {
	e.assetMu.Lock()
	if e.loaded {
		e.assetMu.Unlock()
		return
	}
	e.loaded = true
	e.assetMu.Unlock()

	headers := []net.Header{{Key: "Content-Type", Value: "application/json"}}
	e.transport.Post(e.cfg.RestEndpoint+"/info", `{"type":"meta"}`, headers,
		func(resp []byte) {
			var meta metaResponse
			if err := json.Unmarshal(resp, &meta); err != nil {
				e.log.Warn("meta parse error", slog.Any("error", err))
				return
			}
			e.assetMu.Lock()
			for i, entry := range meta.Universe {
				if entry.Name != "" {
					e.assetIDs[entry.Name] = i
				}
			}
			count := len(e.assetIDs)
			e.assetMu.Unlock()
			e.log.Info("asset map loaded", slog.Int("assets", count))
		},
		func(msg string) {
			e.log.Warn("meta fetch failed", slog.String("error", msg))
			e.assetMu.Lock()
			e.loaded = false // allow a retry on the next operation
			e.assetMu.Unlock()
		})
}

func (e *Executor) assetIDFor(coin string) (int, bool) {
	e.assetMu.Lock()
	id, ok := e.assetIDs[coin]
	loaded := e.loaded
	e.assetMu.Unlock()
	if !ok && !loaded {
		e.loadAssetIDs()
		e.assetMu.Lock()
		id, ok = e.assetIDs[coin]
		e.assetMu.Unlock()
	}
	return id, ok
}

// genCloid produces the 128-bit hex client order id used for cancel by
// cloid; a replace keeps the order's existing cloid.
func genCloid() string {
	u := uuid.New()
	return "0x" + hex.EncodeToString(u[:])
}

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
	asset, ok := e.assetIDFor(info.Symbol)
	if !ok {
		e.log.Error("submit: asset id not cached", slog.String("coin", info.Symbol))
		return
	}

	cloid := genCloid()
	wire := orderWire{
		Asset:  asset,
		IsBuy:  order.Side == domain.SideBuy,
		Price:  order.Price.String(),
		Size:   order.Quantity.String(),
		Type:   gtcOrderType(),
		Cloid:  cloid,
	}
	actionJSON, err := json.Marshal(orderAction{Type: "order", Orders: []orderWire{wire}, Grouping: "na"})
	if err != nil {
		e.log.Error("submit: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackSubmit(order.ID)
	body, err := e.signedBody(string(actionJSON))
	if err != nil {
		e.policies.Timeout.ClearPending(order.ID)
		e.log.Error("submit: signing failed", slog.Any("error", err))
		return
	}

	e.post(body,
		func(resp []byte) {
			e.policies.Timeout.ClearPending(order.ID)
			exID, ok := submitExchangeID(resp, e.log)
			if !ok {
				return
			}
			infra.GlobalMetrics.RecordOrderSubmitted()
			e.tracker.OnSubmitted(order, exID, cloid)
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
	if state.ClientOrderID == "" {
		e.log.Error("cancel: no cloid recorded", slog.Uint64("order_id", uint64(id)))
		return
	}
	info, ok := e.registry.GetSymbolInfo(state.LocalOrder.Symbol)
	if !ok {
		e.log.Error("cancel: unknown symbol", slog.Uint64("symbol", uint64(state.LocalOrder.Symbol)))
		return
	}
	asset, ok := e.assetIDFor(info.Symbol)
	if !ok {
		e.log.Error("cancel: asset id not cached", slog.String("coin", info.Symbol))
		return
	}

	actionJSON, err := json.Marshal(cancelByCloidAction{
		Type:    "cancelByCloid",
		Cancels: []cancelWireCloid{{Asset: asset, Cloid: state.ClientOrderID}},
	})
	if err != nil {
		e.log.Error("cancel: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackCancel(id)
	body, err := e.signedBody(string(actionJSON))
	if err != nil {
		e.policies.Timeout.ClearPending(id)
		e.log.Error("cancel: signing failed", slog.Any("error", err))
		return
	}

	e.post(body,
		func(resp []byte) {
			e.policies.Timeout.ClearPending(id)
			var r exchangeResponse
			if err := json.Unmarshal(resp, &r); err != nil || r.Status != "ok" {
				e.log.Error("cancel rejected by venue", slog.String("response", string(resp)))
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

func (e *Executor) ReplaceOrder(oldID domain.OrderID, newOrder domain.Order) {
	if !e.policies.RateLimit.TryAcquire(oldID) {
		return
	}
	state, ok := e.tracker.Get(oldID)
	if !ok {
		e.log.Error("replace: unknown order", slog.Uint64("order_id", uint64(oldID)))
		return
	}
	exID, err := strconv.ParseUint(state.ExchangeOrderID, 10, 64)
	if err != nil {
		e.log.Error("replace: no numeric exchange id", slog.String("raw", state.ExchangeOrderID))
		return
	}
	info, ok := e.registry.GetSymbolInfo(newOrder.Symbol)
	if !ok {
		e.log.Error("replace: unknown symbol", slog.Uint64("symbol", uint64(newOrder.Symbol)))
		return
	}
	asset, ok := e.assetIDFor(info.Symbol)
	if !ok {
		e.log.Error("replace: asset id not cached", slog.String("coin", info.Symbol))
		return
	}

	cloid := state.ClientOrderID
	wire := orderWire{
		Asset: asset,
		IsBuy: newOrder.Side == domain.SideBuy,
		Price: newOrder.Price.String(),
		Size:  newOrder.Quantity.String(),
		Type:  gtcOrderType(),
		Cloid: cloid,
	}
	actionJSON, err := json.Marshal(modifyAction{Type: "modify", Oid: exID, Order: wire})
	if err != nil {
		e.log.Error("replace: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackReplace(oldID)
	body, err := e.signedBody(string(actionJSON))
	if err != nil {
		e.policies.Timeout.ClearPending(oldID)
		e.log.Error("replace: signing failed", slog.Any("error", err))
		return
	}

	e.post(body,
		func(resp []byte) {
			e.policies.Timeout.ClearPending(oldID)
			var r exchangeResponse
			if err := json.Unmarshal(resp, &r); err != nil || r.Status != "ok" {
				e.log.Error("replace rejected by venue", slog.String("response", string(resp)))
				return
			}
			e.tracker.OnReplaced(oldID, newOrder, state.ExchangeOrderID, cloid)
		},
		func(msg string) {
			e.policies.Timeout.ClearPending(oldID)
			e.log.Error("replace transport error",
				slog.Uint64("order_id", uint64(oldID)), slog.String("error", msg))
		})
}

// signedBody signs the action and assembles the exchange request body.
func (e *Executor) signedBody(actionJSON string) (string, error) {
	nonce := time.Now().UnixMilli()
	sig, err := e.signer.Sign(SignParams{
		ActionJSON:    actionJSON,
		NonceMS:       nonce,
		IsMainnet:     e.cfg.Mainnet,
		PrivateKeyHex: e.cfg.PrivateKeyHex,
		ActivePool:    e.cfg.VaultAddress,
	})
	if err != nil {
		return "", err
	}

	var sb []byte
	sb = append(sb, `{"action":`...)
	sb = append(sb, actionJSON...)
	sb = append(sb, `,"nonce":`...)
	sb = strconv.AppendInt(sb, nonce, 10)
	if e.cfg.VaultAddress != "" {
		sb = append(sb, `,"vaultAddress":"`...)
		sb = append(sb, e.cfg.VaultAddress...)
		sb = append(sb, '"')
	}
	sb = append(sb, `,"signature":{"r":"`...)
	sb = append(sb, sig.R...)
	sb = append(sb, `","s":"`...)
	sb = append(sb, sig.S...)
	sb = append(sb, `","v":`...)
	sb = strconv.AppendInt(sb, int64(sig.V), 10)
	sb = append(sb, `}}`...)
	return string(sb), nil
}

func (e *Executor) post(body string, onSuccess func([]byte), onError func(string)) {
	headers := []net.Header{{Key: "Content-Type", Value: "application/json"}}
	e.transport.Post(e.cfg.RestEndpoint+"/exchange", body, headers, onSuccess, onError)
}

// submitExchangeID pulls the exchange order id from statuses[0], which
// carries either resting.oid or filled.oid on success.
func submitExchangeID(resp []byte, log *slog.Logger) (string, bool) {
	var r exchangeResponse
	if err := json.Unmarshal(resp, &r); err != nil {
		log.Error("submit: bad response", slog.Any("error", err))
		return "", false
	}
	if r.Status != "ok" || len(r.Response.Data.Statuses) == 0 {
		log.Error("submit rejected by venue", slog.String("response", string(resp)))
		return "", false
	}
	st := r.Response.Data.Statuses[0]
	switch {
	case st.Resting != nil:
		return strconv.FormatUint(st.Resting.Oid, 10), true
	case st.Filled != nil:
		return strconv.FormatUint(st.Filled.Oid, 10), true
	default:
		log.Error("submit rejected by venue", slog.String("error", st.Error))
		return "", false
	}
}
