package bitget

import (
	"log/slog"
	"strconv"

	"github.com/goccy/go-json"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
	"connector_go/internal/infra"
)

// Executor submits, cancels and replaces Bitget mix orders over signed
// REST. Local order ids travel as clientOid so the private channel can map
// venue events back.
type Executor struct {
	client   *RestClient
	registry domain.SymbolRegistry
	tracker  domain.OrderTracker
	params   ExecutorParams
	policies exec.Policies
	log      *slog.Logger
}

func NewExecutor(client *RestClient, registry domain.SymbolRegistry,
	tracker domain.OrderTracker, params ExecutorParams, policies exec.Policies) *Executor {
	p := policies.Normalize()
	p.Timeout.Start()
	return &Executor{
		client:   client,
		registry: registry,
		tracker:  tracker,
		params:   params,
		policies: p,
		log:      slog.Default().With("module", "bitget_executor"),
	}
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

	body, err := json.Marshal(placeOrderRequest{
		Symbol:      info.Symbol,
		ProductType: e.params.ProductType,
		MarginMode:  e.params.MarginMode,
		MarginCoin:  e.params.MarginCoin,
		Size:        order.Quantity.String(),
		Price:       order.Price.String(),
		Side:        sideString(order.Side),
		TradeSide:   "open",
		OrderType:   "limit",
		Force:       e.params.Force,
		ClientOid:   strconv.FormatUint(uint64(order.ID), 10),
	})
	if err != nil {
		e.log.Error("submit: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackSubmit(order.ID)
	e.client.Post(pathPlaceOrder, string(body),
		func(resp []byte) {
			e.policies.Timeout.ClearPending(order.ID)
			var r restResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("submit: bad response", slog.Any("error", err))
				return
			}
			if r.Code != successCode {
				e.log.Error("submit rejected by venue",
					slog.String("code", r.Code), slog.String("msg", r.Msg))
				return
			}
			infra.GlobalMetrics.RecordOrderSubmitted()
			e.tracker.OnSubmitted(order, r.Data.OrderID, "")
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
	info, ok := e.registry.GetSymbolInfo(state.LocalOrder.Symbol)
	if !ok {
		e.log.Error("cancel: unknown symbol", slog.Uint64("symbol", uint64(state.LocalOrder.Symbol)))
		return
	}

	req := cancelOrderRequest{
		Symbol:      info.Symbol,
		ProductType: e.params.ProductType,
		MarginCoin:  e.params.MarginCoin,
	}
	// Fall back to clientOid when the venue has not yet echoed an order id.
	if state.ExchangeOrderID != "" {
		req.OrderID = state.ExchangeOrderID
	} else {
		req.ClientOid = strconv.FormatUint(uint64(id), 10)
	}
	body, err := json.Marshal(req)
	if err != nil {
		e.log.Error("cancel: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackCancel(id)
	e.client.Post(pathCancelOrder, string(body),
		func(resp []byte) {
			e.policies.Timeout.ClearPending(id)
			var r restResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("cancel: bad response", slog.Any("error", err))
				return
			}
			if r.Code != successCode {
				e.log.Error("cancel rejected by venue",
					slog.Uint64("order_id", uint64(id)),
					slog.String("code", r.Code), slog.String("msg", r.Msg))
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
	info, ok := e.registry.GetSymbolInfo(newOrder.Symbol)
	if !ok {
		e.log.Error("replace: unknown symbol", slog.Uint64("symbol", uint64(newOrder.Symbol)))
		return
	}

	body, err := json.Marshal(modifyOrderRequest{
		Symbol:      info.Symbol,
		ProductType: e.params.ProductType,
		OrderID:     state.ExchangeOrderID,
		NewSize:     newOrder.Quantity.String(),
		NewPrice:    newOrder.Price.String(),
	})
	if err != nil {
		e.log.Error("replace: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackReplace(oldID)
	e.client.Post(pathModifyOrder, string(body),
		func(resp []byte) {
			e.policies.Timeout.ClearPending(oldID)
			var r restResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("replace: bad response", slog.Any("error", err))
				return
			}
			if r.Code != successCode {
				e.log.Error("replace rejected by venue",
					slog.Uint64("order_id", uint64(oldID)),
					slog.String("code", r.Code), slog.String("msg", r.Msg))
				return
			}
			e.tracker.OnReplaced(oldID, newOrder, state.ExchangeOrderID, "")
		},
		func(msg string) {
			e.policies.Timeout.ClearPending(oldID)
			e.log.Error("replace transport error",
				slog.Uint64("order_id", uint64(oldID)), slog.String("error", msg))
		})
}

func sideString(s domain.Side) string {
	if s == domain.SideSell {
		return "sell"
	}
	return "buy"
}
