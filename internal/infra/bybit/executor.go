package bybit

import (
	"log/slog"
	"strconv"

	"github.com/goccy/go-json"

	"connector_go/internal/domain"
	"connector_go/internal/exec"
	"connector_go/internal/infra"
)

// Executor submits, cancels and replaces Bybit orders over signed REST.
// Outcomes arrive asynchronously through the tracker; venue-level failures
// and transport errors never advance it.
type Executor struct {
	client   *RestClient
	registry domain.SymbolRegistry
	tracker  domain.OrderTracker
	policies exec.Policies
	log      *slog.Logger
}

func NewExecutor(client *RestClient, registry domain.SymbolRegistry,
	tracker domain.OrderTracker, policies exec.Policies) *Executor {
	p := policies.Normalize()
	p.Timeout.Start()
	return &Executor{
		client:   client,
		registry: registry,
		tracker:  tracker,
		policies: p,
		log:      slog.Default().With("module", "bybit_executor"),
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

	body, err := json.Marshal(createOrderRequest{
		Category:    Category(info.Type),
		Symbol:      info.Symbol,
		Side:        sideString(order.Side),
		OrderType:   "Limit",
		Qty:         order.Quantity.String(),
		Price:       order.Price.String(),
		OrderLinkID: strconv.FormatUint(uint64(order.ID), 10),
	})
	if err != nil {
		e.log.Error("submit: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackSubmit(order.ID)
	e.client.Post(pathOrderCreate, string(body),
		func(resp []byte) {
			e.policies.Timeout.ClearPending(order.ID)
			var r restResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("submit: bad response", slog.Any("error", err))
				return
			}
			if r.RetCode != 0 {
				e.log.Error("submit rejected by venue",
					slog.Int64("ret_code", r.RetCode), slog.String("ret_msg", r.RetMsg))
				return
			}
			infra.GlobalMetrics.RecordOrderSubmitted()
			e.tracker.OnSubmitted(order, r.Result.OrderID, "")
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

	body, err := json.Marshal(cancelOrderRequest{
		Category: Category(info.Type),
		Symbol:   info.Symbol,
		OrderID:  state.ExchangeOrderID,
	})
	if err != nil {
		e.log.Error("cancel: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackCancel(id)
	e.client.Post(pathOrderCancel, string(body),
		func(resp []byte) {
			e.policies.Timeout.ClearPending(id)
			var r restResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("cancel: bad response", slog.Any("error", err))
				return
			}
			if r.RetCode != 0 {
				e.log.Error("cancel rejected by venue",
					slog.Uint64("order_id", uint64(id)),
					slog.Int64("ret_code", r.RetCode), slog.String("ret_msg", r.RetMsg))
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

	body, err := json.Marshal(amendOrderRequest{
		Category: Category(info.Type),
		Symbol:   info.Symbol,
		OrderID:  state.ExchangeOrderID,
		Qty:      newOrder.Quantity.String(),
		Price:    newOrder.Price.String(),
	})
	if err != nil {
		e.log.Error("replace: marshal failed", slog.Any("error", err))
		return
	}

	e.policies.Timeout.TrackReplace(oldID)
	e.client.Post(pathOrderAmend, string(body),
		func(resp []byte) {
			e.policies.Timeout.ClearPending(oldID)
			var r restResponse
			if err := json.Unmarshal(resp, &r); err != nil {
				e.log.Error("replace: bad response", slog.Any("error", err))
				return
			}
			if r.RetCode != 0 {
				e.log.Error("replace rejected by venue",
					slog.Uint64("order_id", uint64(oldID)),
					slog.Int64("ret_code", r.RetCode), slog.String("ret_msg", r.RetMsg))
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
		return "Sell"
	}
	return "Buy"
}
