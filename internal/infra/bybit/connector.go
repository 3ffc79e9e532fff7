package bybit

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"connector_go/internal/domain"
	"connector_go/internal/event"
	"connector_go/internal/infra"
	"connector_go/internal/net"
	"connector_go/pkg/quant"
)

// Connector ingests Bybit public market data and, when enabled, the
// authenticated private order stream.
type Connector struct {
	cfg Config
	log *slog.Logger

	bookBus  event.BookUpdateBus
	tradeBus event.TradeBus
	orderBus event.OrderExecutionBus
	registry domain.SymbolRegistry
	pool     *event.BookPool

	wsPublic  *net.WSClient
	wsPrivate *net.WSClient
	running   atomic.Bool

	symMu    sync.Mutex
	symCache map[string]domain.SymbolID
}

// NewConnector wires the connector against its buses and registry.
// The order bus may be nil when private channels are disabled.
func NewConnector(cfg Config, bookBus event.BookUpdateBus, tradeBus event.TradeBus,
	orderBus event.OrderExecutionBus, registry domain.SymbolRegistry) *Connector {
	return &Connector{
		cfg:      cfg,
		log:      slog.Default().With("module", "bybit"),
		bookBus:  bookBus,
		tradeBus: tradeBus,
		orderBus: orderBus,
		registry: registry,
		pool:     event.NewBookPool(event.DefaultBookPoolCapacity),
		symCache: make(map[string]domain.SymbolID),
	}
}

// Start validates the config and launches the websocket workers.
// Second call is a no-op.
func (c *Connector) Start() error {
	if !c.cfg.Valid() {
		c.log.Error("invalid connector config")
		return domain.ErrInvalidConfig
	}
	if c.running.Swap(true) {
		return nil
	}

	c.wsPublic = net.NewWSClient(net.WSConfig{
		URL:            c.cfg.PublicEndpoint,
		Origin:         Origin,
		ReconnectDelay: c.cfg.ReconnectDelay,
		PingInterval:   20 * time.Second,
	})
	c.wsPublic.OnOpen(func() {
		sub := c.subscription()
		c.log.Info("connected, subscribing", slog.Int("symbols", len(c.cfg.Symbols)))
		if err := c.wsPublic.Send(sub); err != nil {
			c.log.Error("subscribe failed", slog.Any("error", err))
		}
	})
	c.wsPublic.OnMessage(c.handleMessage)
	c.wsPublic.OnClose(func(code int, reason string) {
		c.log.Info("websocket closed", slog.Int("code", code), slog.String("reason", reason))
	})
	c.wsPublic.Start()
	infra.GlobalMetrics.IncrementConnections()

	if c.cfg.EnablePrivate {
		c.wsPrivate = net.NewWSClient(net.WSConfig{
			URL:            c.cfg.PrivateEndpoint,
			Origin:         Origin,
			ReconnectDelay: c.cfg.ReconnectDelay,
			PingInterval:   20 * time.Second,
		})
		c.wsPrivate.OnOpen(func() {
			expires := time.Now().UnixMilli() + 10_000
			if err := c.wsPrivate.Send(wsAuthPayload(c.cfg.APIKey, c.cfg.APISecret, expires)); err != nil {
				c.log.Error("auth send failed", slog.Any("error", err))
			}
		})
		c.wsPrivate.OnMessage(c.handlePrivateMessage)
		c.wsPrivate.Start()
		infra.GlobalMetrics.IncrementConnections()
	}
	return nil
}

// Stop joins all owned workers. Idempotent.
func (c *Connector) Stop() {
	if !c.running.Swap(false) {
		return
	}
	if c.wsPublic != nil {
		c.wsPublic.Stop()
		infra.GlobalMetrics.DecrementConnections()
	}
	if c.wsPrivate != nil {
		c.wsPrivate.Stop()
		infra.GlobalMetrics.DecrementConnections()
	}
}

// Running reports the connector state.
func (c *Connector) Running() bool { return c.running.Load() }

// subscription builds the single subscribe message listing the orderbook
// and publicTrade topics.
func (c *Connector) subscription() string {
	var sb strings.Builder
	sb.Grow(64 + len(c.cfg.Symbols)*48)
	sb.WriteString(`{"op":"subscribe","args":[`)
	for i, s := range c.cfg.Symbols {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(`"orderbook.`)
		sb.WriteString(strconv.Itoa(s.Depth))
		sb.WriteByte('.')
		sb.WriteString(s.Name)
		sb.WriteString(`","publicTrade.`)
		sb.WriteString(s.Name)
		sb.WriteByte('"')
	}
	sb.WriteString(`]}`)
	return sb.String()
}

func (c *Connector) handleMessage(payload []byte) {
	if len(payload) == 0 || string(payload) == "pong" {
		return
	}
	recvNs := time.Now().UnixNano()
	infra.GlobalMetrics.RecordFrame()

	var head publicFrame
	if err := json.Unmarshal(payload, &head); err != nil {
		c.log.Warn("unparseable frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}

	switch {
	case strings.HasPrefix(head.Topic, "orderbook."):
		c.handleBook(payload, recvNs)
	case strings.HasPrefix(head.Topic, "publicTrade."):
		c.handleTrades(payload)
	default:
		// op acks, pongs, unknown topics
	}
}

func (c *Connector) handleBook(payload []byte, recvNs int64) {
	var frame bookFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad book frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}

	h, ok := c.pool.Acquire()
	if !ok {
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}
	ev := h.Event()
	ev.RecvNs = recvNs

	sid := c.resolveSymbol(frame.Data.Symbol)
	ev.Update.Symbol = sid
	if frame.Type == "snapshot" {
		ev.Update.Type = domain.BookSnapshot
	} else {
		ev.Update.Type = domain.BookDelta
	}
	if info, ok := c.registry.GetSymbolInfo(sid); ok {
		ev.Update.Instrument = info.Type
		if info.Type == domain.InstrumentOption {
			ev.Update.Strike = info.Strike
			ev.Update.Expiry = info.Expiry
			ev.Update.OptionType = info.OptionType
		}
	}
	ev.Update.ExchangeTsNs = quant.MillisToNanos(frame.TsMS)

	ev.Update.Bids = appendLevels(ev.Update.Bids, frame.Data.Bids, c.log)
	ev.Update.Asks = appendLevels(ev.Update.Asks, frame.Data.Asks, c.log)

	if len(ev.Update.Bids) == 0 && len(ev.Update.Asks) == 0 {
		h.Release()
		return
	}
	ev.PublishNs = time.Now().UnixNano()
	c.bookBus.Publish(h)
	infra.GlobalMetrics.RecordBookPublished()
}

// appendLevels parses [price, size] rows. An invalid row is skipped with a
// warning; the event survives.
func appendLevels(dst []event.BookLevel, rows [][]string, log *slog.Logger) []event.BookLevel {
	for _, row := range rows {
		if len(row) < 2 {
			log.Warn("short book level row")
			continue
		}
		price, ok := quant.PriceFromString(row[0])
		if !ok {
			log.Warn("bad price in book level", slog.String("raw", row[0]))
			continue
		}
		qty, ok := quant.QuantityFromString(row[1])
		if !ok {
			log.Warn("bad size in book level", slog.String("raw", row[1]))
			continue
		}
		dst = append(dst, event.BookLevel{Price: price, Quantity: qty})
	}
	return dst
}

func (c *Connector) handleTrades(payload []byte) {
	var frame tradeFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad trade frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}
	for _, t := range frame.Data {
		price, ok := quant.PriceFromString(t.Price)
		if !ok {
			c.log.Warn("bad trade price", slog.String("raw", t.Price))
			continue
		}
		qty, ok := quant.QuantityFromString(t.Quantity)
		if !ok {
			c.log.Warn("bad trade size", slog.String("raw", t.Quantity))
			continue
		}
		sid := c.resolveSymbol(t.Symbol)
		ev := event.TradeEvent{
			Symbol:       sid,
			Price:        price,
			Quantity:     qty,
			IsBuy:        isBuySide(t.Side),
			ExchangeTsNs: quant.MillisToNanos(t.TsMS),
		}
		if info, ok := c.registry.GetSymbolInfo(sid); ok {
			ev.Instrument = info.Type
		}
		c.tradeBus.Publish(ev)
		infra.GlobalMetrics.RecordTradePublished()
	}
}

func isBuySide(s string) bool {
	return s == "Buy" || s == "buy" || s == "B"
}

// resolveSymbol returns the SymbolID for a venue symbol string, consulting
// the per-connector cache first. New symbols register with the instrument
// type from the subscription config; option-shaped symbols register with
// strike, expiry and option type.
func (c *Connector) resolveSymbol(symbol string) domain.SymbolID {
	c.symMu.Lock()
	if id, ok := c.symCache[symbol]; ok {
		c.symMu.Unlock()
		return id
	}
	c.symMu.Unlock()

	if id, ok := c.registry.GetSymbolID("bybit", symbol); ok {
		c.cacheSymbol(symbol, id)
		return id
	}

	if info, ok := ParseOptionSymbol(symbol, "bybit"); ok {
		id := c.registry.RegisterSymbol(info)
		c.cacheSymbol(symbol, id)
		return id
	}

	info := domain.SymbolInfo{Exchange: "bybit", Symbol: symbol, Type: domain.InstrumentSpot}
	for _, s := range c.cfg.Symbols {
		if s.Name == symbol {
			info.Type = s.Type
			break
		}
	}
	id := c.registry.RegisterSymbol(info)
	c.cacheSymbol(symbol, id)
	return id
}

func (c *Connector) cacheSymbol(symbol string, id domain.SymbolID) {
	c.symMu.Lock()
	c.symCache[symbol] = id
	c.symMu.Unlock()
}

// Private channel: auth ack, then order and execution topics.

func (c *Connector) handlePrivateMessage(payload []byte) {
	var head privateFrame
	if err := json.Unmarshal(payload, &head); err != nil {
		c.log.Warn("bad private frame", slog.Any("error", err))
		return
	}

	if head.Op == "auth" {
		if !head.Success {
			c.log.Error("private auth rejected")
			return
		}
		if err := c.wsPrivate.Send(`{"op":"subscribe","args":["order","execution"]}`); err != nil {
			c.log.Error("private subscribe failed", slog.Any("error", err))
		}
		return
	}

	switch head.Topic {
	case "order":
		c.handleOrderTopic(payload)
	case "execution":
		c.handleExecutionTopic(payload)
	}
}

func (c *Connector) handleOrderTopic(payload []byte) {
	var frame orderFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad order frame", slog.Any("error", err))
		return
	}
	for _, o := range frame.Data {
		status, ok := orderStatusFrom(o.OrderStatus)
		if !ok {
			continue
		}
		ev := event.OrderEvent{Status: status}
		ev.Order = c.orderSnapshot(o.OrderLinkID, o.Symbol, o.Side, o.Price, o.Qty, o.CumExecQty)
		c.orderBus.Publish(ev)
	}
}

func (c *Connector) handleExecutionTopic(payload []byte) {
	var frame executionFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad execution frame", slog.Any("error", err))
		return
	}
	for _, e := range frame.Data {
		if e.ExecType != "Trade" {
			continue
		}
		// A fill execution does not say whether it closed the order; the
		// order topic delivers the terminal Filled.
		ev := event.OrderEvent{Status: domain.OrderPartiallyFilled}
		ev.Order = c.orderSnapshot(e.OrderLinkID, e.Symbol, e.Side, e.ExecPrice, e.ExecQty, e.ExecQty)
		c.orderBus.Publish(ev)
	}
}

func (c *Connector) orderSnapshot(linkID, symbol, side, price, qty, filled string) event.OrderSnapshot {
	snap := event.OrderSnapshot{Symbol: c.resolveSymbol(symbol)}
	if id, ok := quant.ParseInt64(linkID); ok && id >= 0 {
		snap.ID = domain.OrderID(id)
	}
	if side == "Sell" || side == "sell" {
		snap.Side = domain.SideSell
	}
	if p, ok := quant.PriceFromString(price); ok {
		snap.Price = p
	}
	if q, ok := quant.QuantityFromString(qty); ok {
		snap.Quantity = q
	}
	if f, ok := quant.QuantityFromString(filled); ok {
		snap.FilledQuantity = f
	}
	return snap
}

func orderStatusFrom(s string) (domain.OrderStatus, bool) {
	switch s {
	case "New":
		return domain.OrderSubmitted, true
	case "PartiallyFilled":
		return domain.OrderPartiallyFilled, true
	case "Filled":
		return domain.OrderFilled, true
	case "Cancelled", "PartiallyFilledCanceled":
		return domain.OrderCanceled, true
	case "Rejected":
		return domain.OrderRejected, true
	case "Expired", "Deactivated":
		return domain.OrderExpired, true
	}
	return 0, false
}
