package bitget

import (
	"log/slog"
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

// Connector ingests Bitget public market data and, when enabled, the
// authenticated orders channel.
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

func NewConnector(cfg Config, bookBus event.BookUpdateBus, tradeBus event.TradeBus,
	orderBus event.OrderExecutionBus, registry domain.SymbolRegistry) *Connector {
	return &Connector{
		cfg:      cfg,
		log:      slog.Default().With("module", "bitget"),
		bookBus:  bookBus,
		tradeBus: tradeBus,
		orderBus: orderBus,
		registry: registry,
		pool:     event.NewBookPool(event.DefaultBookPoolCapacity),
		symCache: make(map[string]domain.SymbolID),
	}
}

// Start validates config and launches the websocket workers. Second call
// is a no-op.
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
		// Bitget wants application-level "ping" text, not protocol pings.
		PingInterval: 0,
	})
	c.wsPublic.OnOpen(func() {
		for _, batch := range c.subscriptions() {
			if err := c.wsPublic.Send(batch); err != nil {
				c.log.Error("subscribe failed", slog.Any("error", err))
				return
			}
		}
		c.log.Info("subscribed", slog.Int("symbols", len(c.cfg.Symbols)))
	})
	c.wsPublic.OnMessage(c.handleMessage)
	c.wsPublic.Start()
	infra.GlobalMetrics.IncrementConnections()

	go c.appPingLoop(c.wsPublic)

	if c.cfg.EnablePrivate {
		c.wsPrivate = net.NewWSClient(net.WSConfig{
			URL:            c.cfg.PrivateEndpoint,
			Origin:         Origin,
			ReconnectDelay: c.cfg.ReconnectDelay,
		})
		c.wsPrivate.OnOpen(func() {
			payload := loginPayload(c.cfg.APIKey, c.cfg.APISecret, c.cfg.Passphrase,
				time.Now().UnixMilli())
			if err := c.wsPrivate.Send(payload); err != nil {
				c.log.Error("login send failed", slog.Any("error", err))
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

func (c *Connector) Running() bool { return c.running.Load() }

// appPingLoop sends the text "ping" Bitget expects every 30s.
func (c *Connector) appPingLoop(ws *net.WSClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for c.running.Load() {
		<-ticker.C
		if !c.running.Load() {
			return
		}
		ws.Send("ping")
	}
}

// subscriptions batches up to 10 symbols per subscribe message; each
// symbol contributes a books channel and a trade channel.
func (c *Connector) subscriptions() []string {
	var out []string
	for start := 0; start < len(c.cfg.Symbols); start += subscribeBatchSize {
		end := start + subscribeBatchSize
		if end > len(c.cfg.Symbols) {
			end = len(c.cfg.Symbols)
		}
		req := subscribeRequest{Op: "subscribe"}
		for _, s := range c.cfg.Symbols[start:end] {
			req.Args = append(req.Args,
				subscribeArg{InstType: instType(s.Type), Channel: bookChannel(s.Depth), InstID: s.Name},
				subscribeArg{InstType: instType(s.Type), Channel: "trade", InstID: s.Name},
			)
		}
		b, err := json.Marshal(req)
		if err != nil {
			c.log.Error("marshal subscribe failed", slog.Any("error", err))
			continue
		}
		out = append(out, string(b))
	}
	return out
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
	case len(head.Arg.Channel) >= 5 && head.Arg.Channel[:5] == "books":
		c.handleBook(payload, recvNs)
	case head.Arg.Channel == "trade":
		c.handleTrades(payload)
	default:
		// subscribe acks, pongs, unknown channels
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

	sid := c.resolveSymbol(frame.Arg.InstID)
	ev.Update.Symbol = sid
	// Some frames omit "action"; those are full snapshots.
	if frame.Action == "update" {
		ev.Update.Type = domain.BookDelta
	} else {
		ev.Update.Type = domain.BookSnapshot
	}
	if info, ok := c.registry.GetSymbolInfo(sid); ok {
		ev.Update.Instrument = info.Type
	}

	for _, d := range frame.Data {
		ev.Update.Bids = appendLevels(ev.Update.Bids, d.Bids, c.log)
		ev.Update.Asks = appendLevels(ev.Update.Asks, d.Asks, c.log)
		if ms, ok := quant.ParseInt64(d.TsMS); ok {
			ev.Update.ExchangeTsNs = quant.MillisToNanos(ms)
		}
	}

	if len(ev.Update.Bids) == 0 && len(ev.Update.Asks) == 0 {
		h.Release()
		return
	}
	ev.PublishNs = time.Now().UnixNano()
	c.bookBus.Publish(h)
	infra.GlobalMetrics.RecordBookPublished()
}

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
	sid := c.resolveSymbol(frame.Arg.InstID)
	var instrument domain.InstrumentType
	if info, ok := c.registry.GetSymbolInfo(sid); ok {
		instrument = info.Type
	}

	for _, t := range frame.Data {
		price, ok := quant.PriceFromString(t.Price)
		if !ok {
			c.log.Warn("bad trade price", slog.String("raw", t.Price))
			continue
		}
		qty, ok := quant.QuantityFromString(t.Size)
		if !ok {
			c.log.Warn("bad trade size", slog.String("raw", t.Size))
			continue
		}
		ev := event.TradeEvent{
			Symbol:     sid,
			Instrument: instrument,
			Price:      price,
			Quantity:   qty,
			IsBuy:      t.Side == "buy" || t.Side == "BUY" || t.Side == "Buy",
		}
		if ms, ok := quant.ParseInt64(t.TsMS); ok {
			ev.ExchangeTsNs = quant.MillisToNanos(ms)
		}
		c.tradeBus.Publish(ev)
		infra.GlobalMetrics.RecordTradePublished()
	}
}

func (c *Connector) handlePrivateMessage(payload []byte) {
	if string(payload) == "pong" {
		return
	}
	var frame privateOrderFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad private frame", slog.Any("error", err))
		return
	}
	if frame.Arg.Channel != "orders" {
		return
	}
	for _, o := range frame.Data {
		status, ok := orderStatusFrom(o.Status)
		if !ok {
			continue
		}
		ev := event.OrderEvent{Status: status}
		ev.Order.Symbol = c.resolveSymbol(o.InstID)
		if id, ok := quant.ParseInt64(o.ClientOid); ok && id >= 0 {
			ev.Order.ID = domain.OrderID(id)
		}
		if o.Side == "sell" {
			ev.Order.Side = domain.SideSell
		}
		if p, ok := quant.PriceFromString(o.Price); ok {
			ev.Order.Price = p
		}
		if q, ok := quant.QuantityFromString(o.Size); ok {
			ev.Order.Quantity = q
		}
		if f, ok := quant.QuantityFromString(o.FillSize); ok {
			ev.Order.FilledQuantity = f
		}
		c.orderBus.Publish(ev)
	}
}

func orderStatusFrom(s string) (domain.OrderStatus, bool) {
	switch s {
	case "live", "new":
		return domain.OrderSubmitted, true
	case "partially_filled":
		return domain.OrderPartiallyFilled, true
	case "filled":
		return domain.OrderFilled, true
	case "canceled", "cancelled":
		return domain.OrderCanceled, true
	case "rejected":
		return domain.OrderRejected, true
	case "expired":
		return domain.OrderExpired, true
	}
	return 0, false
}

func (c *Connector) resolveSymbol(symbol string) domain.SymbolID {
	c.symMu.Lock()
	if id, ok := c.symCache[symbol]; ok {
		c.symMu.Unlock()
		return id
	}
	c.symMu.Unlock()

	if id, ok := c.registry.GetSymbolID("bitget", symbol); ok {
		c.cacheSymbol(symbol, id)
		return id
	}

	info := domain.SymbolInfo{Exchange: "bitget", Symbol: symbol, Type: domain.InstrumentSpot}
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
