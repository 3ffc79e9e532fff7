package polymarket

import (
	"log/slog"
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

// Connector ingests the Polymarket market channel. Book state refreshes on
// full "book" snapshots; incremental price_changes frames are ignored.
type Connector struct {
	cfg Config
	log *slog.Logger

	bookBus  event.BookUpdateBus
	tradeBus event.TradeBus
	registry domain.SymbolRegistry
	pool     *event.BookPool

	ws      *net.WSClient
	running atomic.Bool

	symMu    sync.Mutex
	symCache map[string]domain.SymbolID
}

func NewConnector(cfg Config, bookBus event.BookUpdateBus, tradeBus event.TradeBus,
	registry domain.SymbolRegistry) *Connector {
	return &Connector{
		cfg:      cfg,
		log:      slog.Default().With("module", "polymarket"),
		bookBus:  bookBus,
		tradeBus: tradeBus,
		registry: registry,
		pool:     event.NewBookPool(event.DefaultBookPoolCapacity),
		symCache: make(map[string]domain.SymbolID),
	}
}

func (c *Connector) Start() error {
	if !c.cfg.Valid() {
		c.log.Error("invalid connector config")
		return domain.ErrInvalidConfig
	}
	if c.running.Swap(true) {
		return nil
	}

	c.ws = net.NewWSClient(net.WSConfig{
		URL:            c.cfg.WSEndpoint,
		Origin:         Origin,
		ReconnectDelay: c.cfg.ReconnectDelay,
		PingInterval:   c.cfg.PingInterval,
	})
	c.ws.OnOpen(func() {
		if len(c.cfg.TokenIDs) == 0 {
			return
		}
		if err := c.ws.Send(c.subscription("subscribe")); err != nil {
			c.log.Error("subscribe failed", slog.Any("error", err))
			return
		}
		c.log.Info("subscribed", slog.Int("tokens", len(c.cfg.TokenIDs)))
	})
	c.ws.OnMessage(c.handleMessage)
	c.ws.OnClose(func(code int, reason string) {
		c.log.Info("websocket closed", slog.Int("code", code), slog.String("reason", reason))
	})
	c.ws.Start()
	infra.GlobalMetrics.IncrementConnections()
	return nil
}

func (c *Connector) Stop() {
	if !c.running.Swap(false) {
		return
	}
	if c.ws != nil {
		c.ws.Stop()
		infra.GlobalMetrics.DecrementConnections()
	}
}

func (c *Connector) Running() bool { return c.running.Load() }

func (c *Connector) subscription(operation string) string {
	var sb strings.Builder
	sb.WriteString(`{"assets_ids":[`)
	for i, id := range c.cfg.TokenIDs {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(id)
		sb.WriteByte('"')
	}
	sb.WriteString(`],"type":"market","operation":"`)
	sb.WriteString(operation)
	sb.WriteString(`"}`)
	return sb.String()
}

func (c *Connector) handleMessage(payload []byte) {
	if len(payload) == 0 || string(payload) == "pong" {
		return
	}
	recvNs := time.Now().UnixNano()
	infra.GlobalMetrics.RecordFrame()

	// The initial frame after subscribe is an array of book snapshots.
	if payload[0] == '[' {
		var frames []marketFrame
		if err := json.Unmarshal(payload, &frames); err != nil {
			c.log.Warn("unparseable snapshot array", slog.Any("error", err))
			infra.GlobalMetrics.RecordFrameDropped()
			return
		}
		for _, f := range frames {
			c.publishBook(f, recvNs)
		}
		return
	}

	var frame marketFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("unparseable frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}

	// Incremental updates are not applied; full books arrive as "book"
	// events.
	if len(frame.PriceChanges) > 0 {
		return
	}

	switch frame.EventType {
	case "book":
		c.publishBook(frame, recvNs)
	case "last_trade_price", "trade":
		c.publishTrade(frame)
	default:
		// unknown event types drop without error
	}
}

func (c *Connector) publishBook(frame marketFrame, recvNs int64) {
	if frame.AssetID == "" {
		return
	}
	h, ok := c.pool.Acquire()
	if !ok {
		c.log.Warn("book pool exhausted")
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}
	ev := h.Event()
	ev.RecvNs = recvNs
	ev.Update.Symbol = c.resolveSymbol(frame.AssetID)
	ev.Update.Instrument = domainInstrument
	ev.Update.Type = domain.BookSnapshot
	if ms, ok := quant.ParseInt64(frame.TimestampMS); ok {
		ev.Update.ExchangeTsNs = quant.MillisToNanos(ms)
	}

	bids, asks := frame.Bids, frame.Asks
	if len(bids) == 0 && len(asks) == 0 {
		// Some snapshots name the sides buys/sells.
		bids, asks = frame.Buys, frame.Sells
	}
	ev.Update.Bids = c.appendLevels(ev.Update.Bids, bids)
	ev.Update.Asks = c.appendLevels(ev.Update.Asks, asks)

	if len(ev.Update.Bids) == 0 && len(ev.Update.Asks) == 0 {
		h.Release()
		return
	}
	ev.PublishNs = time.Now().UnixNano()
	c.bookBus.Publish(h)
	infra.GlobalMetrics.RecordBookPublished()
}

func (c *Connector) appendLevels(dst []event.BookLevel, rows []priceLevel) []event.BookLevel {
	for _, row := range rows {
		price, ok := quant.PriceFromString(row.Price)
		if !ok {
			c.log.Warn("bad price in book level", slog.String("raw", row.Price))
			continue
		}
		qty, ok := quant.QuantityFromString(row.Size)
		if !ok {
			c.log.Warn("bad size in book level", slog.String("raw", row.Size))
			continue
		}
		dst = append(dst, event.BookLevel{Price: price, Quantity: qty})
	}
	return dst
}

func (c *Connector) publishTrade(frame marketFrame) {
	if frame.AssetID == "" {
		return
	}
	price, ok := quant.PriceFromString(frame.Price)
	if !ok {
		c.log.Warn("bad trade price", slog.String("raw", frame.Price))
		return
	}
	qty, ok := quant.QuantityFromString(frame.Size)
	if !ok {
		c.log.Warn("bad trade size", slog.String("raw", frame.Size))
		return
	}
	ev := event.TradeEvent{
		Symbol:     c.resolveSymbol(frame.AssetID),
		Instrument: domainInstrument,
		Price:      price,
		Quantity:   qty,
		IsBuy:      frame.Side == "BUY",
	}
	if ms, ok := quant.ParseInt64(frame.TimestampMS); ok {
		ev.ExchangeTsNs = quant.MillisToNanos(ms)
	}
	c.tradeBus.Publish(ev)
	infra.GlobalMetrics.RecordTradePublished()
}

func (c *Connector) resolveSymbol(tokenID string) domain.SymbolID {
	c.symMu.Lock()
	if id, ok := c.symCache[tokenID]; ok {
		c.symMu.Unlock()
		return id
	}
	c.symMu.Unlock()

	id, ok := c.registry.GetSymbolID("polymarket", tokenID)
	if !ok {
		id = c.registry.RegisterSymbol(domain.SymbolInfo{
			Exchange: "polymarket",
			Symbol:   tokenID,
			Type:     domainInstrument,
		})
	}
	c.symMu.Lock()
	c.symCache[tokenID] = id
	c.symMu.Unlock()
	return id
}
