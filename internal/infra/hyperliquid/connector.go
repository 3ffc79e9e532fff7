package hyperliquid

import (
	"fmt"
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

// Connector ingests Hyperliquid l2Book and trades channels. Subscriptions
// are paced and the venue is kept alive with application-level pings.
type Connector struct {
	cfg Config
	log *slog.Logger

	bookBus  event.BookUpdateBus
	tradeBus event.TradeBus
	registry domain.SymbolRegistry
	pool     *event.BookPool

	ws      *net.WSClient
	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	symMu    sync.Mutex
	symCache map[string]domain.SymbolID
}

func NewConnector(cfg Config, bookBus event.BookUpdateBus, tradeBus event.TradeBus,
	registry domain.SymbolRegistry) *Connector {
	return &Connector{
		cfg:      cfg,
		log:      slog.Default().With("module", "hyperliquid"),
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
	c.done = make(chan struct{})

	c.ws = net.NewWSClient(net.WSConfig{
		URL:            c.cfg.WSEndpoint,
		Origin:         Origin,
		ReconnectDelay: c.cfg.ReconnectDelay,
		// The venue wants {"method":"ping"} text, not protocol pings.
		PingInterval: 0,
	})
	c.ws.OnOpen(c.sendSubscriptions)
	c.ws.OnMessage(c.handleMessage)
	c.ws.Start()
	infra.GlobalMetrics.IncrementConnections()

	c.wg.Add(1)
	go c.pingLoop()
	return nil
}

func (c *Connector) Stop() {
	if !c.running.Swap(false) {
		return
	}
	close(c.done)
	c.wg.Wait()
	if c.ws != nil {
		c.ws.Stop()
		infra.GlobalMetrics.DecrementConnections()
	}
}

func (c *Connector) Running() bool { return c.running.Load() }

// sendSubscriptions sends one message per {l2Book|trades, coin}, pausing
// 50ms after every five coins so the venue does not drop the burst.
func (c *Connector) sendSubscriptions() {
	for i, coin := range c.cfg.Symbols {
		for _, typ := range []string{"l2Book", "trades"} {
			msg := fmt.Sprintf(`{"method":"subscribe","subscription":{"type":%q,"coin":%q}}`, typ, coin)
			if err := c.ws.Send(msg); err != nil {
				c.log.Error("subscribe failed", slog.String("coin", coin), slog.Any("error", err))
				return
			}
		}
		if (i+1)%subscribePaceEvery == 0 && i+1 < len(c.cfg.Symbols) {
			time.Sleep(subscribePaceDelay)
		}
	}
	c.log.Info("subscribed", slog.Int("coins", len(c.cfg.Symbols)))
}

// pingLoop keeps the venue session alive.
func (c *Connector) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(appPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.ws.Send(`{"method":"ping"}`)
		}
	}
}

func (c *Connector) handleMessage(payload []byte) {
	if len(payload) == 0 {
		return
	}
	recvNs := time.Now().UnixNano()
	infra.GlobalMetrics.RecordFrame()

	var head wsFrame
	if err := json.Unmarshal(payload, &head); err != nil {
		c.log.Warn("unparseable frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}

	switch head.Channel {
	case "l2Book":
		c.handleBook(payload, recvNs)
	case "trades":
		c.handleTrades(payload)
	default:
		// subscriptionResponse, pong, unknown channels
	}
}

func (c *Connector) handleBook(payload []byte, recvNs int64) {
	var frame bookFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad book frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}
	if frame.Data.Coin == "" || len(frame.Data.Levels) < 2 {
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

	sid := c.resolveSymbol(frame.Data.Coin)
	ev.Update.Symbol = sid
	ev.Update.Instrument = domainInstrument
	// The venue ships only full books.
	ev.Update.Type = domain.BookSnapshot
	ev.Update.ExchangeTsNs = quant.MillisToNanos(frame.Data.TimeMS)

	ev.Update.Bids = c.appendLevels(ev.Update.Bids, frame.Data.Levels[0])
	ev.Update.Asks = c.appendLevels(ev.Update.Asks, frame.Data.Levels[1])

	if len(ev.Update.Bids) == 0 && len(ev.Update.Asks) == 0 {
		h.Release()
		return
	}
	ev.PublishNs = time.Now().UnixNano()
	c.bookBus.Publish(h)
	infra.GlobalMetrics.RecordBookPublished()
}

func (c *Connector) appendLevels(dst []event.BookLevel, levels []bookLevel) []event.BookLevel {
	for _, lvl := range levels {
		price, ok := quant.PriceFromString(lvl.Px)
		if !ok {
			c.log.Warn("bad price in book level", slog.String("raw", lvl.Px))
			continue
		}
		qty, ok := quant.QuantityFromString(lvl.Sz)
		if !ok {
			c.log.Warn("bad size in book level", slog.String("raw", lvl.Sz))
			continue
		}
		dst = append(dst, event.BookLevel{Price: price, Quantity: qty})
	}
	return dst
}

func (c *Connector) handleTrades(payload []byte) {
	var frame tradesFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.log.Warn("bad trades frame", slog.Any("error", err))
		infra.GlobalMetrics.RecordFrameDropped()
		return
	}
	for _, t := range frame.Data {
		price, ok := quant.PriceFromString(t.Px)
		if !ok {
			c.log.Warn("bad trade price", slog.String("raw", t.Px))
			continue
		}
		qty, ok := quant.QuantityFromString(t.Sz)
		if !ok {
			c.log.Warn("bad trade size", slog.String("raw", t.Sz))
			continue
		}
		c.tradeBus.Publish(event.TradeEvent{
			Symbol:       c.resolveSymbol(t.Coin),
			Instrument:   domainInstrument,
			Price:        price,
			Quantity:     qty,
			IsBuy:        t.Side == "B",
			ExchangeTsNs: quant.MillisToNanos(t.TimeMS),
		})
		infra.GlobalMetrics.RecordTradePublished()
	}
}

func (c *Connector) resolveSymbol(coin string) domain.SymbolID {
	c.symMu.Lock()
	if id, ok := c.symCache[coin]; ok {
		c.symMu.Unlock()
		return id
	}
	c.symMu.Unlock()

	id, ok := c.registry.GetSymbolID("hyperliquid", coin)
	if !ok {
		id = c.registry.RegisterSymbol(domain.SymbolInfo{
			Exchange: "hyperliquid",
			Symbol:   coin,
			Type:     domainInstrument,
		})
	}
	c.symMu.Lock()
	c.symCache[coin] = id
	c.symMu.Unlock()
	return id
}
