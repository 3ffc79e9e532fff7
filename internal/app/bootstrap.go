// Package app wires configuration, buses and venue connectors into a
// running process.
package app

import (
	"log/slog"
	"time"

	"connector_go/internal/domain"
	"connector_go/internal/event"
	"connector_go/internal/exec"
	"connector_go/internal/infra"
	"connector_go/internal/infra/bitget"
	"connector_go/internal/infra/bybit"
	"connector_go/internal/infra/hyperliquid"
	"connector_go/internal/infra/polymarket"
	"connector_go/internal/net"
)

// Bootstrap owns the shared components and the per-venue wiring.
type Bootstrap struct {
	Config   *infra.Config
	Registry *domain.MemorySymbolRegistry
	Tracker  *exec.MemoryOrderTracker

	BookBus  *event.MemoryBookBus
	TradeBus *event.MemoryTradeBus
	OrderBus *event.MemoryOrderBus

	connectors []domain.ExchangeConnector
	executors  []interface{ Close() }
}

func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, installs the logger, and builds the shared
// plumbing.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	slog.SetDefault(infra.NewLogger(cfg))

	b.Registry = domain.NewMemorySymbolRegistry()
	b.Tracker = exec.NewMemoryOrderTracker()
	b.BookBus = event.NewMemoryBookBus(4096)
	b.TradeBus = event.NewMemoryTradeBus(4096)
	b.OrderBus = event.NewMemoryOrderBus(256)
	return nil
}

// StartConnectors builds and starts every configured venue.
func (b *Bootstrap) StartConnectors() error {
	v := &b.Config.Venues

	if v.Bybit.PublicEndpoint != "" {
		c := bybit.NewConnector(bybitConfig(v.Bybit), b.BookBus, b.TradeBus, b.OrderBus, b.Registry)
		if err := c.Start(); err != nil {
			return err
		}
		b.connectors = append(b.connectors, c)
		slog.Info("bybit connector started", slog.Int("symbols", len(v.Bybit.Symbols)))

		if v.Bybit.RestEndpoint != "" && v.Bybit.EnablePrivate {
			transport, err := net.NewTransport(poolConfig(v.Bybit.Pool))
			if err != nil {
				return err
			}
			client := bybit.NewRestClient(v.Bybit.APIKey, v.Bybit.APISecret, v.Bybit.RestEndpoint, transport)
			policies, err := buildPolicies(v.Bybit, b.Tracker)
			if err != nil {
				return err
			}
			b.executors = append(b.executors, bybit.NewExecutor(client, b.Registry, b.Tracker, policies))
		}
	}

	if v.Bitget.PublicEndpoint != "" {
		c := bitget.NewConnector(bitgetConfig(v.Bitget), b.BookBus, b.TradeBus, b.OrderBus, b.Registry)
		if err := c.Start(); err != nil {
			return err
		}
		b.connectors = append(b.connectors, c)
		slog.Info("bitget connector started", slog.Int("symbols", len(v.Bitget.Symbols)))

		if v.Bitget.RestEndpoint != "" && v.Bitget.EnablePrivate {
			transport, err := net.NewTransport(poolConfig(v.Bitget.Pool))
			if err != nil {
				return err
			}
			client := bitget.NewRestClient(v.Bitget.APIKey, v.Bitget.APISecret, v.Bitget.Passphrase,
				v.Bitget.RestEndpoint, transport)
			policies, err := buildPolicies(v.Bitget, b.Tracker)
			if err != nil {
				return err
			}
			b.executors = append(b.executors,
				bitget.NewExecutor(client, b.Registry, b.Tracker, bitget.DefaultExecutorParams(), policies))
		}
	}

	if v.Hyperliquid.PublicEndpoint != "" {
		hlCfg := hyperliquidConfig(v.Hyperliquid)
		c := hyperliquid.NewConnector(hlCfg, b.BookBus, b.TradeBus, b.Registry)
		if err := c.Start(); err != nil {
			return err
		}
		b.connectors = append(b.connectors, c)
		slog.Info("hyperliquid connector started", slog.Int("coins", len(hlCfg.Symbols)))

		if v.Hyperliquid.RestEndpoint != "" && v.Hyperliquid.EnablePrivate {
			transport, err := net.NewTransport(poolConfig(v.Hyperliquid.Pool))
			if err != nil {
				return err
			}
			var signer hyperliquid.ActionSigner
			if v.Hyperliquid.UseLocalSigner {
				signer = hyperliquid.LocalSigner{}
			} else {
				signer = hyperliquid.NewDaemonSigner(v.Hyperliquid.SignerSocket, v.Hyperliquid.SignerTCPAddr)
			}
			policies, err := buildPolicies(v.Hyperliquid.VenueConfig, b.Tracker)
			if err != nil {
				return err
			}
			b.executors = append(b.executors,
				hyperliquid.NewExecutor(hlCfg, b.Registry, b.Tracker, signer, transport, policies))
		}
	}

	if v.Polymarket.PublicEndpoint != "" {
		pmCfg := polymarketConfig(v.Polymarket)
		c := polymarket.NewConnector(pmCfg, b.BookBus, b.TradeBus, b.Registry)
		if err := c.Start(); err != nil {
			return err
		}
		b.connectors = append(b.connectors, c)
		slog.Info("polymarket connector started", slog.Int("tokens", len(pmCfg.TokenIDs)))

		if v.Polymarket.RestEndpoint != "" && v.Polymarket.WalletKey != "" {
			transport, err := net.NewTransport(poolConfig(v.Polymarket.Pool))
			if err != nil {
				return err
			}
			policies, err := buildPolicies(v.Polymarket.VenueConfig, b.Tracker)
			if err != nil {
				return err
			}
			executor, err := polymarket.NewExecutor(pmCfg, b.Registry, b.Tracker, transport, policies)
			if err != nil {
				return err
			}
			b.executors = append(b.executors, executor)
		}
	}

	return nil
}

// Shutdown stops connectors and executors, joining their workers.
func (b *Bootstrap) Shutdown() {
	for _, c := range b.connectors {
		c.Stop()
	}
	for _, e := range b.executors {
		e.Close()
	}
	snap := infra.GlobalMetrics.Snapshot()
	slog.Info("shutdown complete",
		slog.Uint64("frames", snap.FramesParsed),
		slog.Uint64("dropped", snap.FramesDropped),
		slog.Uint64("books", snap.BooksPublished),
		slog.Uint64("trades", snap.TradesPublished))
}

func durationMS(ms, fallback int) time.Duration {
	if ms <= 0 {
		return time.Duration(fallback) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func poolConfig(p infra.PoolConfig) net.PoolConfig {
	return net.PoolConfig{
		Initial:        p.Initial,
		Max:            p.Max,
		AcquireTimeout: durationMS(p.AcquireTimeoutMS, 1000),
		ConnectTimeout: durationMS(p.ConnectTimeoutMS, 5000),
		RequestTimeout: durationMS(p.RequestTimeoutMS, 10000),
	}
}

func symbolEntriesBybit(symbols []infra.SymbolConfig) []bybit.SymbolEntry {
	out := make([]bybit.SymbolEntry, 0, len(symbols))
	for _, s := range symbols {
		typ, _ := domain.ParseInstrumentType(s.InstrumentType)
		depth := s.BookDepth
		if depth <= 0 {
			depth = 50
		}
		out = append(out, bybit.SymbolEntry{Name: s.Name, Type: typ, Depth: depth})
	}
	return out
}

func bybitConfig(v infra.VenueConfig) bybit.Config {
	return bybit.Config{
		PublicEndpoint:  v.PublicEndpoint,
		PrivateEndpoint: v.PrivateEndpoint,
		RestEndpoint:    v.RestEndpoint,
		Symbols:         symbolEntriesBybit(v.Symbols),
		ReconnectDelay:  durationMS(v.ReconnectDelayMS, 500),
		APIKey:          v.APIKey,
		APISecret:       v.APISecret,
		EnablePrivate:   v.EnablePrivate,
	}
}

func bitgetConfig(v infra.VenueConfig) bitget.Config {
	symbols := make([]bitget.SymbolEntry, 0, len(v.Symbols))
	for _, s := range v.Symbols {
		typ, _ := domain.ParseInstrumentType(s.InstrumentType)
		symbols = append(symbols, bitget.SymbolEntry{Name: s.Name, Type: typ, Depth: s.BookDepth})
	}
	return bitget.Config{
		PublicEndpoint:  v.PublicEndpoint,
		PrivateEndpoint: v.PrivateEndpoint,
		RestEndpoint:    v.RestEndpoint,
		Symbols:         symbols,
		ReconnectDelay:  durationMS(v.ReconnectDelayMS, 500),
		APIKey:          v.APIKey,
		APISecret:       v.APISecret,
		Passphrase:      v.Passphrase,
		EnablePrivate:   v.EnablePrivate,
	}
}

func hyperliquidConfig(v infra.HyperliquidConfig) hyperliquid.Config {
	symbols := make([]string, 0, len(v.Symbols))
	for _, s := range v.Symbols {
		symbols = append(symbols, s.Name)
	}
	return hyperliquid.Config{
		WSEndpoint:     v.PublicEndpoint,
		RestEndpoint:   v.RestEndpoint,
		Symbols:        symbols,
		ReconnectDelay: durationMS(v.ReconnectDelayMS, 500),
		PrivateKeyHex:  v.PrivateKey,
		AccountAddress: v.AccountAddress,
		VaultAddress:   v.VaultAddress,
		Mainnet:        v.Mainnet,
		SignerSocket:   v.SignerSocket,
		SignerTCPAddr:  v.SignerTCPAddr,
		UseLocalSigner: v.UseLocalSigner,
	}
}

func polymarketConfig(v infra.PolymarketConfig) polymarket.Config {
	tokens := v.TokenIDs
	for _, s := range v.Symbols {
		tokens = append(tokens, s.Name)
	}
	return polymarket.Config{
		WSEndpoint:     v.PublicEndpoint,
		RestEndpoint:   v.RestEndpoint,
		TokenIDs:       tokens,
		ReconnectDelay: durationMS(v.ReconnectDelayMS, 500),
		PingInterval:   time.Duration(v.PingIntervalS) * time.Second,
		WalletKey:      v.WalletKey,
		FunderWallet:   v.FunderWallet,
	}
}

// buildPolicies maps venue config to the executor policy bundle. The
// Reject timeout policy marks the local order rejected in the tracker.
func buildPolicies(v infra.VenueConfig, tracker *exec.MemoryOrderTracker) (exec.Policies, error) {
	p := exec.NoPolicies()

	if v.RateLimit.Enabled {
		mode := exec.RateLimitReject
		switch v.RateLimit.Policy {
		case "wait":
			mode = exec.RateLimitWait
		case "callback":
			mode = exec.RateLimitCallback
		}
		p.RateLimit = exec.NewActiveRateLimit(exec.RateLimitConfig{
			Capacity:   v.RateLimit.Capacity,
			RefillRate: v.RateLimit.RefillRate,
			Mode:       mode,
			OnRateLimited: func(id domain.OrderID, wait time.Duration) {
				slog.Warn("order rate limited",
					slog.Uint64("order_id", uint64(id)), slog.Duration("wait", wait))
			},
		})
	}

	if v.Timeouts.Enabled {
		mode := exec.TimeoutReject
		switch v.Timeouts.Policy {
		case "log_only":
			mode = exec.TimeoutLogOnly
		case "callback":
			mode = exec.TimeoutCallback
		case "reconcile":
			mode = exec.TimeoutReconcile
		}
		tt, err := exec.NewTimeoutTracker(exec.TimeoutConfig{
			SubmitTimeout:  durationMS(v.Timeouts.SubmitMS, 5000),
			CancelTimeout:  durationMS(v.Timeouts.CancelMS, 3000),
			ReplaceTimeout: durationMS(v.Timeouts.ReplaceMS, 5000),
			CheckInterval:  durationMS(v.Timeouts.CheckIntervalMS, 100),
			Mode:           mode,
			OnTimeout: func(id domain.OrderID, op string) {
				slog.Warn("order operation timed out",
					slog.Uint64("order_id", uint64(id)), slog.String("op", op))
			},
			OnReject: func(id domain.OrderID, reason string) {
				slog.Warn("order rejected on timeout",
					slog.Uint64("order_id", uint64(id)), slog.String("reason", reason))
				tracker.ApplyStatus(id, domain.OrderRejected)
			},
		})
		if err != nil {
			return exec.Policies{}, err
		}
		p.Timeout = tt
	}

	return p, nil
}
