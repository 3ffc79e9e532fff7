package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"connector_go/internal/app"
	"connector_go/internal/event"
)

func main() {
	configPath := "configs/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.StartConnectors(); err != nil {
		slog.Error("connector start failed", slog.Any("error", err))
		bootstrap.Shutdown()
		os.Exit(1)
	}

	// Drain the buses; a real deployment hands these channels to the
	// strategy engine.
	go drainBooks(ctx, bootstrap.BookBus)
	go drainTrades(ctx, bootstrap.TradeBus)
	go drainOrders(ctx, bootstrap)

	slog.Info("connector layer running, press Ctrl+C to exit")
	<-ctx.Done()

	slog.Info("shutting down")
	bootstrap.Shutdown()
}

func drainBooks(ctx context.Context, bus *event.MemoryBookBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case h := <-bus.Events():
			ev := h.Event()
			slog.Debug("book update",
				slog.Uint64("symbol", uint64(ev.Update.Symbol)),
				slog.Int("bids", len(ev.Update.Bids)),
				slog.Int("asks", len(ev.Update.Asks)))
			h.Release()
		}
	}
}

func drainTrades(ctx context.Context, bus *event.MemoryTradeBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-bus.Events():
			slog.Debug("trade",
				slog.Uint64("symbol", uint64(ev.Symbol)),
				slog.String("price", ev.Price.String()),
				slog.Bool("buy", ev.IsBuy))
		}
	}
}

// drainOrders feeds private-channel order events back into the tracker.
func drainOrders(ctx context.Context, b *app.Bootstrap) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.OrderBus.Events():
			if ev.Order.ID != 0 {
				b.Tracker.ApplyStatus(ev.Order.ID, ev.Status)
			}
			slog.Info("order event",
				slog.Uint64("order_id", uint64(ev.Order.ID)),
				slog.String("status", ev.Status.String()))
		}
	}
}
