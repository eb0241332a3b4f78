package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mmgo/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Engine (The Hotpath Loops)
	go bootstrap.Engine.Run(ctx)
	slog.InfoContext(ctx, "✅ Engine started")

	// 5. Binance Feed Worker
	if err := bootstrap.Worker.Connect(ctx); err != nil {
		slog.Error("Failed to start Binance worker", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Worker.Disconnect()
	slog.InfoContext(ctx, "✅ BinanceWorker started",
		slog.String("symbol", bootstrap.Config.Feed.Symbol),
		slog.Int("depth", bootstrap.Config.Feed.Depth))

	// 6. Periodic CSV export + spread persistence
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := bootstrap.Exporter.Flush(bootstrap.Engine); err != nil {
					slog.Error("CSV export failed", slog.Any("error", err))
				}
				bootstrap.PersistSpreads()
			}
		}
	}()

	// 7. Terminal Dashboard
	go bootstrap.Dashboard.Run(ctx)

	slog.InfoContext(ctx, "✨ Simulator fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")

	// Final flush so the last fills and P&L make it to disk.
	if err := bootstrap.Exporter.Flush(bootstrap.Engine); err != nil {
		slog.Error("Final CSV export failed", slog.Any("error", err))
	}
	bootstrap.PersistSpreads()
}
