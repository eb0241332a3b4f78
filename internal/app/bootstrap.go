package app

import (
	"log/slog"
	"time"

	"mmgo/internal/domain"
	"mmgo/internal/engine"
	"mmgo/internal/export"
	"mmgo/internal/infra"
	"mmgo/internal/infra/binance"
	"mmgo/internal/infra/storage"
	"mmgo/internal/ui"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Metrics   *infra.Metrics
	Storage   *storage.Storage
	Engine    *engine.Engine
	Worker    *binance.Worker
	Exporter  *export.Manager
	Dashboard *ui.Dashboard
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB,
// engine, feed worker, exporter, dashboard).
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping market making simulator...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	b.Metrics = infra.NewMetrics()

	// 3. Initialize Storage (DB); empty path disables persistence
	if cfg.Storage.Path != "" {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))
	} else {
		slog.Info("Persistence disabled, no storage path configured")
	}

	// 4. Core engine. The OnFill hook is the persistence boundary: fills
	// and P&L snapshots hit SQLite as they happen.
	b.Engine = engine.New(engine.Options{
		Params: engine.Params{
			BaseSpread:   cfg.Strategy.BaseSpread,
			OrderSize:    cfg.Strategy.OrderSize,
			MaxInventory: cfg.Strategy.MaxInventory,
			SkewFactor:   cfg.Strategy.SkewFactor,
			MaxExposure:  cfg.Strategy.MaxExposure,
			MaxLoss:      cfg.Strategy.MaxLoss,
			RequoteTick:  cfg.Strategy.RequoteTick,
		},
		SpreadSizes:         cfg.Spread.Sizes,
		SpreadWindow:        cfg.Spread.Window,
		InitialQuoteBalance: cfg.Strategy.InitialQuoteBalance,
		Metrics:             b.Metrics,
		OnFill:              b.persistFill,
	})

	// 5. Binance feed worker
	b.Worker = binance.NewWorker(
		cfg.Feed.WSURL,
		cfg.Feed.Symbol,
		cfg.Feed.Depth,
		b.Engine.BookInbox(),
		b.Engine.TradeInbox(),
		b.Metrics,
	)

	// 6. CSV exporter
	exporter, err := export.NewManager(cfg.Export.Dir)
	if err != nil {
		return err
	}
	b.Exporter = exporter
	slog.Info("✅ Export directory ready", slog.String("dir", cfg.Export.Dir))

	// 7. Terminal dashboard
	b.Dashboard = ui.New(
		b.Engine,
		time.Duration(cfg.UI.RefreshMS)*time.Millisecond,
		cfg.UI.BookDepth,
	)

	return nil
}

func (b *Bootstrap) persistFill(f domain.Fill, pos domain.Position, pnl domain.PnLSnapshot) {
	if b.Storage == nil {
		return
	}
	if err := b.Storage.SaveFill(f); err != nil {
		slog.Error("Failed to persist fill", slog.String("fill_id", f.ID), slog.Any("error", err))
	}
	if err := b.Storage.SavePnL(pnl); err != nil {
		slog.Error("Failed to persist P&L snapshot", slog.Any("error", err))
	}
}

// PersistSpreads writes the current spread stats for every configured
// size to the database. Called on the export timer.
func (b *Bootstrap) PersistSpreads() {
	if b.Storage == nil {
		return
	}
	now := time.Now()
	for _, size := range b.Engine.SpreadSizes() {
		st, err := b.Engine.SpreadStats(size)
		if err != nil {
			continue // window not warm yet
		}
		if err := b.Storage.SaveSpreadStats(st, now); err != nil {
			slog.Error("Failed to persist spread stats", slog.String("size", size.String()), slog.Any("error", err))
		}
	}
}

// Close releases held resources.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Error("Failed to close storage", slog.Any("error", err))
		}
	}
}
