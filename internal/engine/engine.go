package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/event"
	"mmgo/internal/infra"
)

// Engine wires the core components together and runs the two event
// streams: book updates drive OrderBookState, then SpreadAnalyzer and
// QuoteEngine; trades drive FillSimulator, then PortfolioManager and a
// forced re-quote. Each stream has exactly one writer goroutine and
// enforces strictly increasing sequence numbers; cross-stream ordering
// is not serialized.
//
// Everything reader-facing returns point-in-time copies, so dashboard
// and export collaborators never hold a core lock.
type Engine struct {
	book      *OrderBookState
	spreads   *SpreadAnalyzer
	quotes    *QuoteEngine
	fillSim   *FillSimulator
	portfolio *PortfolioManager
	metrics   *infra.Metrics

	bookInbox  chan *event.BookUpdate
	tradeInbox chan *event.Trade

	lastTradeSeq uint64

	// onFill is invoked after a fill is applied (persistence boundary).
	onFill func(domain.Fill, domain.Position, domain.PnLSnapshot)
}

// Options configure engine construction.
type Options struct {
	Params              Params
	SpreadSizes         []decimal.Decimal
	SpreadWindow        int
	InitialQuoteBalance decimal.Decimal
	InboxSize           int
	Metrics             *infra.Metrics
	OnFill              func(domain.Fill, domain.Position, domain.PnLSnapshot)
}

// New constructs the engine and all core components.
func New(opts Options) *Engine {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 1024
	}
	if opts.Metrics == nil {
		opts.Metrics = infra.NewMetrics()
	}
	qe := NewQuoteEngine(opts.Params, opts.Metrics)
	return &Engine{
		book:       NewOrderBookState(),
		spreads:    NewSpreadAnalyzer(opts.SpreadSizes, opts.SpreadWindow),
		quotes:     qe,
		fillSim:    NewFillSimulator(qe, opts.Params.MaxInventory, opts.Metrics),
		portfolio:  NewPortfolioManager(opts.InitialQuoteBalance, opts.Metrics),
		metrics:    opts.Metrics,
		bookInbox:  make(chan *event.BookUpdate, opts.InboxSize),
		tradeInbox: make(chan *event.Trade, opts.InboxSize),
		onFill:     opts.OnFill,
	}
}

// BookInbox returns the channel the feed worker sends book updates to.
func (e *Engine) BookInbox() chan<- *event.BookUpdate {
	return e.bookInbox
}

// TradeInbox returns the channel the feed worker sends trades to.
func (e *Engine) TradeInbox() chan<- *event.Trade {
	return e.tradeInbox
}

// Run starts both stream loops and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("engine started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.bookLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.tradeLoop(ctx)
	}()
	wg.Wait()

	slog.Info("engine stopped")
}

func (e *Engine) bookLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-e.bookInbox:
			e.processBookUpdate(up)
			event.ReleaseBookUpdate(up)
		}
	}
}

func (e *Engine) processBookUpdate(up *event.BookUpdate) {
	snap, err := e.book.Apply(up)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStaleUpdate):
			e.metrics.RecordStaleUpdate()
			slog.Debug("dropped stale book update", slog.Uint64("seq", up.Seq))
		case errors.Is(err, domain.ErrCrossedBook):
			e.metrics.RecordCrossedBook()
			slog.Warn("dropped crossing book update", slog.Uint64("seq", up.Seq), slog.Any("error", err))
		default:
			slog.Warn("book update rejected", slog.Any("error", err))
		}
		return
	}
	e.metrics.RecordBookUpdate()

	e.spreads.OnSnapshot(snap)

	mid, ok := snap.Mid()
	if !ok {
		return
	}
	pnl := e.portfolio.MarkToMarket(mid)
	e.quotes.Requote(snap, e.portfolio.Position(), pnl.Total, false)
}

func (e *Engine) tradeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tr := <-e.tradeInbox:
			e.processTrade(tr)
			event.ReleaseTrade(tr)
		}
	}
}

func (e *Engine) processTrade(tr *event.Trade) {
	if tr.Seq <= e.lastTradeSeq {
		e.metrics.RecordStaleUpdate()
		slog.Debug("dropped out-of-order trade", slog.Uint64("seq", tr.Seq))
		return
	}
	e.lastTradeSeq = tr.Seq
	e.metrics.RecordTrade()

	fill := e.fillSim.OnTrade(tr.AsDomain(), e.portfolio.Position())
	if fill == nil {
		return
	}

	applied := true
	if err := e.portfolio.ApplyFill(*fill); err != nil {
		// The quote was already withdrawn; the rejected fill is a risk
		// event, not a state change, and must never reach persistence.
		applied = false
		slog.Warn("fill rejected", slog.String("fill_id", fill.ID), slog.Any("error", err))
	} else {
		slog.Info("simulated fill",
			slog.String("side", string(fill.Side)),
			slog.String("price", fill.Price.String()),
			slog.String("qty", fill.Qty.String()))
	}

	// A side was consumed (and inventory may have changed): always re-quote.
	snap := e.book.Snapshot()
	mid, ok := snap.Mid()
	if !ok {
		return
	}
	pnl := e.portfolio.MarkToMarket(mid)
	e.quotes.Requote(snap, e.portfolio.Position(), pnl.Total, true)

	if applied && e.onFill != nil {
		e.onFill(*fill, e.portfolio.Position(), pnl)
	}
}

// ---- Reader-facing snapshot accessors ----

// TopN returns copies of the top n book levels per side.
func (e *Engine) TopN(n int) (bids, asks []domain.PriceLevel) {
	return e.book.TopN(n)
}

// BookSeq returns the sequence id of the published snapshot.
func (e *Engine) BookSeq() uint64 {
	return e.book.Snapshot().Seq
}

// Mid returns the current mid price, if the book is two-sided.
func (e *Engine) Mid() (decimal.Decimal, bool) {
	return e.book.Mid()
}

// SpreadSizes returns the configured notional sizes.
func (e *Engine) SpreadSizes() []decimal.Decimal {
	return e.spreads.Sizes()
}

// SpreadStats returns rolling stats for one notional size.
func (e *Engine) SpreadStats(size decimal.Decimal) (domain.SpreadStats, error) {
	return e.spreads.Stats(size)
}

// SpreadHistory returns the current sample window for one size.
func (e *Engine) SpreadHistory(size decimal.Decimal) []domain.SpreadSample {
	return e.spreads.History(size)
}

// Quotes returns copies of the resting quotes (nil = withdrawn side).
func (e *Engine) Quotes() (bid, ask *domain.Quote) {
	return e.quotes.Quotes()
}

// Halted reports which quote sides the risk gate has withdrawn.
func (e *Engine) Halted() (bid, ask bool) {
	return e.quotes.Halted()
}

// Position returns a copy of the current position.
func (e *Engine) Position() domain.Position {
	return e.portfolio.Position()
}

// PnL returns the most recent mark-to-market snapshot.
func (e *Engine) PnL() domain.PnLSnapshot {
	return e.portfolio.LastPnL()
}

// PnLHistory returns the bounded P&L time series.
func (e *Engine) PnLHistory() []domain.PnLSnapshot {
	return e.portfolio.PnLHistory()
}

// Fills returns the full fill history.
func (e *Engine) Fills() []domain.Fill {
	return e.portfolio.Fills()
}

// RecentFills returns the last n fills.
func (e *Engine) RecentFills(n int) []domain.Fill {
	return e.portfolio.RecentFills(n)
}

// FillsSince returns fills recorded since the previous call.
func (e *Engine) FillsSince() []domain.Fill {
	return e.portfolio.FillsSince()
}

// TotalTrades returns the number of applied fills.
func (e *Engine) TotalTrades() int {
	return e.portfolio.TotalTrades()
}

// Metrics returns a point-in-time metrics snapshot.
func (e *Engine) Metrics() infra.MetricsSnapshot {
	return e.metrics.Snapshot()
}
