package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/infra"
)

// FillSimulator decides whether an incoming market trade would have
// executed one of our resting quotes. A sell-aggressor trade at or
// below our bid fills the bid; a buy-aggressor trade at or above our
// ask fills the ask. Fills execute at the quote's own price.
//
// Matching, quantity reduction and withdrawal happen under the quote
// board lock in one step, so a concurrent re-quote can neither be
// double-filled nor matched after withdrawal. At most one fill is
// produced per trade.
type FillSimulator struct {
	board        *quoteBoard
	maxInventory decimal.Decimal
	metrics      *infra.Metrics
}

// NewFillSimulator creates a simulator matching against the quote
// engine's board. Fills are sized down so |position| never exceeds
// maxInventory.
func NewFillSimulator(qe *QuoteEngine, maxInventory decimal.Decimal, metrics *infra.Metrics) *FillSimulator {
	return &FillSimulator{
		board:        qe.board,
		maxInventory: maxInventory,
		metrics:      metrics,
	}
}

// OnTrade tests the trade against the resting quotes and returns the
// resulting fill, or nil when nothing crossed. pos is the position
// before the fill; it bounds the executable quantity.
func (f *FillSimulator) OnTrade(tr domain.Trade, pos domain.Position) *domain.Fill {
	f.board.mu.Lock()
	defer f.board.mu.Unlock()

	switch tr.Aggressor {
	case domain.SideSell:
		quote := f.board.bid
		if quote == nil || tr.Price.GreaterThan(quote.Price) {
			return nil
		}
		headroom := f.maxInventory.Sub(pos.BaseQty) // room to buy
		qty := decimal.Min(tr.Qty, quote.Qty, headroom)
		if qty.IsZero() || qty.IsNegative() {
			return nil
		}
		f.board.bid = remainder(quote, qty)
		return f.fill(domain.SideBuy, quote, qty, tr.Timestamp)

	case domain.SideBuy:
		quote := f.board.ask
		if quote == nil || tr.Price.LessThan(quote.Price) {
			return nil
		}
		headroom := pos.BaseQty.Add(f.maxInventory) // room to sell
		qty := decimal.Min(tr.Qty, quote.Qty, headroom)
		if qty.IsZero() || qty.IsNegative() {
			return nil
		}
		f.board.ask = remainder(quote, qty)
		return f.fill(domain.SideSell, quote, qty, tr.Timestamp)
	}
	return nil
}

// remainder returns the replacement quote after executing qty against
// it, or nil when fully consumed. The original quote is not mutated.
func remainder(q *domain.Quote, qty decimal.Decimal) *domain.Quote {
	left := q.Qty.Sub(qty)
	if left.IsZero() || left.IsNegative() {
		return nil
	}
	c := *q
	c.Qty = left
	return &c
}

func (f *FillSimulator) fill(side domain.Side, quote *domain.Quote, qty decimal.Decimal, ts time.Time) *domain.Fill {
	if f.metrics != nil {
		f.metrics.RecordFill()
	}
	return &domain.Fill{
		ID:        uuid.NewString(),
		Side:      side,
		Price:     quote.Price,
		Qty:       qty,
		Timestamp: ts,
		QuoteID:   quote.ID,
	}
}
