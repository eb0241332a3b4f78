package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/infra"
)

// pnlHistoryCap bounds the in-memory P&L time series.
const pnlHistoryCap = 1000

// PortfolioManager is the only writer of Position. It applies fills,
// tracks realized P&L against a weighted-average cost basis, and
// derives mark-to-market snapshots on demand.
//
// Accounting invariant: quote_balance plus the signed sum of fill
// notionals equals the initial balance exactly. A buy that cannot be
// funded is rejected with domain.ErrInsufficientBalance and leaves the
// position untouched.
type PortfolioManager struct {
	mu  sync.Mutex
	pos domain.Position

	realized decimal.Decimal
	lastMark decimal.Decimal
	lastPnL  domain.PnLSnapshot

	fills      []domain.Fill
	fillCursor int // start of "fills since last query"

	pnlHistory []domain.PnLSnapshot

	metrics *infra.Metrics
}

// NewPortfolioManager creates a flat portfolio with the given starting
// quote balance.
func NewPortfolioManager(initialQuoteBalance decimal.Decimal, metrics *infra.Metrics) *PortfolioManager {
	return &PortfolioManager{
		pos:     domain.Position{QuoteBalance: initialQuoteBalance},
		metrics: metrics,
	}
}

// ApplyFill updates balances, position and realized P&L for one fill.
//
// Buys fold the fill into the weighted-average cost basis; sells
// realize (price - basis) * qty. Positions may cross through flat into
// short; crossing resets the basis to the fill price, and returning to
// exactly flat clears it.
func (p *PortfolioManager) ApplyFill(f domain.Fill) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f.Qty.IsZero() || f.Qty.IsNegative() {
		return fmt.Errorf("fill qty must be positive, got %s", f.Qty)
	}

	qBefore := p.pos.BaseQty

	switch f.Side {
	case domain.SideBuy:
		cost := f.Notional()
		if cost.GreaterThan(p.pos.QuoteBalance) {
			if p.metrics != nil {
				p.metrics.RecordFillRejected()
			}
			return fmt.Errorf("%w: need %s, have %s", domain.ErrInsufficientBalance, cost, p.pos.QuoteBalance)
		}
		qAfter := qBefore.Add(f.Qty)

		if !qBefore.IsNegative() {
			// Opening or adding to a long: weighted-average basis.
			p.pos.AvgCostBasis = p.pos.AvgCostBasis.Mul(qBefore).Add(f.Price.Mul(f.Qty)).Div(qAfter)
		} else {
			// Covering a short realizes (basis - price) on the covered part.
			cover := decimal.Min(f.Qty, qBefore.Neg())
			p.realized = p.realized.Add(p.pos.AvgCostBasis.Sub(f.Price).Mul(cover))
			switch {
			case qAfter.IsPositive():
				p.pos.AvgCostBasis = f.Price // crossed into a long
			case qAfter.IsZero():
				p.pos.AvgCostBasis = decimal.Zero
			}
		}
		p.pos.QuoteBalance = p.pos.QuoteBalance.Sub(cost)
		p.pos.BaseQty = qAfter

	case domain.SideSell:
		qAfter := qBefore.Sub(f.Qty)

		if qBefore.IsPositive() {
			// Reducing a long realizes (price - basis) on the reduced part.
			reduce := decimal.Min(f.Qty, qBefore)
			p.realized = p.realized.Add(f.Price.Sub(p.pos.AvgCostBasis).Mul(reduce))
			switch {
			case qAfter.IsNegative():
				p.pos.AvgCostBasis = f.Price // crossed into a short
			case qAfter.IsZero():
				p.pos.AvgCostBasis = decimal.Zero
			}
		} else {
			// Opening or adding to a short: weighted-average basis.
			p.pos.AvgCostBasis = p.pos.AvgCostBasis.Mul(qBefore.Neg()).Add(f.Price.Mul(f.Qty)).Div(qAfter.Neg())
		}
		p.pos.QuoteBalance = p.pos.QuoteBalance.Add(f.Notional())
		p.pos.BaseQty = qAfter

	default:
		return fmt.Errorf("unknown fill side %q", f.Side)
	}

	p.fills = append(p.fills, f)
	return nil
}

// PnL returns a P&L snapshot at the given mark price.
// Unrealized is (mark - basis) * base_qty, zero when flat.
func (p *PortfolioManager) PnL(mark decimal.Decimal) domain.PnLSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pnlLocked(mark)
}

func (p *PortfolioManager) pnlLocked(mark decimal.Decimal) domain.PnLSnapshot {
	unrealized := decimal.Zero
	if !p.pos.BaseQty.IsZero() {
		unrealized = mark.Sub(p.pos.AvgCostBasis).Mul(p.pos.BaseQty)
	}
	return domain.PnLSnapshot{
		Realized:   p.realized,
		Unrealized: unrealized,
		Total:      p.realized.Add(unrealized),
		MarkPrice:  mark,
		AsOf:       time.Now(),
	}
}

// MarkToMarket recomputes P&L at mark, records it in the bounded P&L
// history and returns the snapshot.
func (p *PortfolioManager) MarkToMarket(mark decimal.Decimal) domain.PnLSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := p.pnlLocked(mark)
	p.lastMark = mark
	p.lastPnL = snap

	p.pnlHistory = append(p.pnlHistory, snap)
	if len(p.pnlHistory) > pnlHistoryCap {
		p.pnlHistory = p.pnlHistory[len(p.pnlHistory)-pnlHistoryCap:]
	}
	return snap
}

// Position returns a copy of the current position.
func (p *PortfolioManager) Position() domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// LastPnL returns the most recent mark-to-market snapshot.
func (p *PortfolioManager) LastPnL() domain.PnLSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPnL
}

// Fills returns a copy of the full fill history.
func (p *PortfolioManager) Fills() []domain.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Fill, len(p.fills))
	copy(out, p.fills)
	return out
}

// RecentFills returns copies of the last n fills, newest last.
func (p *PortfolioManager) RecentFills(n int) []domain.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := len(p.fills) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.Fill, len(p.fills)-start)
	copy(out, p.fills[start:])
	return out
}

// FillsSince returns the fills recorded since the previous call and
// advances the cursor. Used by the export collaborator.
func (p *PortfolioManager) FillsSince() []domain.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Fill, len(p.fills)-p.fillCursor)
	copy(out, p.fills[p.fillCursor:])
	p.fillCursor = len(p.fills)
	return out
}

// PnLHistory returns a copy of the bounded P&L time series.
func (p *PortfolioManager) PnLHistory() []domain.PnLSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PnLSnapshot, len(p.pnlHistory))
	copy(out, p.pnlHistory)
	return out
}

// TotalTrades returns the number of fills applied.
func (p *PortfolioManager) TotalTrades() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fills)
}
