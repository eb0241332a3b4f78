package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the simulated inventory and cash state. It is mutated
// only by the portfolio manager in response to fills.
//
// AvgCostBasis is meaningful iff BaseQty is non-zero; when the position
// returns to flat the basis is reset to zero.
type Position struct {
	BaseQty      decimal.Decimal `json:"base_qty"`
	QuoteBalance decimal.Decimal `json:"quote_balance"`
	AvgCostBasis decimal.Decimal `json:"avg_cost_basis"`
}

// HasBasis reports whether the average cost basis is defined.
func (p Position) HasBasis() bool {
	return !p.BaseQty.IsZero()
}

// Exposure returns the absolute notional value of the inventory at mark.
func (p Position) Exposure(mark decimal.Decimal) decimal.Decimal {
	return p.BaseQty.Mul(mark).Abs()
}

// PnLSnapshot is a derived, point-in-time P&L view. It is recomputed on
// demand from Position and a mark price, never independently mutated.
type PnLSnapshot struct {
	Realized   decimal.Decimal `json:"realized"`
	Unrealized decimal.Decimal `json:"unrealized"`
	Total      decimal.Decimal `json:"total"`
	MarkPrice  decimal.Decimal `json:"mark_price"`
	AsOf       time.Time       `json:"as_of"`
}
