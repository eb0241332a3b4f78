package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies a trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is a single market trade from the feed. The aggressor side is
// the side that crossed the book to initiate it. Immutable once created.
type Trade struct {
	ID        string          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	Aggressor Side            `json:"aggressor"`
	Timestamp time.Time       `json:"timestamp"`
}
