package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSide identifies which side of the book a simulated quote rests on.
type QuoteSide string

const (
	QuoteBid QuoteSide = "BID"
	QuoteAsk QuoteSide = "ASK"
)

// Quote is a resting simulated order. Quotes are owned by the quote
// engine and replaced, never edited in place: a partial fill produces a
// new Quote with the reduced remaining quantity and the same ID.
type Quote struct {
	ID        string          `json:"id"`
	Side      QuoteSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Fill is an irreversible simulated execution against a resting quote.
// Side is our side of the trade: a filled bid is a BUY, a filled ask a SELL.
type Fill struct {
	ID        string          `json:"id"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Qty       decimal.Decimal `json:"qty"`
	Timestamp time.Time       `json:"timestamp"`
	QuoteID   string          `json:"quote_id"`
}

// Notional returns price * quantity.
func (f Fill) Notional() decimal.Decimal {
	return f.Price.Mul(f.Qty)
}
