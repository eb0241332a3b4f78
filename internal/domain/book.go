package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single price/quantity pair inside an order book side.
// A level with zero quantity is never stored; zero quantity in a feed
// diff means "remove this price".
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// OrderBookSnapshot is an immutable, consistent view of the book.
// Bids are ordered descending by price, asks ascending; both sides are
// strictly monotonic with no duplicate prices, and whenever both sides
// are non-empty best bid < best ask.
//
// Snapshots are replaced wholesale on every accepted update; a snapshot
// handed to a reader is never mutated afterwards.
type OrderBookSnapshot struct {
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Seq       uint64       `json:"seq"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid, if any.
func (s *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (s *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// Mid returns (best_bid + best_ask) / 2, or false when either side is empty.
func (s *OrderBookSnapshot) Mid() (decimal.Decimal, bool) {
	bid, okB := s.BestBid()
	ask, okA := s.BestAsk()
	if !okB || !okA {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// TopN returns copies of the top n levels per side. The returned slices
// share no memory with the snapshot, so callers can hold them across
// later book mutations.
func (s *OrderBookSnapshot) TopN(n int) (bids, asks []PriceLevel) {
	nb, na := n, n
	if nb > len(s.Bids) {
		nb = len(s.Bids)
	}
	if na > len(s.Asks) {
		na = len(s.Asks)
	}
	bids = make([]PriceLevel, nb)
	asks = make([]PriceLevel, na)
	copy(bids, s.Bids[:nb])
	copy(asks, s.Asks[:na])
	return bids, asks
}
