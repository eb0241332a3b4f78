package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/event"
)

// OrderBookState maintains a consistent best-of-book view from a stream
// of update events. A single writer calls Apply; any number of readers
// call Snapshot/TopN. Every accepted update publishes a fresh immutable
// snapshot, so a reader's view can never be corrupted by a later write.
type OrderBookState struct {
	mu   sync.RWMutex
	snap *domain.OrderBookSnapshot
}

// NewOrderBookState creates an empty book.
func NewOrderBookState() *OrderBookState {
	return &OrderBookState{
		snap: &domain.OrderBookSnapshot{},
	}
}

// Apply consumes a book update and publishes a new snapshot.
//
// Fails with domain.ErrStaleUpdate when the sequence number does not
// strictly increase, and with domain.ErrCrossedBook when the result
// would have best bid >= best ask. In both cases the update is dropped
// and the previous snapshot stays published; partial application is
// never visible.
func (s *OrderBookState) Apply(up *event.BookUpdate) (*domain.OrderBookSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.snap
	if up.Seq <= cur.Seq {
		return nil, fmt.Errorf("%w: seq %d <= %d", domain.ErrStaleUpdate, up.Seq, cur.Seq)
	}

	var base *domain.OrderBookSnapshot
	if up.IsSnapshot {
		base = &domain.OrderBookSnapshot{}
	} else {
		base = cur
	}

	bids := mergeLevels(base.Bids, up.Bids, true)
	asks := mergeLevels(base.Asks, up.Asks, false)

	if len(bids) > 0 && len(asks) > 0 && !bids[0].Price.LessThan(asks[0].Price) {
		return nil, fmt.Errorf("%w: bid %s >= ask %s (seq %d)",
			domain.ErrCrossedBook, bids[0].Price, asks[0].Price, up.Seq)
	}

	s.snap = &domain.OrderBookSnapshot{
		Bids:      bids,
		Asks:      asks,
		Seq:       up.Seq,
		Timestamp: up.Ts,
	}
	return s.snap, nil
}

// mergeLevels applies (price, qty) diffs onto existing levels and
// returns a fresh sorted slice. Zero qty removes the price; otherwise
// the level is inserted or replaced. The input slices are not modified.
func mergeLevels(existing, diffs []domain.PriceLevel, descending bool) []domain.PriceLevel {
	merged := make(map[string]domain.PriceLevel, len(existing)+len(diffs))
	for _, l := range existing {
		merged[l.Price.String()] = l
	}
	for _, d := range diffs {
		key := d.Price.String()
		if d.Qty.IsZero() || d.Qty.IsNegative() {
			delete(merged, key)
			continue
		}
		merged[key] = domain.PriceLevel{Price: d.Price, Qty: d.Qty}
	}

	out := make([]domain.PriceLevel, 0, len(merged))
	for _, l := range merged {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// Snapshot returns the currently published snapshot. The snapshot is
// immutable; callers may hold it as long as they like.
func (s *OrderBookState) Snapshot() *domain.OrderBookSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// TopN returns deep copies of the top n levels per side.
func (s *OrderBookState) TopN(n int) (bids, asks []domain.PriceLevel) {
	return s.Snapshot().TopN(n)
}

// Mid returns the current mid price, or false when either side is empty.
func (s *OrderBookState) Mid() (decimal.Decimal, bool) {
	return s.Snapshot().Mid()
}
