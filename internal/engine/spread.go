package engine

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
)

// SpreadAnalyzer maintains rolling effective-spread statistics for a
// fixed set of notional sizes. For each accepted book snapshot it walks
// the levels from best price outward and records the volume-weighted
// spread per size; sizes the book cannot fill are skipped for that
// snapshot rather than extrapolated.
type SpreadAnalyzer struct {
	mu      sync.RWMutex
	sizes   []decimal.Decimal
	windows map[string]*spreadWindow
}

// spreadWindow is a bounded ring buffer of samples, oldest evicted first.
type spreadWindow struct {
	buf   []domain.SpreadSample
	head  int
	count int
}

func newSpreadWindow(capacity int) *spreadWindow {
	return &spreadWindow{buf: make([]domain.SpreadSample, capacity)}
}

func (w *spreadWindow) push(s domain.SpreadSample) {
	w.buf[w.head] = s
	w.head = (w.head + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}
}

// values returns samples oldest-first.
func (w *spreadWindow) values() []domain.SpreadSample {
	out := make([]domain.SpreadSample, 0, w.count)
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// NewSpreadAnalyzer creates an analyzer for the given notional sizes
// with a rolling window of `window` samples per size.
func NewSpreadAnalyzer(sizes []decimal.Decimal, window int) *SpreadAnalyzer {
	a := &SpreadAnalyzer{
		sizes:   make([]decimal.Decimal, len(sizes)),
		windows: make(map[string]*spreadWindow, len(sizes)),
	}
	copy(a.sizes, sizes)
	for _, s := range sizes {
		a.windows[s.String()] = newSpreadWindow(window)
	}
	return a
}

// OnSnapshot computes and records one spread sample per configured size.
func (a *SpreadAnalyzer) OnSnapshot(snap *domain.OrderBookSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, size := range a.sizes {
		wBid, okB := weightedPrice(snap.Bids, size)
		wAsk, okA := weightedPrice(snap.Asks, size)
		if !okB || !okA {
			continue // insufficient depth for this size
		}
		a.windows[size.String()].push(domain.SpreadSample{
			Size:      size,
			Value:     wAsk.Sub(wBid),
			Timestamp: snap.Timestamp,
		})
	}
}

// weightedPrice walks levels from best price outward, accumulating
// quantity until target is reached, and returns the volume-weighted
// average price. Returns false when the side lacks depth for target.
func weightedPrice(levels []domain.PriceLevel, target decimal.Decimal) (decimal.Decimal, bool) {
	if target.IsZero() || target.IsNegative() {
		return decimal.Zero, false
	}
	remaining := target
	cost := decimal.Zero
	for _, l := range levels {
		take := decimal.Min(remaining, l.Qty)
		cost = cost.Add(take.Mul(l.Price))
		remaining = remaining.Sub(take)
		if remaining.IsZero() {
			return cost.Div(target), true
		}
	}
	return decimal.Zero, false
}

// Stats returns avg/median/min/max over the current window for size,
// or domain.ErrInsufficientData when the window is empty or the size
// is not configured.
func (a *SpreadAnalyzer) Stats(size decimal.Decimal) (domain.SpreadStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	w, ok := a.windows[size.String()]
	if !ok || w.count == 0 {
		return domain.SpreadStats{}, domain.ErrInsufficientData
	}

	samples := w.values()
	values := make([]decimal.Decimal, len(samples))
	sum := decimal.Zero
	min := samples[0].Value
	max := samples[0].Value
	for i, s := range samples {
		values[i] = s.Value
		sum = sum.Add(s.Value)
		if s.Value.LessThan(min) {
			min = s.Value
		}
		if s.Value.GreaterThan(max) {
			max = s.Value
		}
	}

	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })
	var median decimal.Decimal
	n := len(values)
	if n%2 == 1 {
		median = values[n/2]
	} else {
		median = values[n/2-1].Add(values[n/2]).Div(decimal.NewFromInt(2))
	}

	return domain.SpreadStats{
		Size:   size,
		Avg:    sum.Div(decimal.NewFromInt(int64(n))),
		Median: median,
		Min:    min,
		Max:    max,
		Count:  n,
	}, nil
}

// Sizes returns the configured notional sizes in configuration order.
func (a *SpreadAnalyzer) Sizes() []decimal.Decimal {
	out := make([]decimal.Decimal, len(a.sizes))
	copy(out, a.sizes)
	return out
}

// History returns a copy of the current window for size, oldest first.
func (a *SpreadAnalyzer) History(size decimal.Decimal) []domain.SpreadSample {
	a.mu.RLock()
	defer a.mu.RUnlock()

	w, ok := a.windows[size.String()]
	if !ok {
		return nil
	}
	return w.values()
}
