package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/infra"
)

// Params are the static strategy parameters. Prices are in the quote
// currency, sizes in base units.
type Params struct {
	BaseSpread   decimal.Decimal
	OrderSize    decimal.Decimal
	MaxInventory decimal.Decimal
	SkewFactor   decimal.Decimal
	MaxExposure  decimal.Decimal
	MaxLoss      decimal.Decimal
	RequoteTick  decimal.Decimal
}

// quoteBoard holds the currently resting quotes behind a single lock.
// The quote engine replaces quotes on it, the fill simulator matches
// and withdraws against it; sharing the lock makes fill-and-withdraw
// atomic with respect to re-quoting, so a trade can never match a quote
// that has already been withdrawn.
type quoteBoard struct {
	mu  sync.Mutex
	bid *domain.Quote
	ask *domain.Quote
}

// quotes returns copies of the resting quotes.
func (b *quoteBoard) quotes() (bid, ask *domain.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bid != nil {
		q := *b.bid
		bid = &q
	}
	if b.ask != nil {
		q := *b.ask
		ask = &q
	}
	return bid, ask
}

// QuoteEngine derives the strategy's simulated bid/ask from the current
// book and position. Quotes are replaced wholesale on every re-quote;
// the previous quote objects are discarded, never edited.
type QuoteEngine struct {
	params  Params
	board   *quoteBoard
	metrics *infra.Metrics

	// guarded by board.mu
	lastMid    decimal.Decimal
	hasLastMid bool
	bidHalted  bool
	askHalted  bool
}

// NewQuoteEngine creates a quote engine over a fresh, empty board.
func NewQuoteEngine(params Params, metrics *infra.Metrics) *QuoteEngine {
	return &QuoteEngine{
		params:  params,
		board:   &quoteBoard{},
		metrics: metrics,
	}
}

// Requote recomputes both quotes from the snapshot and position.
// Without force it is a no-op unless mid moved beyond the configured
// tick threshold since the last quote; a fill always forces.
// Returns copies of the new quotes and whether a re-quote happened.
func (e *QuoteEngine) Requote(snap *domain.OrderBookSnapshot, pos domain.Position, totalPnL decimal.Decimal, force bool) (bid, ask *domain.Quote, requoted bool) {
	e.board.mu.Lock()
	defer e.board.mu.Unlock()

	mid, ok := snap.Mid()
	if !ok {
		// One-sided or empty book: nothing sane to quote against.
		e.board.bid, e.board.ask = nil, nil
		return nil, nil, false
	}

	if !force && e.hasLastMid && mid.Sub(e.lastMid).Abs().LessThan(e.params.RequoteTick) {
		return nil, nil, false
	}

	half := e.params.BaseSpread.Div(decimal.NewFromInt(2))
	rawBid := mid.Sub(half)
	rawAsk := mid.Add(half)

	// Inventory skew: long inventory shifts both quotes down to
	// encourage selling, short shifts both up.
	utilization := clamp(pos.BaseQty.Div(e.params.MaxInventory), decimal.NewFromInt(-1), decimal.NewFromInt(1))
	skew := utilization.Mul(e.params.SkewFactor).Mul(e.params.BaseSpread)
	bidPrice := rawBid.Sub(skew)
	askPrice := rawAsk.Sub(skew)

	haltBid, haltAsk := e.riskGate(pos, mid, totalPnL)

	now := time.Now()
	if haltBid {
		e.board.bid = nil
	} else {
		e.board.bid = &domain.Quote{
			ID:        uuid.NewString(),
			Side:      domain.QuoteBid,
			Price:     bidPrice,
			Qty:       e.params.OrderSize,
			CreatedAt: now,
		}
	}
	if haltAsk {
		e.board.ask = nil
	} else {
		e.board.ask = &domain.Quote{
			ID:        uuid.NewString(),
			Side:      domain.QuoteAsk,
			Price:     askPrice,
			Qty:       e.params.OrderSize,
			CreatedAt: now,
		}
	}

	if e.metrics != nil {
		e.metrics.RecordRequote()
		if (haltBid && !e.bidHalted) || (haltAsk && !e.askHalted) {
			e.metrics.RecordRiskHalt()
		}
	}
	e.bidHalted, e.askHalted = haltBid, haltAsk
	e.lastMid = mid
	e.hasLastMid = true

	bid, ask = copyQuote(e.board.bid), copyQuote(e.board.ask)
	return bid, ask, true
}

// riskGate decides which sides must be withdrawn. On a breach only the
// side that reduces exposure keeps quoting; a flat position with a loss
// breach halts both. The halt is not sticky: it clears as soon as
// exposure/loss recover.
func (e *QuoteEngine) riskGate(pos domain.Position, mid, totalPnL decimal.Decimal) (haltBid, haltAsk bool) {
	exposureBreach := pos.Exposure(mid).GreaterThan(e.params.MaxExposure)
	lossBreach := totalPnL.IsNegative() && totalPnL.Neg().GreaterThan(e.params.MaxLoss)
	if !exposureBreach && !lossBreach {
		return false, false
	}

	switch {
	case pos.BaseQty.IsPositive():
		return true, false // long: only selling reduces exposure
	case pos.BaseQty.IsNegative():
		return false, true // short: only buying reduces exposure
	default:
		return true, true
	}
}

// Quotes returns copies of the currently resting quotes (nil = side
// withdrawn).
func (e *QuoteEngine) Quotes() (bid, ask *domain.Quote) {
	return e.board.quotes()
}

// Halted reports which sides are currently withdrawn by the risk gate.
func (e *QuoteEngine) Halted() (bid, ask bool) {
	e.board.mu.Lock()
	defer e.board.mu.Unlock()
	return e.bidHalted, e.askHalted
}

func copyQuote(q *domain.Quote) *domain.Quote {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
