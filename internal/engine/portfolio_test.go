package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmgo/internal/domain"
)

func fill(side domain.Side, price, qty string) domain.Fill {
	return domain.Fill{
		ID:        "f-" + price + "-" + qty,
		Side:      side,
		Price:     d(price),
		Qty:       d(qty),
		Timestamp: time.Now(),
	}
}

func TestPortfolio_RoundTripRealized(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)

	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "100", "1")))
	require.NoError(t, p.ApplyFill(fill(domain.SideSell, "110", "1")))

	pos := p.Position()
	assert.True(t, pos.BaseQty.IsZero(), "expected flat, got %s", pos.BaseQty)
	assert.True(t, pos.QuoteBalance.Equal(d("10010")), "balance = %s", pos.QuoteBalance)
	assert.True(t, pos.AvgCostBasis.IsZero(), "basis must clear at flat, got %s", pos.AvgCostBasis)

	pnl := p.PnL(d("120"))
	assert.True(t, pnl.Realized.Equal(d("10")), "realized = %s", pnl.Realized)
	assert.True(t, pnl.Unrealized.IsZero(), "flat position has no unrealized P&L")
}

func TestPortfolio_WeightedAverageBasis(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)

	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "100", "1")))
	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "110", "1")))

	pos := p.Position()
	assert.True(t, pos.AvgCostBasis.Equal(d("105")), "basis = %s", pos.AvgCostBasis)

	// Selling half realizes against the blended basis
	require.NoError(t, p.ApplyFill(fill(domain.SideSell, "120", "1")))
	pnl := p.PnL(d("120"))
	assert.True(t, pnl.Realized.Equal(d("15")), "realized = %s", pnl.Realized)

	// Remaining long keeps the basis
	pos = p.Position()
	assert.True(t, pos.AvgCostBasis.Equal(d("105")), "basis after partial sell = %s", pos.AvgCostBasis)
	assert.True(t, pnl.Unrealized.Equal(d("15")), "unrealized = %s", pnl.Unrealized)
}

func TestPortfolio_BalanceConservation(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)

	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "100", "2")))
	require.NoError(t, p.ApplyFill(fill(domain.SideSell, "105", "1")))
	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "95", "0.5")))

	// initial - sum(buy notionals) + sum(sell notionals)
	want := d("10000").Sub(d("200")).Add(d("105")).Sub(d("47.5"))
	pos := p.Position()
	assert.True(t, pos.QuoteBalance.Equal(want), "balance = %s, want %s", pos.QuoteBalance, want)
	assert.True(t, pos.BaseQty.Equal(d("1.5")), "position = %s", pos.BaseQty)
}

func TestPortfolio_InsufficientBalanceRejected(t *testing.T) {
	p := NewPortfolioManager(d("100"), nil)

	err := p.ApplyFill(fill(domain.SideBuy, "100", "2")) // needs 200
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// State untouched
	pos := p.Position()
	assert.True(t, pos.BaseQty.IsZero())
	assert.True(t, pos.QuoteBalance.Equal(d("100")))
	assert.Equal(t, 0, p.TotalTrades())
}

func TestPortfolio_ShortSideAccounting(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)

	// Open a short at 100
	require.NoError(t, p.ApplyFill(fill(domain.SideSell, "100", "1")))
	pos := p.Position()
	assert.True(t, pos.BaseQty.Equal(d("-1")))
	assert.True(t, pos.AvgCostBasis.Equal(d("100")))

	// Mark below entry: shorts gain as price falls
	pnl := p.PnL(d("90"))
	assert.True(t, pnl.Unrealized.Equal(d("10")), "unrealized = %s", pnl.Unrealized)

	// Cover at 95 realizes (100 - 95) * 1
	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "95", "1")))
	pnl = p.PnL(d("95"))
	assert.True(t, pnl.Realized.Equal(d("5")), "realized = %s", pnl.Realized)
	assert.True(t, p.Position().BaseQty.IsZero())
}

func TestPortfolio_CrossThroughFlatResetsBasis(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)

	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "100", "1")))
	// Sell 2: closes the long and opens a 1-unit short at 110
	require.NoError(t, p.ApplyFill(fill(domain.SideSell, "110", "2")))

	pos := p.Position()
	assert.True(t, pos.BaseQty.Equal(d("-1")))
	assert.True(t, pos.AvgCostBasis.Equal(d("110")), "short basis = %s", pos.AvgCostBasis)

	// Only the long leg realized
	pnl := p.PnL(d("110"))
	assert.True(t, pnl.Realized.Equal(d("10")), "realized = %s", pnl.Realized)
}

func TestPortfolio_FillsSinceCursor(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)

	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "100", "1")))
	require.NoError(t, p.ApplyFill(fill(domain.SideSell, "110", "1")))

	first := p.FillsSince()
	assert.Len(t, first, 2)

	// Cursor advanced: nothing new
	assert.Empty(t, p.FillsSince())

	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "105", "1")))
	next := p.FillsSince()
	require.Len(t, next, 1)
	assert.True(t, next[0].Price.Equal(d("105")))

	// Full history untouched by the cursor
	assert.Len(t, p.Fills(), 3)
}

func TestPortfolio_MarkToMarketHistory(t *testing.T) {
	p := NewPortfolioManager(d("10000"), nil)
	require.NoError(t, p.ApplyFill(fill(domain.SideBuy, "100", "1")))

	p.MarkToMarket(d("101"))
	p.MarkToMarket(d("102"))

	hist := p.PnLHistory()
	require.Len(t, hist, 2)
	assert.True(t, hist[1].Unrealized.Equal(d("2")), "unrealized = %s", hist[1].Unrealized)
	assert.True(t, p.LastPnL().MarkPrice.Equal(d("102")))
}
