package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmgo/internal/domain"
)

// bookSnap builds a two-sided snapshot with a single level per side.
func bookSnap(bidPrice, bidQty, askPrice, askQty string) *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		Bids:      []domain.PriceLevel{lvl(bidPrice, bidQty)},
		Asks:      []domain.PriceLevel{lvl(askPrice, askQty)},
		Timestamp: time.Now(),
	}
}

func TestSpreadAnalyzer_Stats(t *testing.T) {
	a := NewSpreadAnalyzer([]decimal.Decimal{d("1")}, 10)

	// Spreads 1, 2, 3 around mid 100
	a.OnSnapshot(bookSnap("99.5", "5", "100.5", "5"))
	a.OnSnapshot(bookSnap("99", "5", "101", "5"))
	a.OnSnapshot(bookSnap("98.5", "5", "101.5", "5"))

	st, err := a.Stats(d("1"))
	require.NoError(t, err)

	assert.Equal(t, 3, st.Count)
	assert.True(t, st.Avg.Equal(d("2")), "avg = %s", st.Avg)
	assert.True(t, st.Median.Equal(d("2")), "median = %s", st.Median)
	assert.True(t, st.Min.Equal(d("1")), "min = %s", st.Min)
	assert.True(t, st.Max.Equal(d("3")), "max = %s", st.Max)
}

func TestSpreadAnalyzer_EvenCountMedian(t *testing.T) {
	a := NewSpreadAnalyzer([]decimal.Decimal{d("1")}, 10)

	// Spreads 1 and 2: median is the mean of the middle pair
	a.OnSnapshot(bookSnap("99.5", "5", "100.5", "5"))
	a.OnSnapshot(bookSnap("99", "5", "101", "5"))

	st, err := a.Stats(d("1"))
	require.NoError(t, err)
	assert.True(t, st.Median.Equal(d("1.5")), "median = %s", st.Median)
}

func TestSpreadAnalyzer_WeightedDepthWalk(t *testing.T) {
	a := NewSpreadAnalyzer([]decimal.Decimal{d("4")}, 10)

	// Filling 4 units walks two levels on each side.
	// Bid VWAP: (2*100 + 2*99)/4 = 99.5, ask VWAP: (2*101 + 2*102)/4 = 101.5
	a.OnSnapshot(&domain.OrderBookSnapshot{
		Bids:      []domain.PriceLevel{lvl("100", "2"), lvl("99", "5")},
		Asks:      []domain.PriceLevel{lvl("101", "2"), lvl("102", "5")},
		Timestamp: time.Now(),
	})

	st, err := a.Stats(d("4"))
	require.NoError(t, err)
	require.Equal(t, 1, st.Count)
	assert.True(t, st.Avg.Equal(d("2")), "spread = %s, want 2", st.Avg)
}

func TestSpreadAnalyzer_InsufficientDepthSkipped(t *testing.T) {
	a := NewSpreadAnalyzer([]decimal.Decimal{d("1"), d("100")}, 10)

	// Only 5 units per side: size 100 cannot be filled and records nothing
	a.OnSnapshot(bookSnap("99", "5", "101", "5"))

	_, err := a.Stats(d("1"))
	require.NoError(t, err)

	_, err = a.Stats(d("100"))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestSpreadAnalyzer_WindowEviction(t *testing.T) {
	a := NewSpreadAnalyzer([]decimal.Decimal{d("1")}, 2)

	a.OnSnapshot(bookSnap("99.5", "5", "100.5", "5")) // spread 1, evicted
	a.OnSnapshot(bookSnap("99", "5", "101", "5"))     // spread 2
	a.OnSnapshot(bookSnap("98.5", "5", "101.5", "5")) // spread 3

	st, err := a.Stats(d("1"))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.True(t, st.Min.Equal(d("2")), "min = %s, oldest sample should be gone", st.Min)
	assert.True(t, st.Max.Equal(d("3")), "max = %s", st.Max)

	hist := a.History(d("1"))
	require.Len(t, hist, 2)
	assert.True(t, hist[0].Value.Equal(d("2")), "history should be oldest-first")
}

func TestSpreadAnalyzer_UnknownSize(t *testing.T) {
	a := NewSpreadAnalyzer([]decimal.Decimal{d("1")}, 10)

	_, err := a.Stats(d("42"))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
