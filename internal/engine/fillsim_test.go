package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
)

// quotedSim builds a simulator with live quotes at 100 / 102 from a flat
// position.
func quotedSim(t *testing.T) (*FillSimulator, *QuoteEngine) {
	t.Helper()
	qe := NewQuoteEngine(testParams(), nil)
	bid, ask, _ := qe.Requote(bookSnap("100", "1", "102", "1"), flatPos(), decimal.Zero, true)
	if bid == nil || ask == nil {
		t.Fatal("setup: expected both sides quoted")
	}
	return NewFillSimulator(qe, testParams().MaxInventory, nil), qe
}

func trade(price, qty string, aggressor domain.Side) domain.Trade {
	return domain.Trade{
		ID:        "t1",
		Price:     d(price),
		Qty:       d(qty),
		Aggressor: aggressor,
		Timestamp: time.Now(),
	}
}

func TestFillSimulator_SellAggressorFillsBid(t *testing.T) {
	sim, _ := quotedSim(t)

	// Sell at 99.5 <= our bid 100: we buy at our quoted price
	fill := sim.OnTrade(trade("99.5", "0.4", domain.SideSell), flatPos())
	if fill == nil {
		t.Fatal("expected a fill")
	}
	if fill.Side != domain.SideBuy {
		t.Errorf("expected BUY fill, got %s", fill.Side)
	}
	if !fill.Price.Equal(d("100")) {
		t.Errorf("fill must execute at the quote price 100, got %s", fill.Price)
	}
	if !fill.Qty.Equal(d("0.4")) {
		t.Errorf("expected qty 0.4, got %s", fill.Qty)
	}
}

func TestFillSimulator_BuyAggressorFillsAsk(t *testing.T) {
	sim, _ := quotedSim(t)

	fill := sim.OnTrade(trade("102.5", "0.4", domain.SideBuy), flatPos())
	if fill == nil {
		t.Fatal("expected a fill")
	}
	if fill.Side != domain.SideSell {
		t.Errorf("expected SELL fill, got %s", fill.Side)
	}
	if !fill.Price.Equal(d("102")) {
		t.Errorf("fill must execute at the quote price 102, got %s", fill.Price)
	}
}

func TestFillSimulator_NoCrossNoFill(t *testing.T) {
	sim, qe := quotedSim(t)

	// Sell above our bid, buy below our ask: neither crosses
	if fill := sim.OnTrade(trade("100.5", "1", domain.SideSell), flatPos()); fill != nil {
		t.Error("sell above bid must not fill")
	}
	if fill := sim.OnTrade(trade("101.5", "1", domain.SideBuy), flatPos()); fill != nil {
		t.Error("buy below ask must not fill")
	}

	bid, ask := qe.Quotes()
	if bid == nil || ask == nil {
		t.Error("quotes must stay resting when nothing crossed")
	}
}

func TestFillSimulator_PartialFillLeavesRemainder(t *testing.T) {
	sim, qe := quotedSim(t)

	fill := sim.OnTrade(trade("100", "0.3", domain.SideSell), flatPos())
	if fill == nil || !fill.Qty.Equal(d("0.3")) {
		t.Fatalf("expected 0.3 fill, got %+v", fill)
	}

	bid, _ := qe.Quotes()
	if bid == nil {
		t.Fatal("expected bid remainder resting")
	}
	if !bid.Qty.Equal(d("0.7")) {
		t.Errorf("expected remainder qty 0.7, got %s", bid.Qty)
	}
	if !bid.Price.Equal(d("100")) {
		t.Errorf("remainder must keep its price, got %s", bid.Price)
	}
}

func TestFillSimulator_FullConsumptionWithdrawsQuote(t *testing.T) {
	sim, qe := quotedSim(t)

	// Trade bigger than the quote: fill caps at quote qty 1
	fill := sim.OnTrade(trade("100", "5", domain.SideSell), flatPos())
	if fill == nil || !fill.Qty.Equal(d("1")) {
		t.Fatalf("expected fill capped at quote qty 1, got %+v", fill)
	}

	bid, _ := qe.Quotes()
	if bid != nil {
		t.Error("fully consumed quote must be withdrawn")
	}

	// Next trade finds no bid
	if fill := sim.OnTrade(trade("100", "1", domain.SideSell), flatPos()); fill != nil {
		t.Error("withdrawn quote must not fill again")
	}
}

func TestFillSimulator_InventoryHeadroomClamp(t *testing.T) {
	sim, _ := quotedSim(t)

	// Position near the cap: only 0.2 of headroom remains
	pos := flatPos()
	pos.BaseQty = d("9.8")
	fill := sim.OnTrade(trade("100", "1", domain.SideSell), pos)
	if fill == nil {
		t.Fatal("expected a clamped fill")
	}
	if !fill.Qty.Equal(d("0.2")) {
		t.Errorf("expected fill clamped to headroom 0.2, got %s", fill.Qty)
	}

	// At the cap: no headroom, no fill
	sim2, _ := quotedSim(t)
	pos.BaseQty = d("10")
	if fill := sim2.OnTrade(trade("100", "1", domain.SideSell), pos); fill != nil {
		t.Error("expected no fill at max inventory")
	}
}

func TestFillSimulator_ShortHeadroomClamp(t *testing.T) {
	sim, _ := quotedSim(t)

	// Fully short: selling more would breach -max_inventory
	pos := flatPos()
	pos.BaseQty = d("-10")
	if fill := sim.OnTrade(trade("102", "1", domain.SideBuy), pos); fill != nil {
		t.Error("expected no sell fill at max short inventory")
	}
}
