// Package ui renders a fixed-cadence terminal dashboard from engine
// snapshots. It only ever reads point-in-time copies, so rendering can
// never block or corrupt the engine.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"mmgo/internal/engine"
)

const clearScreen = "\033[2J\033[H"

// Dashboard periodically pulls snapshots from the engine and renders
// them to out (stdout by default).
type Dashboard struct {
	engine    *engine.Engine
	interval  time.Duration
	bookDepth int
	out       io.Writer
}

// New creates a dashboard with the given refresh interval and book depth.
func New(e *engine.Engine, interval time.Duration, bookDepth int) *Dashboard {
	return &Dashboard{
		engine:    e,
		interval:  interval,
		bookDepth: bookDepth,
		out:       os.Stdout,
	}
}

// Run renders until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.render()
		}
	}
}

func (d *Dashboard) render() {
	fmt.Fprint(d.out, clearScreen)
	fmt.Fprintf(d.out, "mmgo - market making simulator  %s\n\n", time.Now().Format("15:04:05"))

	d.renderBook()
	d.renderQuotes()
	d.renderSpreads()
	d.renderPortfolio()
	d.renderFills()
	d.renderCounters()
}

func (d *Dashboard) renderBook() {
	bids, asks := d.engine.TopN(d.bookDepth)

	fmt.Fprintf(d.out, "ORDER BOOK (seq %d)\n", d.engine.BookSeq())
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BID QTY\tBID\t\tASK\tASK QTY")
	n := len(bids)
	if len(asks) > n {
		n = len(asks)
	}
	for i := 0; i < n; i++ {
		var bq, bp, ap, aq string
		if i < len(bids) {
			bq, bp = bids[i].Qty.StringFixed(5), bids[i].Price.StringFixed(2)
		}
		if i < len(asks) {
			ap, aq = asks[i].Price.StringFixed(2), asks[i].Qty.StringFixed(5)
		}
		fmt.Fprintf(w, "%s\t%s\t\t%s\t%s\n", bq, bp, ap, aq)
	}
	w.Flush()
	fmt.Fprintln(d.out)
}

func (d *Dashboard) renderQuotes() {
	bid, ask := d.engine.Quotes()
	bidHalted, askHalted := d.engine.Halted()

	fmt.Fprintln(d.out, "OUR QUOTES")
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	if bid != nil {
		fmt.Fprintf(w, "bid\t%s\t%s\n", bid.Price.StringFixed(2), bid.Qty.StringFixed(5))
	} else if bidHalted {
		fmt.Fprintln(w, "bid\t-\trisk halted")
	} else {
		fmt.Fprintln(w, "bid\t-\t")
	}
	if ask != nil {
		fmt.Fprintf(w, "ask\t%s\t%s\n", ask.Price.StringFixed(2), ask.Qty.StringFixed(5))
	} else if askHalted {
		fmt.Fprintln(w, "ask\t-\trisk halted")
	} else {
		fmt.Fprintln(w, "ask\t-\t")
	}
	w.Flush()
	fmt.Fprintln(d.out)
}

func (d *Dashboard) renderSpreads() {
	fmt.Fprintln(d.out, "SPREAD ANALYTICS")
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SIZE\tAVG\tMEDIAN\tMIN\tMAX\tSAMPLES")
	for _, size := range d.engine.SpreadSizes() {
		st, err := d.engine.SpreadStats(size)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t0\n", size)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			st.Size, st.Avg.StringFixed(4), st.Median.StringFixed(4),
			st.Min.StringFixed(4), st.Max.StringFixed(4), st.Count)
	}
	w.Flush()
	fmt.Fprintln(d.out)
}

func (d *Dashboard) renderPortfolio() {
	pos := d.engine.Position()
	pnl := d.engine.PnL()

	fmt.Fprintln(d.out, "PORTFOLIO")
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "position\t%s\n", pos.BaseQty.StringFixed(5))
	fmt.Fprintf(w, "quote balance\t%s\n", pos.QuoteBalance.StringFixed(2))
	if pos.HasBasis() {
		fmt.Fprintf(w, "avg cost basis\t%s\n", pos.AvgCostBasis.StringFixed(2))
	} else {
		fmt.Fprintln(w, "avg cost basis\t-")
	}
	fmt.Fprintf(w, "realized P&L\t%s\n", pnl.Realized.StringFixed(2))
	fmt.Fprintf(w, "unrealized P&L\t%s\n", pnl.Unrealized.StringFixed(2))
	fmt.Fprintf(w, "total P&L\t%s\n", pnl.Total.StringFixed(2))
	fmt.Fprintf(w, "mark price\t%s\n", pnl.MarkPrice.StringFixed(2))
	w.Flush()
	fmt.Fprintln(d.out)
}

func (d *Dashboard) renderFills() {
	fills := d.engine.RecentFills(10)
	fmt.Fprintf(d.out, "RECENT FILLS (%d total)\n", d.engine.TotalTrades())
	if len(fills) == 0 {
		fmt.Fprintln(d.out, "  none yet")
		fmt.Fprintln(d.out)
		return
	}
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	for _, f := range fills {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			f.Timestamp.Format("15:04:05"), f.Side, f.Price.StringFixed(2), f.Qty.StringFixed(5))
	}
	w.Flush()
	fmt.Fprintln(d.out)
}

func (d *Dashboard) renderCounters() {
	m := d.engine.Metrics()
	fmt.Fprintf(d.out, "books=%d stale=%d crossed=%d trades=%d fills=%d rejected=%d requotes=%d halts=%d conns=%d\n",
		m.BookUpdates, m.StaleUpdates, m.CrossedBooks, m.TradesSeen,
		m.FillsSimulated, m.FillsRejected, m.Requotes, m.RiskHalts, m.ActiveConnections)
}
