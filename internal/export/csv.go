// Package export serializes engine snapshots to CSV. It is a pure
// consumer: everything it writes comes from the engine's read-only
// snapshot accessors.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mmgo/internal/domain"
	"mmgo/internal/engine"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Manager appends engine output to four CSV files: the fill log, the
// current P&L snapshot, the P&L time series and the spread analytics
// time series.
type Manager struct {
	dir         string
	tradesFile  string
	pnlFile     string
	pnlHistFile string
	spreadsFile string
}

// NewManager creates the export directory and the CSV headers.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	m := &Manager{
		dir:         dir,
		tradesFile:  filepath.Join(dir, "trade_logs.csv"),
		pnlFile:     filepath.Join(dir, "pnl_snapshot.csv"),
		pnlHistFile: filepath.Join(dir, "pnl_history.csv"),
		spreadsFile: filepath.Join(dir, "spread_history.csv"),
	}
	if err := m.initHeaders(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initHeaders() error {
	headers := map[string][]string{
		m.tradesFile:  {"timestamp", "side", "price", "qty", "fill_id", "quote_id"},
		m.pnlHistFile: {"as_of", "realized", "unrealized", "total", "mark_price"},
		m.spreadsFile: {"as_of", "size", "avg", "median", "min", "max", "samples"},
	}
	for file, header := range headers {
		if _, err := os.Stat(file); err == nil {
			continue
		}
		if err := writeRows(file, false, [][]string{header}); err != nil {
			return err
		}
	}
	return nil
}

// AppendFills appends fill rows to the trade log.
func (m *Manager) AppendFills(fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(fills))
	for _, f := range fills {
		rows = append(rows, []string{
			f.Timestamp.Format(timeLayout),
			string(f.Side),
			f.Price.String(),
			f.Qty.String(),
			f.ID,
			f.QuoteID,
		})
	}
	return writeRows(m.tradesFile, true, rows)
}

// AppendPnL appends one P&L snapshot to the history file.
func (m *Manager) AppendPnL(p domain.PnLSnapshot) error {
	return writeRows(m.pnlHistFile, true, [][]string{{
		p.AsOf.Format(timeLayout),
		p.Realized.String(),
		p.Unrealized.String(),
		p.Total.String(),
		p.MarkPrice.String(),
	}})
}

// AppendSpreadStats appends one stats row per size to the spread file.
func (m *Manager) AppendSpreadStats(stats []domain.SpreadStats, asOf time.Time) error {
	if len(stats) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(stats))
	for _, st := range stats {
		rows = append(rows, []string{
			asOf.Format(timeLayout),
			st.Size.String(),
			st.Avg.String(),
			st.Median.String(),
			st.Min.String(),
			st.Max.String(),
			fmt.Sprintf("%d", st.Count),
		})
	}
	return writeRows(m.spreadsFile, true, rows)
}

// WriteSnapshot overwrites the current-P&L file with the latest state.
func (m *Manager) WriteSnapshot(pos domain.Position, p domain.PnLSnapshot, totalTrades int) error {
	rows := [][]string{
		{"base_qty", "quote_balance", "avg_cost_basis", "realized", "unrealized", "total", "mark_price", "total_trades", "as_of"},
		{
			pos.BaseQty.String(),
			pos.QuoteBalance.String(),
			pos.AvgCostBasis.String(),
			p.Realized.String(),
			p.Unrealized.String(),
			p.Total.String(),
			p.MarkPrice.String(),
			fmt.Sprintf("%d", totalTrades),
			p.AsOf.Format(timeLayout),
		},
	}
	return writeRows(m.pnlFile, false, rows)
}

// Flush drains everything exportable from the engine: pending fills,
// the latest P&L and the current spread stats. Called on a timer and
// once more at shutdown.
func (m *Manager) Flush(e *engine.Engine) error {
	if err := m.AppendFills(e.FillsSince()); err != nil {
		return err
	}
	pnl := e.PnL()
	if err := m.AppendPnL(pnl); err != nil {
		return err
	}
	if err := m.WriteSnapshot(e.Position(), pnl, e.TotalTrades()); err != nil {
		return err
	}

	now := time.Now()
	var stats []domain.SpreadStats
	for _, size := range e.SpreadSizes() {
		st, err := e.SpreadStats(size)
		if err != nil {
			continue // empty window, nothing to export yet
		}
		stats = append(stats, st)
	}
	return m.AppendSpreadStats(stats, now)
}

func writeRows(path string, appendMode bool, rows [][]string) error {
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
