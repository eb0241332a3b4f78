package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety. One instance is constructed at
// startup and threaded through the engine; there is no package-level
// singleton.
type Metrics struct {
	// Counters
	bookUpdates    atomic.Uint64
	staleUpdates   atomic.Uint64
	crossedBooks   atomic.Uint64
	tradesSeen     atomic.Uint64
	fillsSimulated atomic.Uint64
	fillsRejected  atomic.Uint64
	requotes       atomic.Uint64
	riskHalts      atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// NewMetrics creates an empty metrics set.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordBookUpdate records an accepted book update.
func (m *Metrics) RecordBookUpdate() {
	m.bookUpdates.Add(1)
}

// RecordStaleUpdate records a dropped out-of-sequence update.
func (m *Metrics) RecordStaleUpdate() {
	m.staleUpdates.Add(1)
}

// RecordCrossedBook records a dropped crossing update.
func (m *Metrics) RecordCrossedBook() {
	m.crossedBooks.Add(1)
}

// RecordTrade records a processed market trade.
func (m *Metrics) RecordTrade() {
	m.tradesSeen.Add(1)
}

// RecordFill records a simulated fill.
func (m *Metrics) RecordFill() {
	m.fillsSimulated.Add(1)
}

// RecordFillRejected records a fill rejected by accounting.
func (m *Metrics) RecordFillRejected() {
	m.fillsRejected.Add(1)
}

// RecordRequote records a quote replacement.
func (m *Metrics) RecordRequote() {
	m.requotes.Add(1)
}

// RecordRiskHalt records a quote side withdrawn by the risk gate.
func (m *Metrics) RecordRiskHalt() {
	m.riskHalts.Add(1)
}

// IncrementConnections increments active feed connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active feed connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	BookUpdates       uint64
	StaleUpdates      uint64
	CrossedBooks      uint64
	TradesSeen        uint64
	FillsSimulated    uint64
	FillsRejected     uint64
	Requotes          uint64
	RiskHalts         uint64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BookUpdates:       m.bookUpdates.Load(),
		StaleUpdates:      m.staleUpdates.Load(),
		CrossedBooks:      m.crossedBooks.Load(),
		TradesSeen:        m.tradesSeen.Load(),
		FillsSimulated:    m.fillsSimulated.Load(),
		FillsRejected:     m.fillsRejected.Load(),
		Requotes:          m.requotes.Load(),
		RiskHalts:         m.riskHalts.Load(),
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.bookUpdates.Store(0)
	m.staleUpdates.Store(0)
	m.crossedBooks.Store(0)
	m.tradesSeen.Store(0)
	m.fillsSimulated.Store(0)
	m.fillsRejected.Store(0)
	m.requotes.Store(0)
	m.riskHalts.Store(0)
	m.activeConnections.Store(0)
}
