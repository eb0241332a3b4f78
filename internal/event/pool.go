package event

import (
	"sync"
	"time"
)

// Pools for high-frequency event allocation. The depth stream ticks
// every 100ms and the trade stream is bursty; recycling events keeps GC
// pressure off the hotpath.
//
// Usage:
//
//	ev := AcquireBookUpdate()
//	ev.Seq = seq
//	// ... send, process ...
//	ReleaseBookUpdate(ev)
var bookUpdatePool = sync.Pool{
	New: func() interface{} {
		return &BookUpdate{}
	},
}

// AcquireBookUpdate gets a BookUpdate from the pool.
// The returned event has zero values and must be initialized.
func AcquireBookUpdate() *BookUpdate {
	return bookUpdatePool.Get().(*BookUpdate)
}

// ReleaseBookUpdate returns a BookUpdate to the pool.
// Level slices are truncated, not freed, so capacity is reused.
func ReleaseBookUpdate(ev *BookUpdate) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Bids = ev.Bids[:0]
	ev.Asks = ev.Asks[:0]
	ev.IsSnapshot = false
	ev.Ts = time.Time{}

	bookUpdatePool.Put(ev)
}

// Trade pool
var tradePool = sync.Pool{
	New: func() interface{} {
		return &Trade{}
	},
}

// AcquireTrade gets a Trade from the pool.
func AcquireTrade() *Trade {
	return tradePool.Get().(*Trade)
}

// ReleaseTrade returns a Trade to the pool.
func ReleaseTrade(ev *Trade) {
	if ev == nil {
		return
	}
	*ev = Trade{}
	tradePool.Put(ev)
}
