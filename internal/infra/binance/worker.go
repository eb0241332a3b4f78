package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/event"
	"mmgo/internal/infra"
)

const (
	maxRetries  = 10
	readTimeout = 60 * time.Second
)

// combinedMessage is the Binance combined-stream envelope.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// depthResponse is the partial depth stream payload (full top-N snapshot
// every tick).
type depthResponse struct {
	LastUpdateID uint64      `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"` // [price, qty]
	Asks         [][2]string `json:"asks"`
}

// tradeResponse is the trade stream payload.
type tradeResponse struct {
	EventType    string `json:"e"`
	TradeID      uint64 `json:"t"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// Worker handles the Binance combined WebSocket stream
// (<symbol>@depth<N>@100ms + <symbol>@trade) and feeds validated
// events into the engine inboxes. It never mutates engine state
// directly and reconnects with exponential backoff on failure.
type Worker struct {
	wsURL  string
	symbol string
	depth  int

	bookInbox  chan<- *event.BookUpdate
	tradeInbox chan<- *event.Trade
	metrics    *infra.Metrics

	bookSeq atomic.Uint64 // local monotonic fallback, see stampBookSeq

	conn      *websocket.Conn
	mu        sync.RWMutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker creates a Binance feed worker.
func NewWorker(wsURL, symbol string, depth int, bookInbox chan<- *event.BookUpdate, tradeInbox chan<- *event.Trade, metrics *infra.Metrics) *Worker {
	return &Worker{
		wsURL:      wsURL,
		symbol:     symbol,
		depth:      depth,
		bookInbox:  bookInbox,
		tradeInbox: tradeInbox,
		metrics:    metrics,
	}
}

// Connect starts the WebSocket connection loop.
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

// IsConnected reports whether the socket is currently up.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("Binance connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

// streamURL builds the combined-stream URL for depth + trade.
func (w *Worker) streamURL() string {
	return fmt.Sprintf("%s/stream?streams=%s@depth%d@100ms/%s@trade",
		w.wsURL, w.symbol, w.depth, w.symbol)
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.streamURL(), http.Header{})
	if err != nil {
		return domain.NewNetworkError("dial", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.IncrementConnections()
	}

	slog.Info("Binance connected", slog.String("symbol", w.symbol), slog.Int("depth", w.depth))
	return nil
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Copy under the lock; Disconnect may nil out w.conn concurrently.
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var env combinedMessage
	if json.Unmarshal(msg, &env) != nil || env.Stream == "" {
		return
	}

	switch {
	case strings.Contains(env.Stream, "@depth"):
		w.handleDepth(env.Data)
	case strings.Contains(env.Stream, "@trade"):
		w.handleTrade(env.Data)
	}
}

func (w *Worker) handleDepth(data json.RawMessage) {
	var resp depthResponse
	if json.Unmarshal(data, &resp) != nil || resp.LastUpdateID == 0 {
		return
	}

	ev := event.AcquireBookUpdate()
	ev.Seq = w.stampBookSeq(resp.LastUpdateID)
	ev.IsSnapshot = true // depth<N> streams carry full top-N snapshots
	ev.Ts = time.Now()

	ok := true
	ev.Bids, ok = appendLevels(ev.Bids, resp.Bids, ok)
	ev.Asks, ok = appendLevels(ev.Asks, resp.Asks, ok)
	if !ok {
		event.ReleaseBookUpdate(ev)
		return
	}

	select {
	case w.bookInbox <- ev:
	default: // DROP: the next 100ms snapshot supersedes this one
		event.ReleaseBookUpdate(ev)
	}
}

// stampBookSeq prefers the exchange lastUpdateId, falling back to a
// local monotonic counter if the exchange ever repeats one.
func (w *Worker) stampBookSeq(exchangeID uint64) uint64 {
	for {
		cur := w.bookSeq.Load()
		next := exchangeID
		if next <= cur {
			next = cur + 1
		}
		if w.bookSeq.CompareAndSwap(cur, next) {
			return next
		}
	}
}

func appendLevels(dst []domain.PriceLevel, raw [][2]string, ok bool) ([]domain.PriceLevel, bool) {
	if !ok {
		return dst, false
	}
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return dst, false
		}
		qty, err := decimal.NewFromString(pair[1])
		if err != nil {
			return dst, false
		}
		dst = append(dst, domain.PriceLevel{Price: price, Qty: qty})
	}
	return dst, true
}

func (w *Worker) handleTrade(data json.RawMessage) {
	var resp tradeResponse
	if json.Unmarshal(data, &resp) != nil || resp.EventType != "trade" {
		return
	}

	price, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return
	}
	qty, err := decimal.NewFromString(resp.Qty)
	if err != nil {
		return
	}

	// m=true means the buyer was the maker, so the aggressor sold.
	aggressor := domain.SideBuy
	if resp.BuyerIsMaker {
		aggressor = domain.SideSell
	}

	ev := event.AcquireTrade()
	ev.Seq = resp.TradeID
	ev.ID = fmt.Sprintf("%d", resp.TradeID)
	ev.Price = price
	ev.Qty = qty
	ev.Aggressor = aggressor
	ev.Ts = time.UnixMilli(resp.TradeTime)

	select {
	case w.tradeInbox <- ev:
	default: // DROP
		event.ReleaseTrade(ev)
	}
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	if w.connected && w.metrics != nil {
		w.metrics.DecrementConnections()
	}
	w.connected = false
}

// Disconnect stops the worker and waits for the connection loop to exit.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
