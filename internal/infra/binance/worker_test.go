package binance

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"mmgo/internal/domain"
	"mmgo/internal/event"
)

func testWorker(bookBuf, tradeBuf int) (*Worker, chan *event.BookUpdate, chan *event.Trade) {
	bookInbox := make(chan *event.BookUpdate, bookBuf)
	tradeInbox := make(chan *event.Trade, tradeBuf)
	w := NewWorker("wss://example", "btcusdt", 20, bookInbox, tradeInbox, nil)
	return w, bookInbox, tradeInbox
}

func TestHandleDepth(t *testing.T) {
	w, bookInbox, _ := testWorker(1, 1)

	msg := []byte(`{"stream":"btcusdt@depth20@100ms","data":{` +
		`"lastUpdateId":1000,` +
		`"bids":[["50000.10","0.5"],["49999.00","1.2"]],` +
		`"asks":[["50001.00","0.3"]]}}`)
	w.handleMessage(msg)

	select {
	case ev := <-bookInbox:
		if ev.Seq != 1000 {
			t.Errorf("expected seq 1000, got %d", ev.Seq)
		}
		if !ev.IsSnapshot {
			t.Error("depth payloads must be flagged as snapshots")
		}
		if len(ev.Bids) != 2 || len(ev.Asks) != 1 {
			t.Fatalf("expected 2 bids / 1 ask, got %d / %d", len(ev.Bids), len(ev.Asks))
		}
		if !ev.Bids[0].Price.Equal(decimal.RequireFromString("50000.10")) {
			t.Errorf("expected bid price 50000.10, got %s", ev.Bids[0].Price)
		}
		event.ReleaseBookUpdate(ev)
	default:
		t.Fatal("expected a book update in the inbox")
	}
}

func TestHandleDepth_MalformedDropped(t *testing.T) {
	w, bookInbox, _ := testWorker(1, 1)

	// Unparseable price: the whole payload is dropped
	msg := []byte(`{"stream":"btcusdt@depth20@100ms","data":{` +
		`"lastUpdateId":1000,"bids":[["not-a-number","0.5"]],"asks":[]}}`)
	w.handleMessage(msg)

	if len(bookInbox) != 0 {
		t.Error("malformed depth payload must not reach the inbox")
	}
}

func TestHandleTrade(t *testing.T) {
	w, _, tradeInbox := testWorker(1, 1)

	msg := []byte(`{"stream":"btcusdt@trade","data":{` +
		`"e":"trade","t":42,"p":"50000.50","q":"0.25","T":1700000000000,"m":true}}`)
	w.handleMessage(msg)

	select {
	case ev := <-tradeInbox:
		if ev.Seq != 42 {
			t.Errorf("expected seq 42, got %d", ev.Seq)
		}
		// Buyer was maker: the aggressor sold
		if ev.Aggressor != domain.SideSell {
			t.Errorf("expected SELL aggressor, got %s", ev.Aggressor)
		}
		if !ev.Price.Equal(decimal.RequireFromString("50000.50")) {
			t.Errorf("expected price 50000.50, got %s", ev.Price)
		}
		event.ReleaseTrade(ev)
	default:
		t.Fatal("expected a trade in the inbox")
	}
}

func TestHandleTrade_BuyAggressor(t *testing.T) {
	w, _, tradeInbox := testWorker(1, 1)

	msg := []byte(`{"stream":"btcusdt@trade","data":{` +
		`"e":"trade","t":43,"p":"50000","q":"1","T":1700000000000,"m":false}}`)
	w.handleMessage(msg)

	ev := <-tradeInbox
	if ev.Aggressor != domain.SideBuy {
		t.Errorf("expected BUY aggressor, got %s", ev.Aggressor)
	}
	event.ReleaseTrade(ev)
}

func TestFullInboxDropsEvent(t *testing.T) {
	w, bookInbox, _ := testWorker(1, 1)

	depth := `{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":%d,"bids":[["100","1"]],"asks":[["101","1"]]}}`
	w.handleMessage([]byte(fmt.Sprintf(depth, 1)))
	w.handleMessage([]byte(fmt.Sprintf(depth, 2))) // inbox full, dropped

	if len(bookInbox) != 1 {
		t.Fatalf("expected exactly 1 buffered update, got %d", len(bookInbox))
	}
	ev := <-bookInbox
	if ev.Seq != 1 {
		t.Errorf("expected the first update retained, got seq %d", ev.Seq)
	}
	event.ReleaseBookUpdate(ev)
}

func TestStampBookSeqMonotonic(t *testing.T) {
	w, _, _ := testWorker(1, 1)

	if got := w.stampBookSeq(100); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}
	// Exchange repeats an id: local counter keeps the stream increasing
	if got := w.stampBookSeq(100); got != 101 {
		t.Errorf("expected 101, got %d", got)
	}
	if got := w.stampBookSeq(500); got != 500 {
		t.Errorf("expected 500, got %d", got)
	}
}

func TestDisconnectWithoutConnection(t *testing.T) {
	w, _, _ := testWorker(1, 1)

	// Shutdown before (or racing) a connection must not panic
	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		w.readLoop(ctx)
	}()

	w.Disconnect()
	<-done

	if w.IsConnected() {
		t.Error("expected disconnected worker")
	}
}

func TestStreamURL(t *testing.T) {
	w, _, _ := testWorker(1, 1)

	want := "wss://example/stream?streams=btcusdt@depth20@100ms/btcusdt@trade"
	if got := w.streamURL(); got != want {
		t.Errorf("streamURL = %q, want %q", got, want)
	}
}
