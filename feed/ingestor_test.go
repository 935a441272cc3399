package feed

import (
	"testing"
	"time"

	"perpmm/history"
	"perpmm/market"
)

func TestParseMessageSnapshotAndDelta(t *testing.T) {
	raw := []byte(`{"type":"SNAPSHOT","market":"ETH-USD","sequence":1,"ts_ms":1000,"bids":[["100","1"]],"asks":[["101","1"]]}`)
	msg, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != MessageSnapshot || msg.Sequence != 1 || len(msg.Bids) != 1 {
		t.Fatalf("unexpected parsed message: %+v", msg)
	}
}

func TestParseMessageMalformedIsError(t *testing.T) {
	_, err := ParseMessage([]byte(`{not json`))
	if err == nil {
		t.Fatalf("expected error on malformed json")
	}
}

func TestParseMessageUnknownTypeIsError(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":"WAT"}`))
	if err == nil {
		t.Fatalf("expected error on unknown message type")
	}
}

func TestIngestorMergesSnapshotThenDelta(t *testing.T) {
	book := market.NewOrderBook()
	win := history.New(time.Hour)
	ig := NewIngestor("ETH-USD", book, win, time.Second)

	ig.Enqueue(Message{Type: MessageSnapshot, Sequence: 1, TsMs: 1000,
		Bids: []market.Level{{Price: 100, Size: 1}}, Asks: []market.Level{{Price: 101, Size: 1}}})
	ig.Drain()

	bid, ask := book.Best()
	if bid != 100 || ask != 101 {
		t.Fatalf("unexpected book after snapshot: bid=%v ask=%v", bid, ask)
	}

	ig.Enqueue(Message{Type: MessageDelta, Sequence: 2, TsMs: 2000,
		Bids: []market.Level{{Price: 100, Size: 0}, {Price: 99.5, Size: 2}}})
	ig.Drain()

	bid, _ = book.Best()
	if bid != 99.5 {
		t.Fatalf("expected delta to move best bid to 99.5, got %v", bid)
	}
}

func TestIngestorSequenceGapTriggersStale(t *testing.T) {
	book := market.NewOrderBook()
	win := history.New(time.Hour)
	ig := NewIngestor("ETH-USD", book, win, time.Second)
	gapCalled := false
	ig.OnGap(func() { gapCalled = true })

	ig.Enqueue(Message{Type: MessageSnapshot, Sequence: 1, TsMs: 1000,
		Bids: []market.Level{{Price: 100, Size: 1}}, Asks: []market.Level{{Price: 101, Size: 1}}})
	ig.Drain()

	// Sequence jumps to 3 instead of 2: gap.
	ig.Enqueue(Message{Type: MessageDelta, Sequence: 3, TsMs: 2000,
		Bids: []market.Level{{Price: 100, Size: 2}}})
	ig.Drain()

	if !gapCalled {
		t.Fatalf("expected OnGap callback to fire on sequence gap")
	}
	if book.Valid() {
		t.Fatalf("expected book invalidated after sequence gap")
	}
	if !ig.Stale(time.UnixMilli(2000)) {
		t.Fatalf("expected ingestor to report stale after gap")
	}
}

func TestIngestorStaleAfterSilence(t *testing.T) {
	book := market.NewOrderBook()
	win := history.New(time.Hour)
	ig := NewIngestor("ETH-USD", book, win, 500*time.Millisecond)

	base := time.Now()
	ig.Enqueue(Message{Type: MessageSnapshot, Sequence: 1, TsMs: base.UnixMilli(),
		Bids: []market.Level{{Price: 100, Size: 1}}, Asks: []market.Level{{Price: 101, Size: 1}}})
	ig.Drain()

	if ig.Stale(base.Add(100 * time.Millisecond)) {
		t.Fatalf("should not be stale immediately after snapshot")
	}
	if !ig.Stale(base.Add(2 * time.Second)) {
		t.Fatalf("expected staleness after exceeding maxStale with no updates")
	}
}
