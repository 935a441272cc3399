package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"perpmm/history"
	"perpmm/market"
	"perpmm/metrics"
)

const (
	channelCapacity  = 1024
	maxStaleDefault  = 2 * time.Second
	heartbeatSilence = 30 * time.Second
)

// Ingestor maintains one market's order book and historical window from a
// stream of parsed Messages, implementing snapshot/delta merge and
// gap-triggered resync. Connection lifecycle (dial/reconnect/heartbeat) is
// driven by the caller via venue.WSClient; Ingestor only owns book-merge
// state so it can be exercised without a live socket.
type Ingestor struct {
	Market market.MarketId
	Book   *market.OrderBook
	Window *history.Window

	inbox     chan Message
	mu        sync.Mutex
	stale     atomic.Bool
	lastKnown atomic.Int64 // unix nano of last good update
	maxStale  time.Duration

	onGap   func()
	onBook  func(mid, bestBid, bestAsk float64, sequence uint64, ts time.Time)
	onTrade func(tr market.Trade)
}

// NewIngestor creates an Ingestor backed by book/window, with a bounded
// inbox channel (capacity 1024).
func NewIngestor(marketID market.MarketId, book *market.OrderBook, window *history.Window, maxStale time.Duration) *Ingestor {
	if maxStale <= 0 {
		maxStale = maxStaleDefault
	}
	return &Ingestor{
		Market:   marketID,
		Book:     book,
		Window:   window,
		inbox:    make(chan Message, channelCapacity),
		maxStale: maxStale,
	}
}

// OnGap registers a callback invoked whenever a sequence gap forces a
// resync, so the caller (Supervisor/FeedIngestor wiring) can trigger
// re-subscription.
func (ig *Ingestor) OnGap(fn func()) { ig.onGap = fn }

// OnBookUpdate registers a callback fired after every successful snapshot or
// delta merge with the fresh mid/best/sequence, so the caller can publish
// into BotState and the snapshot archive without reaching into the book.
func (ig *Ingestor) OnBookUpdate(fn func(mid, bestBid, bestAsk float64, sequence uint64, ts time.Time)) {
	ig.onBook = fn
}

// OnTrade registers a callback fired for every deduplicated trade appended
// to the window (archive and resume-cursor wiring).
func (ig *Ingestor) OnTrade(fn func(tr market.Trade)) { ig.onTrade = fn }

// Enqueue pushes a raw frame's parsed Message onto the bounded inbox. If
// full, drops the oldest non-SNAPSHOT entry and forces a gap on the next
// sequence check.
func (ig *Ingestor) Enqueue(msg Message) {
	select {
	case ig.inbox <- msg:
		return
	default:
	}
	// Channel full: drop one oldest non-SNAPSHOT message to make room.
	for {
		select {
		case old := <-ig.inbox:
			if old.Type == MessageSnapshot {
				// Never drop a SNAPSHOT; put it back and drop msg's slot
				// to a later successful send instead by discarding msg.
				ig.inbox <- old
				return
			}
			// Dropped a delta: force a resync since we cannot guarantee
			// sequence continuity without it.
			ig.Book.Invalidate()
			select {
			case ig.inbox <- msg:
				return
			default:
				continue
			}
		default:
			return
		}
	}
}

// Drain processes every currently queued message synchronously on the
// caller's goroutine; cmd/marketmaker calls it right after each Enqueue, and
// tests call it directly so merge semantics are checked without goroutine
// races.
func (ig *Ingestor) Drain() {
	for {
		select {
		case msg := <-ig.inbox:
			ig.apply(msg)
		default:
			return
		}
	}
}

func (ig *Ingestor) apply(msg Message) {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	now := time.UnixMilli(msg.TsMs)
	if msg.TsMs == 0 {
		now = time.Now()
	}

	switch msg.Type {
	case MessageSnapshot:
		ig.Book.ApplySnapshot(msg.Bids, msg.Asks, msg.Sequence, now)
		ig.stale.Store(false)
		ig.markFresh(now)
		ig.publishBookMetrics(now)
	case MessageDelta:
		if err := ig.Book.ApplyDelta(msg.Bids, msg.Asks, msg.Sequence, now); err != nil {
			ig.triggerGap()
			return
		}
		ig.markFresh(now)
		ig.publishBookMetrics(now)
	case MessageTrade:
		if msg.Trade != nil {
			ig.Window.AddTrade(*msg.Trade, now)
			if ig.onTrade != nil {
				ig.onTrade(*msg.Trade)
			}
		}
		ig.markFresh(now)
	case MessageHeartbeat:
		ig.markFresh(now)
	}
}

func (ig *Ingestor) triggerGap() {
	ig.Book.Invalidate()
	ig.stale.Store(true)
	metrics.FeedGapsTotal.Inc()
	metrics.BookStale.Set(1)
	if ig.onGap != nil {
		ig.onGap()
	}
}

// publishBookMetrics updates the mid/best-bid/best-ask gauges and clears the
// stale flag after a successful snapshot or delta merge.
func (ig *Ingestor) publishBookMetrics(now time.Time) {
	metrics.BookStale.Set(0)
	bestBid, bestAsk := ig.Book.Best()
	if mid := ig.Book.Mid(); mid > 0 {
		metrics.Mid.Set(mid)
		ig.Window.AddTopOfBook(mid, now)
	}
	if bestBid > 0 {
		metrics.BestBid.Set(bestBid)
	}
	if bestAsk > 0 {
		metrics.BestAsk.Set(bestAsk)
	}
	if ig.onBook != nil {
		ig.onBook(ig.Book.Mid(), bestBid, bestAsk, ig.Book.Sequence(), now)
	}
}

func (ig *Ingestor) markFresh(ts time.Time) {
	ig.lastKnown.Store(ts.UnixNano())
}

// Stale reports whether the book is in a resync/stale state, either from a
// detected sequence gap or from exceeding maxStale/heartbeat silence.
func (ig *Ingestor) Stale(now time.Time) bool {
	if ig.stale.Load() {
		return true
	}
	last := ig.lastKnown.Load()
	if last == 0 {
		return true
	}
	age := now.Sub(time.Unix(0, last))
	return age > ig.maxStale || age > heartbeatSilence
}

// LastKnownTs returns the timestamp of the last successfully applied
// message.
func (ig *Ingestor) LastKnownTs() time.Time {
	last := ig.lastKnown.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}
