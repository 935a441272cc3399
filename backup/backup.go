// Package backup implements BackupPoller: a REST fallback that keeps
// BotState's mid price moving when the live feed goes quiet, without ever
// writing into HistoricalWindow (REST snapshots are too coarse and too
// infrequent to feed the volatility/kappa estimators). Grounded on
// cmd/runner/main.go's staleness-triggered REST poll goroutine.
package backup

import (
	"context"
	"time"

	"perpmm/botstate"
	"perpmm/infrastructure/logger"
	"perpmm/market"
	"perpmm/metrics"
	"perpmm/venue"
)

const defaultInterval = 2 * time.Second

// BestBidAskGetter is the subset of *venue.RESTClient BackupPoller needs.
type BestBidAskGetter interface {
	GetBestBidAsk(ctx context.Context, market string) (venue.BestBidAsk, error)
}

// Poller polls REST for a market's best bid/ask whenever the live book has
// been silent longer than Interval, and writes the result into BotState
// with StaleSource="REST".
type Poller struct {
	Market   string
	Book     *market.OrderBook
	State    *botstate.State
	REST     BestBidAskGetter
	Interval time.Duration
	Log      *logger.Logger
}

func New(marketID string, book *market.OrderBook, state *botstate.State, rest BestBidAskGetter, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{Market: marketID, Book: book, State: state, REST: rest, Interval: interval, Log: log}
}

// Run polls on a ticker until ctx is cancelled, checking book silence on
// each tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.checkAndPoll(ctx, time.Now())
		}
	}
}

// checkAndPoll issues a single REST fetch if the book has gone silent
// beyond Interval, or if it currently holds no valid mid at all.
func (p *Poller) checkAndPoll(ctx context.Context, now time.Time) {
	mid := p.Book.Mid()
	silent := mid <= 0 || now.Sub(p.Book.LastUpdate()) > p.Interval
	if !silent {
		return
	}

	bba, err := p.REST.GetBestBidAsk(ctx, p.Market)
	if err != nil {
		metrics.RESTErrorsTotal.WithLabelValues("best_bid_ask", "error").Inc()
		if p.Log != nil {
			p.Log.LogError(err, map[string]interface{}{"event": "rest_backup_poll_failed", "market": p.Market})
		}
		return
	}
	if bba.Bid <= 0 || bba.Ask <= 0 {
		return
	}
	restMid := (bba.Bid + bba.Ask) / 2
	p.State.UpdateBookFromREST(restMid, bba.Bid, bba.Ask)
	metrics.BookStale.Set(1)
	metrics.Mid.Set(restMid)
	metrics.BestBid.Set(bba.Bid)
	metrics.BestAsk.Set(bba.Ask)
}
