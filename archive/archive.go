// Package archive writes Trade and order-book-snapshot events to
// RFC 4180 CSV files. Writes are buffered and flushed on a timer and on
// shutdown.
package archive

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"perpmm/market"
)

var tradeHeader = []string{"ts_ms", "trade_id", "side", "price", "qty"}
var snapshotHeader = []string{"ts_ms", "sequence", "mid", "best_bid", "best_ask"}

// Writer buffers rows for one event kind and flushes them to a CSV file no
// less often than FlushInterval, or immediately on Close.
type Writer struct {
	mu           sync.Mutex
	file         *os.File
	csv          *csv.Writer
	flushInterval time.Duration
	stop         chan struct{}
	done         chan struct{}
}

func newWriter(path string, header []string, flushInterval time.Duration) (*Writer, error) {
	exists := false
	if _, err := os.Stat(path); err == nil {
		exists = true
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	writer := &Writer{file: f, csv: w, flushInterval: flushInterval, stop: make(chan struct{}), done: make(chan struct{})}
	go writer.flushLoop()
	return writer, nil
}

func (w *Writer) flushLoop() {
	defer close(w.done)
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			w.flush()
			return
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Writer) writeRow(row []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.csv.Write(row)
}

func (w *Writer) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
}

// Close flushes any buffered rows and closes the underlying file.
func (w *Writer) Close() error {
	close(w.stop)
	<-w.done
	return w.file.Close()
}

// TradeArchive appends Trade rows.
type TradeArchive struct {
	*Writer
}

func NewTradeArchive(path string, flushInterval time.Duration) (*TradeArchive, error) {
	w, err := newWriter(path, tradeHeader, flushInterval)
	if err != nil {
		return nil, err
	}
	return &TradeArchive{Writer: w}, nil
}

func (a *TradeArchive) Append(t market.Trade) error {
	return a.writeRow([]string{
		fmt.Sprintf("%d", t.TsMs),
		t.TradeID,
		t.Side.String(),
		fmt.Sprintf("%.8f", t.Price),
		fmt.Sprintf("%.8f", t.Qty),
	})
}

// SnapshotArchive appends one row per top-of-book sample taken.
type SnapshotArchive struct {
	*Writer
}

func NewSnapshotArchive(path string, flushInterval time.Duration) (*SnapshotArchive, error) {
	w, err := newWriter(path, snapshotHeader, flushInterval)
	if err != nil {
		return nil, err
	}
	return &SnapshotArchive{Writer: w}, nil
}

func (a *SnapshotArchive) Append(tsMs int64, sequence uint64, mid, bestBid, bestAsk float64) error {
	return a.writeRow([]string{
		fmt.Sprintf("%d", tsMs),
		fmt.Sprintf("%d", sequence),
		fmt.Sprintf("%.8f", mid),
		fmt.Sprintf("%.8f", bestBid),
		fmt.Sprintf("%.8f", bestAsk),
	})
}
