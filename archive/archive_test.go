package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"perpmm/market"
)

func TestTradeArchiveWritesHeaderOnceAndFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")

	a, err := NewTradeArchive(path, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Append(market.Trade{TsMs: 1000, TradeID: "t1", Side: market.AggressorBuy, Price: 100.5, Qty: 0.25}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Append(market.Trade{TsMs: 2000, TradeID: "t2", Side: market.AggressorSell, Price: 101, Qty: 0.1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error on close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading archive: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %v", len(lines), lines)
	}
	if lines[0] != strings.Join(tradeHeader, ",") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "t1") || !strings.Contains(lines[1], "BUY") {
		t.Fatalf("unexpected first row: %s", lines[1])
	}
}

func TestTradeArchiveAppendsAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")

	a1, _ := NewTradeArchive(path, time.Hour)
	_ = a1.Append(market.Trade{TsMs: 1, TradeID: "a", Side: market.AggressorBuy, Price: 1, Qty: 1})
	_ = a1.Close()

	a2, _ := NewTradeArchive(path, time.Hour)
	_ = a2.Append(market.Trade{TsMs: 2, TradeID: "b", Side: market.AggressorBuy, Price: 2, Qty: 2})
	_ = a2.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	// header only written once, across both writer instances.
	headerCount := 0
	for _, l := range lines {
		if l == strings.Join(tradeHeader, ",") {
			headerCount++
		}
	}
	if headerCount != 1 {
		t.Fatalf("expected exactly one header row across reopens, got %d", headerCount)
	}
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows total, got %d: %v", len(lines), lines)
	}
}

func TestSnapshotArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots.csv")
	a, err := NewSnapshotArchive(path, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Append(1000, 42, 3000.5, 2999, 3002); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "42") {
		t.Fatalf("expected sequence 42 in archived row, got: %s", data)
	}
}

func TestFlushLoopFlushesOnTimer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trades.csv")
	a, err := NewTradeArchive(path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Close()

	_ = a.Append(market.Trade{TsMs: 1, TradeID: "x", Side: market.AggressorBuy, Price: 1, Qty: 1})
	time.Sleep(40 * time.Millisecond)

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "x") {
		t.Fatalf("expected timer flush to have written buffered row, got: %q", data)
	}
}
