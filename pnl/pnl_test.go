package pnl

import (
	"path/filepath"
	"testing"
	"time"
)

func TestInitAnchorCreatesOnceThenPreserves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pnl_state.json")

	a1, err := InitAnchor(path, 1000, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a1.InitialEquityUSD != 1000 {
		t.Fatalf("expected anchor seeded at 1000, got %v", a1.InitialEquityUSD)
	}

	// Second init with a different equity must not overwrite the anchor.
	a2, err := InitAnchor(path, 5000, time.Unix(1_800_000_000, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a2.InitialEquityUSD != 1000 {
		t.Fatalf("expected anchor preserved at 1000 across restarts, got %v", a2.InitialEquityUSD)
	}
}

func TestLoadAnchorMissingReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	_, ok, err := LoadAnchor(filepath.Join(dir, "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error on missing file: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing anchor file")
	}
}

func TestCursorWriterFlushesOnUpdateCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	w := NewCursorWriter(path, 3, time.Hour)

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 2; i++ {
		if err := w.Update(ResumeCursor{LastSequence: uint64(i + 1)}, base); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, ok, _ := LoadResumeCursor(path); ok {
		t.Fatalf("expected no flush before reaching MinUpdates")
	}

	if err := w.Update(ResumeCursor{LastSequence: 3, LastTradeID: "t3"}, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cursor, ok, err := LoadResumeCursor(path)
	if err != nil || !ok {
		t.Fatalf("expected a flushed cursor file, ok=%v err=%v", ok, err)
	}
	if cursor.LastSequence != 3 || cursor.LastTradeID != "t3" {
		t.Fatalf("unexpected cursor contents: %+v", cursor)
	}
}

func TestCursorWriterFlushesOnInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	w := NewCursorWriter(path, 100, 10*time.Millisecond)

	base := time.Unix(1_700_000_000, 0)
	if err := w.Update(ResumeCursor{LastSequence: 1}, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Update(ResumeCursor{LastSequence: 2}, base.Add(20*time.Millisecond)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cursor, ok, err := LoadResumeCursor(path)
	if err != nil || !ok {
		t.Fatalf("expected flush once interval elapsed, ok=%v err=%v", ok, err)
	}
	if cursor.LastSequence != 2 {
		t.Fatalf("expected latest cursor persisted, got %+v", cursor)
	}
}

func TestFlushForcesWriteOnShutdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	w := NewCursorWriter(path, 1000, time.Hour)

	base := time.Unix(1_700_000_000, 0)
	_ = w.Update(ResumeCursor{LastSequence: 1, LastTradeID: "only"}, base)
	if _, ok, _ := LoadResumeCursor(path); ok {
		t.Fatalf("expected no flush yet")
	}
	if err := w.Flush(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cursor, ok, _ := LoadResumeCursor(path)
	if !ok || cursor.LastTradeID != "only" {
		t.Fatalf("expected forced flush to persist the pending cursor")
	}
}
