package botstate

import (
	"testing"
	"time"

	"perpmm/strategy/asmm"
)

func TestApplyFillFlipsPingPongMode(t *testing.T) {
	s := New()
	s.PingPong.Enabled = true
	s.PingPong.Mode = PingPongNeedBuy
	s.LiveBid = &LiveOrder{OrderID: "1", Side: asmm.Bid}

	beforeGen := s.Read().RunGeneration
	s.ApplyFill(asmm.Bid, 0.01, true, time.Now())

	snap := s.Read()
	if snap.PingPong.Mode != PingPongNeedSell {
		t.Fatalf("expected mode NeedSell after filled buy, got %v", snap.PingPong.Mode)
	}
	if snap.InventoryQ != 0.01 {
		t.Fatalf("expected inventory +0.01, got %v", snap.InventoryQ)
	}
	if snap.LiveBid != nil {
		t.Fatalf("expected live bid cleared on full fill")
	}
	if snap.RunGeneration <= beforeGen {
		t.Fatalf("expected generation to bump on ping-pong flip")
	}
}

func TestApplyFillSellDecrementsInventory(t *testing.T) {
	s := New()
	s.ApplyFill(asmm.Ask, 0.02, true, time.Now())
	if got := s.Read().InventoryQ; got != -0.02 {
		t.Fatalf("expected inventory -0.02, got %v", got)
	}
}

func TestActionInFlightSerializesPerSide(t *testing.T) {
	s := New()
	if !s.TryAcquireAction(asmm.Bid) {
		t.Fatalf("expected first acquire to succeed")
	}
	if s.TryAcquireAction(asmm.Bid) {
		t.Fatalf("expected second acquire on same side to fail while in flight")
	}
	if !s.TryAcquireAction(asmm.Ask) {
		t.Fatalf("expected ask side to be independent of bid")
	}
	s.ReleaseAction(asmm.Bid)
	if !s.TryAcquireAction(asmm.Bid) {
		t.Fatalf("expected acquire to succeed again after release")
	}
}

func TestInitializePingPongModeFromPosition(t *testing.T) {
	s := New()
	s.InitializePingPongMode(5)
	if s.Read().PingPong.Mode != PingPongNeedSell {
		t.Fatalf("expected NeedSell for positive position")
	}
	s.InitializePingPongMode(-5)
	if s.Read().PingPong.Mode != PingPongNeedBuy {
		t.Fatalf("expected NeedBuy for negative position")
	}
	s.InitializePingPongMode(0)
	if s.Read().PingPong.Mode != PingPongNeedBuy {
		t.Fatalf("expected NeedBuy for flat position")
	}
}

func TestPublishDesiredBumpsGeneration(t *testing.T) {
	s := New()
	g0 := s.Read().RunGeneration
	s.PublishDesired(&asmm.Quote{Side: asmm.Bid, Price: 100}, &asmm.Quote{Side: asmm.Ask, Price: 101})
	g1 := s.Read().RunGeneration
	if g1 <= g0 {
		t.Fatalf("expected generation bump on publish")
	}
	snap := s.Read()
	if snap.DesiredBid == nil || snap.DesiredAsk == nil {
		t.Fatalf("expected desired quotes to be set")
	}
}
