package asmm

import (
	"math"
	"testing"

	"perpmm/market"
)

func baseInputs() Inputs {
	return Inputs{
		Mid:            3000,
		BestBid:        2999.9,
		BestAsk:        3000.1,
		Sigma:          0.0003,
		Kappa:          0.02,
		Gamma:          0.01,
		TimeHorizonSec: 86400,
		InventoryQ:     0,
		MinSpreadBps:   1,
		MaxStaleMs:     2000,
		Config:         market.TradingConfig{TickSize: 0.1, SizeIncrement: 0.001, MinNotional: 1},
		NotionalUSD:    30,
	}
}

// gamma=0.01, T=86400, sigma=0.0003, kappa=0.02, mid=3000 -> half-spread
// ~40.59, bid ~2959.4, ask ~3040.6, size 0.01.
func TestColdStartTwoSidedQuoting(t *testing.T) {
	c := NewCalculator()
	res := c.Compute(baseInputs())
	if res.Reject != RejectNone {
		t.Fatalf("unexpected reject: %v", res.Reject)
	}
	if math.Abs(res.HalfSpread-40.59) > 0.05 {
		t.Fatalf("half-spread = %v, want ~40.59", res.HalfSpread)
	}
	if math.Abs(res.Bid.Price-2959.4) > 0.15 {
		t.Fatalf("bid price = %v, want ~2959.4", res.Bid.Price)
	}
	if math.Abs(res.Ask.Price-3040.6) > 0.15 {
		t.Fatalf("ask price = %v, want ~3040.6", res.Ask.Price)
	}
	if res.Bid.Size != 0.01 || res.Ask.Size != 0.01 {
		t.Fatalf("expected size 0.01, got bid=%v ask=%v", res.Bid.Size, res.Ask.Size)
	}
}

func TestRejectsOnNonPositiveSigma(t *testing.T) {
	c := NewCalculator()
	in := baseInputs()
	in.Sigma = 0
	res := c.Compute(in)
	if res.Reject != RejectNonPositiveSigma {
		t.Fatalf("expected RejectNonPositiveSigma, got %v", res.Reject)
	}
	if res.Bid != nil || res.Ask != nil {
		t.Fatalf("expected no quotes on reject")
	}
}

func TestRejectsOnNonPositiveKappa(t *testing.T) {
	c := NewCalculator()
	in := baseInputs()
	in.Kappa = 0
	res := c.Compute(in)
	if res.Reject != RejectNonPositiveKappa {
		t.Fatalf("expected RejectNonPositiveKappa (kappa->0 means delta->infinity), got %v", res.Reject)
	}
}

func TestRejectsOnCrossedBook(t *testing.T) {
	c := NewCalculator()
	in := baseInputs()
	in.BestBid, in.BestAsk = 3001, 2999
	res := c.Compute(in)
	if res.Reject != RejectCrossedBook {
		t.Fatalf("expected RejectCrossedBook, got %v", res.Reject)
	}
}

func TestRejectsOnStaleness(t *testing.T) {
	c := NewCalculator()
	in := baseInputs()
	in.StalenessMs = 5000
	res := c.Compute(in)
	if res.Reject != RejectStale {
		t.Fatalf("expected RejectStale, got %v", res.Reject)
	}
}

func TestMinimumSpreadFloorAppliedSymmetrically(t *testing.T) {
	c := NewCalculator()
	in := baseInputs()
	in.Sigma = 0.0000001
	in.Kappa = 1000
	in.MinSpreadBps = 50 // 50bps floor dominates the near-zero AS spread
	res := c.Compute(in)
	if res.Reject != RejectNone {
		t.Fatalf("unexpected reject: %v", res.Reject)
	}
	floor := in.MinSpreadBps * in.Mid * 1e-4
	got := res.Ask.Price - res.Bid.Price
	if got < floor-0.2 {
		t.Fatalf("spread %v below floor %v", got, floor)
	}
}

func TestGenerationIncreasesOnEverySuccessfulCompute(t *testing.T) {
	c := NewCalculator()
	res1 := c.Compute(baseInputs())
	res2 := c.Compute(baseInputs())
	if res2.Bid.Generation <= res1.Bid.Generation {
		t.Fatalf("expected generation to increase: %d -> %d", res1.Bid.Generation, res2.Bid.Generation)
	}
}

func TestQuotesNeverCrossMid(t *testing.T) {
	c := NewCalculator()
	in := baseInputs()
	in.InventoryQ = 1000 // extreme inventory skew
	res := c.Compute(in)
	if res.Reject == RejectNone {
		if res.Bid.Price >= in.Mid || res.Ask.Price <= in.Mid {
			t.Fatalf("quotes crossed mid: bid=%v mid=%v ask=%v", res.Bid.Price, in.Mid, res.Ask.Price)
		}
	}
}
