package kappa

import (
	"math"
	"testing"
	"time"

	"perpmm/history"
	"perpmm/market"
)

func TestGenerateDeltaGridGeometricAndBounds(t *testing.T) {
	grid := generateDeltaGrid(3000.0, 0.1)
	if len(grid) != numGridLevels {
		t.Fatalf("expected %d levels, got %d", numGridLevels, len(grid))
	}
	if grid[0] < 0.1-1e-9 {
		t.Fatalf("first level should be ~1 tick, got %v", grid[0])
	}
	maxExpected := math.Floor(0.01*3000.0/0.1) * 0.1
	if math.Abs(grid[len(grid)-1]-maxExpected) > 1e-6 {
		t.Fatalf("last level = %v, want ~%v", grid[len(grid)-1], maxExpected)
	}
	// Geometric: ratio between consecutive levels should be constant.
	r1 := grid[1] / grid[0]
	r2 := grid[2] / grid[1]
	if math.Abs(r1-r2) > 1e-6 {
		t.Fatalf("grid spacing not geometric: r1=%v r2=%v", r1, r2)
	}
}

func TestOLSRegressionSimpleLine(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	reg, ok := olsRegression(x, y)
	if !ok {
		t.Fatalf("expected regression to succeed")
	}
	if math.Abs(reg.Beta1-2.0) > 1e-6 {
		t.Fatalf("beta1 = %v, want 2.0", reg.Beta1)
	}
	if math.Abs(reg.Beta0) > 1e-6 {
		t.Fatalf("beta0 = %v, want 0", reg.Beta0)
	}
	if reg.RSquared < 0.999 {
		t.Fatalf("expected near-perfect fit, got R^2=%v", reg.RSquared)
	}
}

func TestOLSRegressionRequiresThreePoints(t *testing.T) {
	_, ok := olsRegression([]float64{1, 2}, []float64{1, 2})
	if ok {
		t.Fatalf("expected failure with n<3")
	}
}

func TestGaussNewtonExpFitRecoversExactDecay(t *testing.T) {
	wantA, wantK := 5.0, 0.3
	deltas := []float64{1, 2, 4, 8, 16, 32}
	ys := make([]float64, len(deltas))
	logs := make([]float64, len(deltas))
	for i, d := range deltas {
		ys[i] = wantA * math.Exp(-wantK*d)
		logs[i] = math.Log(ys[i])
	}
	// Seed the way estimateVirtual does: from the log-linear OLS fit.
	seed, ok := olsRegression(deltas, logs)
	if !ok {
		t.Fatalf("seed regression failed")
	}
	fit, ok := gaussNewtonExpFit(deltas, ys, math.Exp(seed.Beta0), -seed.Beta1)
	if !ok {
		t.Fatalf("expected fit to succeed")
	}
	if math.Abs(fit.Kappa-wantK) > 1e-6 {
		t.Fatalf("kappa = %v, want %v", fit.Kappa, wantK)
	}
	if math.Abs(fit.A-wantA) > 1e-6 {
		t.Fatalf("A = %v, want %v", fit.A, wantA)
	}
	if fit.RSquared < 0.999 {
		t.Fatalf("expected near-perfect fit, got R^2=%v", fit.RSquared)
	}
}

func TestGaussNewtonExpFitRejectsDegenerateInput(t *testing.T) {
	if _, ok := gaussNewtonExpFit([]float64{1, 2}, []float64{1, 0.5}, 1, 0.1); ok {
		t.Fatalf("expected failure with n<3")
	}
}

func TestEstimateVirtualMatchesGeneratingKappa(t *testing.T) {
	cfg := market.TradingConfig{TickSize: 0.1}
	wantKTick := 0.05
	deltas := []float64{1, 2, 4, 8, 16, 32, 64}
	intensities := make([]float64, len(deltas))
	logs := make([]float64, len(deltas))
	for i, d := range deltas {
		intensities[i] = 2.0 * math.Exp(-wantKTick*d)
		logs[i] = math.Log(intensities[i])
	}
	est := estimateVirtual(deltas, intensities, logs, cfg)
	if est.Status != StatusOK {
		t.Fatalf("expected OK, got %v", est.Status)
	}
	if math.Abs(est.KappaTick-wantKTick) > 1e-6 {
		t.Fatalf("kappa_tick = %v, want %v", est.KappaTick, wantKTick)
	}
	if math.Abs(est.Kappa-wantKTick/cfg.TickSize) > 1e-5 {
		t.Fatalf("kappa_usd = %v, want %v", est.Kappa, wantKTick/cfg.TickSize)
	}
}

func TestRunInsufficientWithEmptyWindow(t *testing.T) {
	w := history.New(time.Hour)
	book := market.NewOrderBook()
	book.ApplySnapshot([]market.Level{{Price: 2999.9, Size: 1}}, []market.Level{{Price: 3000.1, Size: 1}}, 1, time.Now())
	cfg := market.TradingConfig{TickSize: 0.1}
	est := Run(w, book, cfg, DefaultParams(), time.Now())
	if est.Status != StatusInsufficient {
		t.Fatalf("expected Insufficient with no trades, got %v", est.Status)
	}
}

func TestSimpleMethodNeverReturnsOK(t *testing.T) {
	w := history.New(time.Hour)
	now := time.Now()
	for i := 0; i < 10; i++ {
		ts := now.Add(time.Duration(i) * time.Second)
		w.AddTrade(market.Trade{Price: 100, Qty: 1, TsMs: ts.UnixMilli(), TradeID: string(rune('a' + i))}, ts)
	}
	est := estimateSimpleDiagnostic(w, now.Add(10*time.Second))
	if est.Status == StatusOK {
		t.Fatalf("simple counting method must never be marked OK for production use")
	}
}
