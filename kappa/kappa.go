// Package kappa estimates the order-flow intensity decay rate kappa (in
// 1/USD) used by the Avellaneda-Stoikov half-spread formula, from
// depth-conditioned fill observations over the historical window.
package kappa

import (
	"math"
	"time"

	"perpmm/history"
	"perpmm/market"
)

// Method selects the estimation algorithm.
type Method string

const (
	MethodDepth   Method = "depth"
	MethodVirtual Method = "virtual"
	MethodSimple  Method = "simple" // diagnostics only, never production
)

// Status mirrors volatility.Status: explicit outcomes instead of
// exception-style fallback.
type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient"
	StatusPoorFit      Status = "poor_fit"
)

// Estimate is the outcome of one kappa fit.
type Estimate struct {
	Kappa     float64 // 1/USD
	KappaTick float64 // 1/tick, pre unit-conversion
	A         float64
	CILow     float64
	CIHigh    float64
	RSquared  float64
	NumLevels int
	Status    Status
}

// HasAcceptableCI reports whether the 95% CI width is no wider than the
// estimate itself; a wider interval rejects the fit.
func (e Estimate) HasAcceptableCI() bool {
	width := e.CIHigh - e.CILow
	return width <= e.Kappa
}

const (
	numGridLevels      = 18
	minSamplesPerLevel = 5
	minValidLevels     = 3
	zScore95           = 1.96
)

// Params configures a single estimation call.
type Params struct {
	Method             Method
	MaxHorizon         time.Duration // observation window per snapshot, default 1s scaled by context
	VirtualSize        float64       // queue depth added on top of resting size, default 0.1 base units
	MinSamplesPerLevel int
}

// DefaultParams returns the depth method with a 1s observation horizon and
// 0.1 virtual queue size.
func DefaultParams() Params {
	return Params{
		Method:             MethodDepth,
		MaxHorizon:         time.Second,
		VirtualSize:        0.1,
		MinSamplesPerLevel: minSamplesPerLevel,
	}
}

// snapshotSample is a historical order-book state paired with its capture
// time, synthesized from top-of-book mid samples plus the live book's depth
// at the time of the call (the window does not retain full depth history;
// the estimator reads the live book for queue-ahead lookups and the window
// for trade arrival times).
type snapshotSample struct {
	ts  time.Time
	mid float64
}

// Run computes kappa using historical trades in w as fill observations
// against a geometric delta grid anchored on book's current tick size and a
// typical mid price. The depth method fits ln lambda(delta) by OLS; the
// virtual method fits lambda(delta) = A*exp(-kappa*delta) by non-linear
// least squares on the same observations. Callers must fall back to the
// previous accepted estimate whenever the returned Status is not StatusOK;
// Run itself is stateless and holds no memory of past estimates.
func Run(w *history.Window, book *market.OrderBook, cfg market.TradingConfig, params Params, now time.Time) Estimate {
	mid := book.Mid()
	if mid <= 0 || cfg.TickSize <= 0 {
		return Estimate{Status: StatusInsufficient}
	}
	if params.Method == MethodSimple {
		return estimateSimpleDiagnostic(w, now)
	}

	grid := generateDeltaGrid(mid, cfg.TickSize)
	tob := w.TopOfBook(now)
	trades := w.Trades(now)
	if len(tob) < 2 || len(trades) == 0 {
		return Estimate{Status: StatusInsufficient}
	}

	minSamples := params.MinSamplesPerLevel
	if minSamples <= 0 {
		minSamples = minSamplesPerLevel
	}
	horizon := params.MaxHorizon
	if horizon <= 0 {
		horizon = time.Second
	}

	deltaTicks := make([]float64, 0, len(grid))
	intensities := make([]float64, 0, len(grid))
	logIntensity := make([]float64, 0, len(grid))

	for _, deltaUSD := range grid {
		arrivalTimes := collectArrivalTimes(tob, trades, mid, deltaUSD, cfg, horizon, params.VirtualSize)
		if len(arrivalTimes) < minSamples {
			continue
		}
		meanArrival := mean(arrivalTimes)
		if meanArrival <= 0 {
			continue
		}
		intensity := 1.0 / meanArrival
		if intensity <= 0 {
			continue
		}
		deltaTicks = append(deltaTicks, deltaUSD/cfg.TickSize)
		intensities = append(intensities, intensity)
		logIntensity = append(logIntensity, math.Log(intensity))
	}

	if len(deltaTicks) < minValidLevels {
		return Estimate{Status: StatusInsufficient, NumLevels: len(deltaTicks)}
	}

	if params.Method == MethodVirtual {
		return estimateVirtual(deltaTicks, intensities, logIntensity, cfg)
	}

	reg, ok := olsRegression(deltaTicks, logIntensity)
	if !ok {
		return Estimate{Status: StatusInsufficient, NumLevels: len(deltaTicks)}
	}

	kappaTicks := -reg.Beta1
	if kappaTicks <= 0 {
		return Estimate{Status: StatusPoorFit, NumLevels: len(deltaTicks), RSquared: reg.RSquared}
	}
	kappaUSD := kappaTicks / cfg.TickSize
	aHat := math.Exp(reg.Beta0)

	seKUSD := reg.SEBeta1 / cfg.TickSize
	ciLow := kappaUSD - zScore95*seKUSD
	ciHigh := kappaUSD + zScore95*seKUSD

	status := StatusOK
	if reg.RSquared < 0.5 {
		status = StatusPoorFit
	}

	est := Estimate{
		Kappa:     kappaUSD,
		KappaTick: kappaTicks,
		A:         aHat,
		CILow:     ciLow,
		CIHigh:    ciHigh,
		RSquared:  reg.RSquared,
		NumLevels: len(deltaTicks),
		Status:    status,
	}
	if status == StatusOK && !est.HasAcceptableCI() {
		est.Status = StatusPoorFit
	}
	return est
}

// estimateVirtual fits lambda(delta) = A*exp(-kappa*delta) directly in
// intensity space by Gauss-Newton, seeded from the log-linear OLS fit. The
// hypothetical-order arrival observations are the same as the depth method's;
// only the fitting objective differs (non-linear least squares on raw
// intensities rather than OLS on their logs). Acceptance rules match the
// depth path: R^2 >= 0.5 and CI width <= kappa.
func estimateVirtual(deltaTicks, intensities, logIntensity []float64, cfg market.TradingConfig) Estimate {
	seed, ok := olsRegression(deltaTicks, logIntensity)
	if !ok {
		return Estimate{Status: StatusInsufficient, NumLevels: len(deltaTicks)}
	}
	fit, ok := gaussNewtonExpFit(deltaTicks, intensities, math.Exp(seed.Beta0), -seed.Beta1)
	if !ok {
		return Estimate{Status: StatusPoorFit, NumLevels: len(deltaTicks)}
	}

	kappaUSD := fit.Kappa / cfg.TickSize
	seKUSD := fit.SEKappa / cfg.TickSize
	status := StatusOK
	if fit.RSquared < 0.5 {
		status = StatusPoorFit
	}

	est := Estimate{
		Kappa:     kappaUSD,
		KappaTick: fit.Kappa,
		A:         fit.A,
		CILow:     kappaUSD - zScore95*seKUSD,
		CIHigh:    kappaUSD + zScore95*seKUSD,
		RSquared:  fit.RSquared,
		NumLevels: len(deltaTicks),
		Status:    status,
	}
	if status == StatusOK && !est.HasAcceptableCI() {
		est.Status = StatusPoorFit
	}
	return est
}

// estimateSimpleDiagnostic counts trades/sec over the window. The units
// are wrong for the half-spread formula, so it is excluded from the
// production selector; it only ever returns diagnostics-tagged output so a
// caller cannot accidentally feed it to the spread calculator.
func estimateSimpleDiagnostic(w *history.Window, now time.Time) Estimate {
	trades := w.Trades(now)
	if len(trades) < 2 {
		return Estimate{Status: StatusInsufficient}
	}
	span := float64(trades[len(trades)-1].TsMs-trades[0].TsMs) / 1000.0
	if span <= 0 {
		return Estimate{Status: StatusInsufficient}
	}
	rate := float64(len(trades)) / span
	return Estimate{Kappa: rate, Status: StatusPoorFit, NumLevels: 0} // never OK: diagnostics only
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}
