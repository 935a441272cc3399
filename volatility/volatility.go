// Package volatility estimates sigma, the per-second standard deviation of
// log returns of mid, by one of four methods selected by configuration.
package volatility

import (
	"math"
	"time"

	"perpmm/history"
)

// Method selects the estimation algorithm.
type Method string

const (
	MethodSimple   Method = "simple"
	MethodGarch    Method = "garch"
	MethodGarchT   Method = "garch_t"
	MethodExternal Method = "external"
)

// Status tags the outcome of an estimation attempt with explicit variants
// callers must handle.
type Status string

const (
	StatusOK           Status = "ok"
	StatusInsufficient Status = "insufficient"
	StatusPoorFit      Status = "poor_fit"
	StatusTimeout      Status = "timeout"
)

// Estimate is the result of one estimation call: sigma in per-second return
// units, fit diagnostics, and a status describing whether sigma is usable.
type Estimate struct {
	Sigma     float64
	RSquared  float64
	Status    Status
	Params    *GarchParams
	ParamsT   *GarchParamsStudentT
}

// Estimator is pure and stateless between calls: each Estimate call takes a
// fresh window read and returns a self-contained result.
type Estimator struct {
	method     Method
	minSamples int
}

// New builds an Estimator for the given method. minSamples is the minimum
// number of log returns required before any method other than Insufficient
// can be returned (default 30).
func New(method Method, minSamples int) *Estimator {
	if minSamples <= 0 {
		minSamples = 30
	}
	return &Estimator{method: method, minSamples: minSamples}
}

// Estimate computes sigma from the window's top-of-book samples as of now.
func (e *Estimator) Estimate(w *history.Window, now time.Time) Estimate {
	samples := w.TopOfBook(now)
	if len(samples) < 2 {
		return Estimate{Status: StatusInsufficient}
	}

	returns := logReturns(samples)
	intervals := sampleIntervals(samples)
	if len(returns) < e.minSamples {
		return Estimate{Status: StatusInsufficient}
	}

	switch e.method {
	case MethodGarch:
		return e.estimateGarch(returns, intervals)
	case MethodGarchT:
		return e.estimateGarchT(returns, intervals)
	case MethodExternal:
		// The external oracle itself is run by ExternalOracle /
		// EstimateWithOracle (external.go); Estimate alone has no oracle,
		// so MethodExternal here computes the GARCH-t fallback.
		return e.estimateGarchT(returns, intervals)
	default:
		return e.estimateSimple(returns, intervals)
	}
}

// logReturns and sampleIntervals share the returns/dt extraction between
// Estimate and EstimateWithOracle so the external-oracle path sees exactly
// the same series the in-process estimators do.
func logReturns(samples []history.TopOfBookSample) []float64 {
	returns := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		p0, p1 := samples[i-1].Mid, samples[i].Mid
		if p0 <= 0 || p1 <= 0 {
			continue
		}
		dt := samples[i].Ts.Sub(samples[i-1].Ts).Seconds()
		if dt <= 0 {
			continue
		}
		returns = append(returns, math.Log(p1/p0))
	}
	return returns
}

func sampleIntervals(samples []history.TopOfBookSample) []float64 {
	intervals := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		p0, p1 := samples[i-1].Mid, samples[i].Mid
		if p0 <= 0 || p1 <= 0 {
			continue
		}
		dt := samples[i].Ts.Sub(samples[i-1].Ts).Seconds()
		if dt <= 0 {
			continue
		}
		intervals = append(intervals, dt)
	}
	return intervals
}

// estimateSimple computes sample variance (N-1 denominator) of log returns
// and scales it from the average sample interval to per-second units.
func (e *Estimator) estimateSimple(returns, intervals []float64) Estimate {
	n := float64(len(returns))
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= n

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	variance := ss / (n - 1)

	avgInterval := 0.0
	for _, dt := range intervals {
		avgInterval += dt
	}
	avgInterval /= float64(len(intervals))
	if avgInterval <= 0 {
		return Estimate{Status: StatusInsufficient}
	}

	// variance accumulated over avgInterval seconds; scale to a 1s variance.
	perSecondVariance := variance / avgInterval
	if perSecondVariance < 0 {
		perSecondVariance = 0
	}
	return Estimate{Sigma: math.Sqrt(perSecondVariance), RSquared: 1, Status: StatusOK}
}
