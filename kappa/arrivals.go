package kappa

import (
	"time"

	"perpmm/history"
	"perpmm/market"
)

// collectArrivalTimes observes, for each top-of-book sample, how long it
// takes cumulative trade volume beyond depth delta (bid and/or ask,
// combined by default) to reach virtualSize within horizon. Each observed
// fill contributes one arrival time (seconds); snapshots with no
// qualifying trade within horizon are censored and contribute nothing.
//
// The window only retains a mid-price scalar per top-of-book sample (not
// full per-level depth), so queue-ahead is treated as zero here and
// required_volume collapses to virtualSize.
func collectArrivalTimes(tob []history.TopOfBookSample, trades []market.Trade, typicalMid, delta float64, cfg market.TradingConfig, horizon time.Duration, virtualSize float64) []float64 {
	var out []float64
	for _, sample := range tob {
		windowEnd := sample.Ts.Add(horizon)

		if d := arrivalFor(trades, sample, windowEnd, delta, virtualSize, market.AggressorSell); d >= 0 {
			out = append(out, d)
		}
		if d := arrivalFor(trades, sample, windowEnd, delta, virtualSize, market.AggressorBuy); d >= 0 {
			out = append(out, d)
		}
	}
	return out
}

// arrivalFor scans trades for cumulative volume on the given aggressor side
// trading through the level mid∓delta, returning the elapsed seconds to
// reach virtualSize, or -1 if censored.
func arrivalFor(trades []market.Trade, sample history.TopOfBookSample, windowEnd time.Time, delta, virtualSize float64, side market.AggressorSide) float64 {
	var cum float64
	sampleMs := sample.Ts.UnixMilli()
	endMs := windowEnd.UnixMilli()

	var levelCheck func(price float64) bool
	if side == market.AggressorSell {
		// A sell aggressor trading at or below mid-delta consumes bid depth.
		levelCheck = func(price float64) bool { return price <= sample.Mid-delta }
	} else {
		levelCheck = func(price float64) bool { return price >= sample.Mid+delta }
	}

	for _, tr := range trades {
		if tr.TsMs < sampleMs {
			continue
		}
		if tr.TsMs > endMs {
			break
		}
		if tr.Side != side || !levelCheck(tr.Price) {
			continue
		}
		cum += tr.Qty
		if cum >= virtualSize {
			return float64(tr.TsMs-sampleMs) / 1000.0
		}
	}
	return -1
}
