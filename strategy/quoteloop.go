// Package strategy drives the periodic estimation-and-quote cycle: every
// spread_calc_interval it reads the historical window, refreshes the sigma
// and kappa estimates, runs the Avellaneda-Stoikov spread calculator, and
// publishes the resulting desired quotes into the shared bot state for the
// order manager to act on.
package strategy

import (
	"context"
	"sync"
	"time"

	"perpmm/botstate"
	"perpmm/history"
	"perpmm/infrastructure/logger"
	"perpmm/kappa"
	"perpmm/market"
	"perpmm/metrics"
	"perpmm/risk"
	"perpmm/strategy/asmm"
	"perpmm/volatility"
)

// QuoteLoopConfig bundles the strategy tunables the cycle consumes.
type QuoteLoopConfig struct {
	Gamma          float64
	TimeHorizonSec float64
	MinSpreadBps   float64
	NotionalUSD    float64
	Interval       time.Duration // spread_calc_interval
	KappaInterval  time.Duration // kappa re-fit cadence, default 5m
	MaxStaleMs     int64
}

// Staleness is the slice of feed.Ingestor the loop needs to decide whether
// the mid is too old to quote against.
type Staleness interface {
	Stale(now time.Time) bool
	LastKnownTs() time.Time
}

// SigmaSource is the slice of *volatility.Estimator the loop consumes.
type SigmaSource interface {
	EstimateWithOracle(ctx context.Context, w *history.Window, now time.Time, oracle *volatility.ExternalOracle) (volatility.Estimate, bool)
}

// QuoteLoop owns the sigma/kappa refresh state between ticks. The
// estimators themselves are pure; the loop carries the last accepted kappa
// so a rejected fit falls back to the prior value, and refuses to quote
// while no estimate has ever been accepted.
type QuoteLoop struct {
	Config  QuoteLoopConfig
	State   *botstate.State
	Window  *history.Window
	Book    *market.OrderBook
	Trading market.TradingConfig
	Vol     SigmaSource
	Oracle  *volatility.ExternalOracle
	KParams kappa.Params
	Calc    *asmm.Calculator
	Feed    Staleness
	Limits  *risk.LimitChecker
	Log     *logger.Logger

	mu           sync.Mutex
	sigma        float64
	hasSigma     bool
	kappaUSD     float64
	hasKappa     bool
	lastKappaFit time.Time
}

// SetConfig replaces the tunables live; the next tick sees the new values.
// This is the hot-reload entry point, so only Config moves under the mutex,
// never the wired collaborators.
func (l *QuoteLoop) SetConfig(cfg QuoteLoopConfig) {
	l.mu.Lock()
	l.Config = cfg
	l.mu.Unlock()
}

func (l *QuoteLoop) config() QuoteLoopConfig {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Config
}

// Run ticks at Config.Interval until ctx is cancelled. Estimator fits are
// CPU-bound; this goroutine is their dedicated worker, so nothing here ever
// runs while holding the bot-state lock.
func (l *QuoteLoop) Run(ctx context.Context) error {
	interval := l.config().Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Tick(ctx, time.Now())
		}
	}
}

// Tick runs one estimation-and-quote cycle. Exported so tests can drive it
// without the ticker.
func (l *QuoteLoop) Tick(ctx context.Context, now time.Time) {
	cfg := l.config()
	l.refreshSigma(ctx, now)
	l.refreshKappa(now, cfg)

	snap := l.State.Read()

	if !l.hasSigma || !l.hasKappa {
		l.State.ClearDesired()
		return
	}
	l.State.UpdateEstimates(l.sigma, l.kappaUSD, now)
	metrics.Sigma.Set(l.sigma)
	metrics.Kappa.Set(l.kappaUSD)

	res := l.Calc.Compute(asmm.Inputs{
		Mid:            snap.Mid,
		BestBid:        snap.BestBid,
		BestAsk:        snap.BestAsk,
		Sigma:          l.sigma,
		Kappa:          l.kappaUSD,
		Gamma:          cfg.Gamma,
		TimeHorizonSec: cfg.TimeHorizonSec,
		InventoryQ:     snap.InventoryQ,
		MinSpreadBps:   cfg.MinSpreadBps,
		StalenessMs:    l.stalenessMs(now, cfg),
		MaxStaleMs:     cfg.MaxStaleMs,
		Config:         l.Trading,
		NotionalUSD:    cfg.NotionalUSD,
	})
	if res.Reject != asmm.RejectNone {
		l.State.ClearDesired()
		if l.Log != nil {
			l.Log.LogRisk("quote_rejected", map[string]interface{}{
				"reason": string(res.Reject),
				"mid":    snap.Mid,
			})
		}
		return
	}

	bid, ask := res.Bid, res.Ask
	if l.Limits != nil {
		if bid != nil {
			if err := l.Limits.PreQuote(bid.Price, bid.Size, snap.InventoryQ); err != nil {
				l.logLimit("bid", err)
				bid = nil
			}
		}
		if ask != nil {
			if err := l.Limits.PreQuote(ask.Price, -ask.Size, snap.InventoryQ); err != nil {
				l.logLimit("ask", err)
				ask = nil
			}
		}
	}
	if bid == nil && ask == nil {
		l.State.ClearDesired()
		return
	}
	l.State.PublishDesired(bid, ask)
}

func (l *QuoteLoop) refreshSigma(ctx context.Context, now time.Time) {
	est, fellBack := l.Vol.EstimateWithOracle(ctx, l.Window, now, l.Oracle)
	if fellBack && l.Log != nil {
		l.Log.LogEstimator("sigma", "oracle_fallback", nil)
	}
	if est.Status != volatility.StatusOK {
		metrics.EstimatorRejectsTotal.WithLabelValues("sigma", string(est.Status)).Inc()
		if l.Log != nil {
			l.Log.LogEstimator("sigma", string(est.Status), nil)
		}
		return
	}
	l.sigma, l.hasSigma = est.Sigma, true
	metrics.SigmaRSquared.Set(est.RSquared)
}

// refreshKappa re-fits on its own, slower cadence: the OLS over the delta
// grid is far more expensive than one spread evaluation. A rejected fit
// keeps the prior accepted kappa; with no prior, quoting stays disabled.
func (l *QuoteLoop) refreshKappa(now time.Time, cfg QuoteLoopConfig) {
	interval := cfg.KappaInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if l.hasKappa && now.Sub(l.lastKappaFit) < interval {
		return
	}
	l.lastKappaFit = now

	est := kappa.Run(l.Window, l.Book, l.Trading, l.KParams, now)
	if est.Status != kappa.StatusOK || !est.HasAcceptableCI() {
		status := string(est.Status)
		if est.Status == kappa.StatusOK {
			status = "wide_ci"
		}
		metrics.EstimatorRejectsTotal.WithLabelValues("kappa", status).Inc()
		if l.Log != nil {
			l.Log.LogEstimator("kappa", status, map[string]interface{}{
				"levels": est.NumLevels,
				"r2":     est.RSquared,
			})
		}
		return
	}
	l.kappaUSD, l.hasKappa = est.Kappa, true
	metrics.KappaRSquared.Set(est.RSquared)
}

func (l *QuoteLoop) stalenessMs(now time.Time, cfg QuoteLoopConfig) int64 {
	if l.Feed == nil {
		return 0
	}
	last := l.Feed.LastKnownTs()
	if last.IsZero() {
		return cfg.MaxStaleMs + 1
	}
	return now.Sub(last).Milliseconds()
}

func (l *QuoteLoop) logLimit(side string, err error) {
	if l.Log == nil {
		return
	}
	l.Log.LogRisk("limit_suppressed_quote", map[string]interface{}{
		"side":  side,
		"error": err.Error(),
	})
}
