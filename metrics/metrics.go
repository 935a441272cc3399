// Package metrics exposes the Prometheus gauges and counters the engine's
// components update as they run: market data, estimator outputs, spread
// calculator output, order lifecycle, fills/rejects, and venue connectivity
// health. Served over promhttp on the configured listen address.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Market data.
	Mid           = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_mid_price", Help: "current mid price"})
	BestBid       = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_best_bid", Help: "current best bid"})
	BestAsk       = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_best_ask", Help: "current best ask"})
	BookStale     = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_book_stale", Help: "1 if mid is REST-sourced or stale, 0 otherwise"})
	FeedGapsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "mm_feed_gaps_total", Help: "sequence gaps detected, forcing a resync"})

	// Estimator outputs.
	Sigma                 = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_sigma", Help: "per-second volatility estimate"})
	Kappa                 = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_kappa", Help: "order-flow intensity decay rate, 1/USD"})
	SigmaRSquared         = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_sigma_r_squared", Help: "volatility fit r-squared"})
	KappaRSquared         = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_kappa_r_squared", Help: "kappa OLS fit r-squared"})
	EstimatorRejectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_estimator_rejects_total", Help: "estimator calls that returned a non-OK status",
	}, []string{"estimator", "status"})

	// Spread calculator output.
	ReservationPrice      = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_reservation_price", Help: "Avellaneda-Stoikov reservation price"})
	HalfSpread            = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_half_spread", Help: "half-spread distance from reservation price"})
	QuotesGeneratedTotal  = promauto.NewCounter(prometheus.CounterOpts{Name: "mm_quotes_generated_total", Help: "successful spread calculator runs"})
	QuotesRejectedTotal   = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_quotes_rejected_total", Help: "spread calculator runs that rejected instead of publishing quotes",
	}, []string{"reason"})

	// Inventory / PnL.
	InventoryQ = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_inventory_q", Help: "signed base-asset inventory"})
	EquityUSD  = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_equity_usd", Help: "mark-to-market equity in USD"})
	PnLUSD     = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_pnl_usd", Help: "equity minus the initial-equity anchor"})

	// Order lifecycle.
	OrdersPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_placed_total", Help: "orders successfully placed",
	}, []string{"side"})
	OrdersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_cancelled_total", Help: "orders cancelled",
	}, []string{"side"})
	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_rejected_total", Help: "orders rejected by the venue",
	}, []string{"side"})
	FillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_fills_total", Help: "fill events consumed by FillHandler",
	}, []string{"side"})
	ReconcileConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_reconcile_conflicts_total", Help: "local live orders cleared because the venue no longer listed them",
	})

	// Ping-pong / risk state.
	PingPongSwitchesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "mm_ping_pong_switches_total", Help: "ping-pong mode flips"})
	RiskState             = promauto.NewGauge(prometheus.GaugeOpts{Name: "mm_risk_state", Help: "0=normal, 1=auth_halt, 2=fatal"})

	// Venue connectivity.
	WSReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "mm_ws_reconnects_total", Help: "websocket reconnect attempts"})
	RESTErrorsTotal   = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_rest_errors_total", Help: "REST calls that returned a non-2xx/network error",
	}, []string{"endpoint", "kind"})
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "mm_sweeps_total", Help: "emergency/shutdown order sweeps issued"})
)

// StartMetricsServer exposes /metrics on addr via promhttp, backgrounded so
// callers don't block startup on ListenAndServe.
func StartMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}

// UpdateStrategyMetrics publishes one SpreadCalculator result.
func UpdateStrategyMetrics(reservationPrice, halfSpread float64) {
	ReservationPrice.Set(reservationPrice)
	HalfSpread.Set(halfSpread)
}

// IncrementQuotesGenerated records one successful (non-reject) spread
// calculator run.
func IncrementQuotesGenerated() {
	QuotesGeneratedTotal.Inc()
}

// RecordQuoteReject records a spread calculator run that cleared the
// desired quotes instead of publishing them.
func RecordQuoteReject(reason string) {
	QuotesRejectedTotal.WithLabelValues(reason).Inc()
}
