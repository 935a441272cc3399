package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpdateStrategyMetrics(t *testing.T) {
	ReservationPrice.Set(0)
	HalfSpread.Set(0)

	UpdateStrategyMetrics(2999.8, 40.59)

	if got := testutil.ToFloat64(ReservationPrice); got != 2999.8 {
		t.Errorf("ReservationPrice = %f, want 2999.8", got)
	}
	if got := testutil.ToFloat64(HalfSpread); got != 40.59 {
		t.Errorf("HalfSpread = %f, want 40.59", got)
	}
}

func TestIncrementQuotesGenerated(t *testing.T) {
	before := testutil.ToFloat64(QuotesGeneratedTotal)
	IncrementQuotesGenerated()
	if got := testutil.ToFloat64(QuotesGeneratedTotal); got != before+1 {
		t.Errorf("QuotesGeneratedTotal = %f, want %f", got, before+1)
	}
}

func TestRecordQuoteReject(t *testing.T) {
	QuotesRejectedTotal.Reset()
	RecordQuoteReject("kappa_non_positive")
	RecordQuoteReject("kappa_non_positive")
	RecordQuoteReject("stale")

	if got := testutil.ToFloat64(QuotesRejectedTotal.WithLabelValues("kappa_non_positive")); got != 2 {
		t.Errorf("QuotesRejectedTotal[kappa_non_positive] = %f, want 2", got)
	}
	if got := testutil.ToFloat64(QuotesRejectedTotal.WithLabelValues("stale")); got != 1 {
		t.Errorf("QuotesRejectedTotal[stale] = %f, want 1", got)
	}
}

func TestOrderLifecycleCounters(t *testing.T) {
	OrdersPlacedTotal.Reset()
	OrdersCancelledTotal.Reset()
	FillsTotal.Reset()

	OrdersPlacedTotal.WithLabelValues("bid").Inc()
	OrdersPlacedTotal.WithLabelValues("ask").Inc()
	OrdersCancelledTotal.WithLabelValues("bid").Inc()
	FillsTotal.WithLabelValues("ask").Inc()

	if got := testutil.ToFloat64(OrdersPlacedTotal.WithLabelValues("bid")); got != 1 {
		t.Errorf("OrdersPlacedTotal[bid] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(OrdersPlacedTotal.WithLabelValues("ask")); got != 1 {
		t.Errorf("OrdersPlacedTotal[ask] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(OrdersCancelledTotal.WithLabelValues("bid")); got != 1 {
		t.Errorf("OrdersCancelledTotal[bid] = %f, want 1", got)
	}
	if got := testutil.ToFloat64(FillsTotal.WithLabelValues("ask")); got != 1 {
		t.Errorf("FillsTotal[ask] = %f, want 1", got)
	}
}
