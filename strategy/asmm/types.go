// Package asmm implements the Avellaneda-Stoikov reservation-price and
// half-spread calculator: the component that turns (mid, sigma, kappa,
// gamma, inventory) into the pair of quotes the order manager tries to keep
// live.
package asmm

import "perpmm/market"

// Side identifies which side of the book a Quote targets.
type Side string

const (
	Bid Side = "bid"
	Ask Side = "ask"
)

// Quote is a desired order: it exists only in BotState until the order
// manager places it and receives an order_id back from the venue.
type Quote struct {
	Side            Side
	Price           float64
	Size            float64
	DesiredLifetime int64 // ms
	Generation      uint64
}

// Inputs bundles the live market/estimator state SpreadCalculator consumes
// on each invocation.
type Inputs struct {
	Mid             float64
	BestBid         float64
	BestAsk         float64
	Sigma           float64
	Kappa           float64
	Gamma           float64
	TimeHorizonSec  float64
	InventoryQ      float64
	MinSpreadBps    float64
	StalenessMs     int64
	MaxStaleMs      int64
	Config          market.TradingConfig
	NotionalUSD     float64
}

// RejectReason explains why SpreadCalculator cleared the desired quotes
// instead of publishing a new pair.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectNonPositiveSigma RejectReason = "sigma_non_positive"
	RejectNonPositiveKappa RejectReason = "kappa_non_positive"
	RejectNonPositiveMid   RejectReason = "mid_non_positive"
	RejectCrossedBook      RejectReason = "crossed_book"
	RejectCrossedQuotes    RejectReason = "crossed_quotes"
	RejectStale            RejectReason = "stale"
	RejectBelowMinNotional RejectReason = "below_min_notional"
)

// Result is SpreadCalculator's output: either a fresh pair of quotes, or a
// rejection reason with the desired quotes left empty (the caller must
// clear BotState.desired_{bid,ask} on any non-empty Reject).
type Result struct {
	Bid            *Quote
	Ask            *Quote
	ReservationPrice float64
	HalfSpread     float64
	Reject         RejectReason
}
