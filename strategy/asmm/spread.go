package asmm

import (
	"math"

	"perpmm/metrics"
)

// Calculator computes the Avellaneda-Stoikov reservation price and
// half-spread and turns them into a rounded, sized pair of quotes. It is
// invoked on a timer (spread_calc_interval_sec) and on material estimator
// updates.
type Calculator struct {
	generation uint64
}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute runs one quoting cycle: half-spread, reservation price,
// minimum-spread floor, tick rounding, size clamp, and the full reject
// checklist.
func (c *Calculator) Compute(in Inputs) Result {
	if in.Mid <= 0 {
		return reject(RejectNonPositiveMid)
	}
	if in.Sigma <= 0 {
		return reject(RejectNonPositiveSigma)
	}
	if in.Kappa <= 0 {
		return reject(RejectNonPositiveKappa)
	}
	if in.BestBid > 0 && in.BestAsk > 0 && in.BestBid >= in.BestAsk {
		return reject(RejectCrossedBook)
	}
	if in.StalenessMs > in.MaxStaleMs && in.MaxStaleMs > 0 {
		return reject(RejectStale)
	}

	gamma := in.Gamma
	sigma2 := in.Sigma * in.Sigma
	T := in.TimeHorizonSec

	halfSpread := (1.0/gamma)*math.Log(1+gamma/in.Kappa) + 0.5*gamma*sigma2*T
	reservation := in.Mid - in.InventoryQ*gamma*sigma2*T

	rawBid := reservation - halfSpread
	rawAsk := reservation + halfSpread

	minSpread := in.MinSpreadBps * in.Mid * 1e-4
	if (rawAsk - rawBid) < minSpread {
		mid := (rawAsk + rawBid) / 2
		rawBid = mid - minSpread/2
		rawAsk = mid + minSpread/2
	}

	bidPrice := in.Config.RoundDownTick(rawBid)
	askPrice := in.Config.RoundUpTick(rawAsk)

	if bidPrice >= in.Mid || askPrice <= in.Mid {
		metrics.RecordQuoteReject(string(RejectCrossedQuotes))
		return Result{Reject: RejectCrossedQuotes, ReservationPrice: reservation, HalfSpread: halfSpread}
	}

	size := in.Config.RoundDownSize(in.NotionalUSD / in.Mid)
	if in.Config.MinNotional > 0 && size*in.Mid < in.Config.MinNotional {
		// Not enough notional to meet the venue's floor at this mid;
		// reject rather than post an order the venue will bounce.
		metrics.RecordQuoteReject(string(RejectBelowMinNotional))
		return Result{Reject: RejectBelowMinNotional, ReservationPrice: reservation, HalfSpread: halfSpread}
	}

	c.generation++
	metrics.UpdateStrategyMetrics(reservation, halfSpread)
	metrics.IncrementQuotesGenerated()
	return Result{
		Bid:              &Quote{Side: Bid, Price: bidPrice, Size: size, Generation: c.generation},
		Ask:              &Quote{Side: Ask, Price: askPrice, Size: size, Generation: c.generation},
		ReservationPrice: reservation,
		HalfSpread:       halfSpread,
		Reject:           RejectNone,
	}
}

// Generation returns the calculator's current monotone generation counter,
// bumped on every successful Compute.
func (c *Calculator) Generation() uint64 { return c.generation }

func reject(reason RejectReason) Result {
	metrics.RecordQuoteReject(string(reason))
	return Result{Reject: reason}
}
