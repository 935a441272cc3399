// Package market holds the static market identity, trading configuration,
// order book, and trade types shared by every estimator and the order
// manager.
package market

import (
	"fmt"
	"math"
)

// MarketId identifies a perpetual market, e.g. "ETH-USD".
type MarketId string

// TradingConfig is the static per-market configuration fetched once at
// startup and treated as immutable for the lifetime of the process.
type TradingConfig struct {
	TickSize             float64
	SizeIncrement        float64
	MinNotional          float64
	CollateralResolution int
	SyntheticResolution  int
	TakerFeeRate         float64
}

// RoundDownTick rounds p down to the nearest multiple of TickSize.
func (c TradingConfig) RoundDownTick(p float64) float64 {
	return roundToTick(p, c.TickSize, false)
}

// RoundUpTick rounds p up to the nearest multiple of TickSize.
func (c TradingConfig) RoundUpTick(p float64) float64 {
	return roundToTick(p, c.TickSize, true)
}

// epsilon absorbs float64 division noise (e.g. 100.27/0.1) before rounding.
const tickEpsilon = 1e-8

func roundToTick(p, tick float64, up bool) float64 {
	if tick <= 0 {
		return p
	}
	n := p / tick
	q := math.Floor(n + tickEpsilon)
	if up {
		q = math.Ceil(n - tickEpsilon)
	}
	// q*tick carries float64 product noise (1003*0.1 = 100.30000000000001);
	// snapping to 1e-9 returns the exact decimal multiple of the tick.
	return math.Round(q*tick*1e9) / 1e9
}

// RoundDownSize rounds qty down to the nearest multiple of SizeIncrement.
func (c TradingConfig) RoundDownSize(qty float64) float64 {
	if c.SizeIncrement <= 0 {
		return qty
	}
	return math.Floor(qty/c.SizeIncrement+tickEpsilon) * c.SizeIncrement
}

func (m MarketId) String() string { return string(m) }

// ErrInvalidMarket is returned by venue lookups for an unconfigured market.
type ErrInvalidMarket struct{ Market MarketId }

func (e ErrInvalidMarket) Error() string {
	return fmt.Sprintf("invalid market: %s", e.Market)
}
