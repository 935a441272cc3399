// Package risk enforces the two limits the quoting loop honors: a
// per-order notional cap and an inventory-skew cap on the signed base
// position a fill would produce.
package risk

import (
	"errors"
	"fmt"
)

var (
	ErrNotionalExceed = errors.New("order notional exceed")
	ErrSkewExceed     = errors.New("inventory skew exceed")
)

// Limits configures the checker. A zero value disables that limit.
type Limits struct {
	// MaxOrderNotionalUSD caps price*qty of any single quote.
	MaxOrderNotionalUSD float64
	// MaxInventorySkew caps |q + deltaQty| in base units.
	MaxInventorySkew float64
}

// LimitChecker validates a prospective quote against Limits.
type LimitChecker struct {
	cfg   Limits
	clock Clock
}

func NewLimitChecker(cfg Limits) *LimitChecker {
	return &LimitChecker{cfg: cfg, clock: NowUTC}
}

// PreQuote checks one side's prospective quote before it is published as a
// desired quote. deltaQty is signed (positive for a bid, negative for an
// ask); inventoryQ is the current signed position.
func (lc *LimitChecker) PreQuote(price, deltaQty, inventoryQ float64) error {
	notional := price * abs(deltaQty)
	if lc.cfg.MaxOrderNotionalUSD > 0 && notional > lc.cfg.MaxOrderNotionalUSD {
		return fmt.Errorf("%w: %.2f > %.2f", ErrNotionalExceed, notional, lc.cfg.MaxOrderNotionalUSD)
	}
	if lc.cfg.MaxInventorySkew > 0 {
		after := inventoryQ + deltaQty
		if abs(after) > lc.cfg.MaxInventorySkew {
			return fmt.Errorf("%w: %.4f > %.4f", ErrSkewExceed, abs(after), lc.cfg.MaxInventorySkew)
		}
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
