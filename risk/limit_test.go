package risk

import (
	"errors"
	"testing"
)

func TestPreQuoteNotionalCap(t *testing.T) {
	lc := NewLimitChecker(Limits{MaxOrderNotionalUSD: 100})
	if err := lc.PreQuote(3000, 0.01, 0); err != nil {
		t.Fatalf("30 USD notional should pass: %v", err)
	}
	if err := lc.PreQuote(3000, 0.05, 0); !errors.Is(err, ErrNotionalExceed) {
		t.Fatalf("expected ErrNotionalExceed, got %v", err)
	}
}

func TestPreQuoteInventorySkew(t *testing.T) {
	lc := NewLimitChecker(Limits{MaxInventorySkew: 0.02})
	if err := lc.PreQuote(3000, 0.01, 0.005); err != nil {
		t.Fatalf("0.015 post-fill skew should pass: %v", err)
	}
	if err := lc.PreQuote(3000, 0.01, 0.015); !errors.Is(err, ErrSkewExceed) {
		t.Fatalf("expected ErrSkewExceed, got %v", err)
	}
	// Asks reduce a long position, so the same inventory allows the sell.
	if err := lc.PreQuote(3000, -0.01, 0.015); err != nil {
		t.Fatalf("sell from long inventory should pass: %v", err)
	}
}

func TestPreQuoteZeroLimitsDisable(t *testing.T) {
	lc := NewLimitChecker(Limits{})
	if err := lc.PreQuote(1e9, 1e6, 1e6); err != nil {
		t.Fatalf("zero-value limits must disable checks: %v", err)
	}
}
