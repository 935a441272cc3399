// Command emergency_cleanup cancels every resting order carrying this
// deployment's client-order-id prefix and optionally flattens the position
// with a reduce-only market order. Run it when the engine is down and
// orders or inventory are stranded on the venue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"perpmm/config"
	"perpmm/venue"
)

func main() {
	cfgPath := flag.String("config", "configs/marketmaker.yaml", "path to YAML config")
	flatten := flag.Bool("flatten", false, "also close the position with a reduce-only market order")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	mkt := cfg.Strategy.Market

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	oracle := venue.NewSubprocessOracle(cfg.Signing.OracleBinaryPath)
	limiter := venue.NewRequestPacer(cfg.Venue.RateLimitPerSec, cfg.Venue.RateLimitBurst)
	rest := venue.NewRESTClient(cfg.Venue.RESTBaseURL, oracle, limiter)

	fmt.Printf("cancelling open orders on %s with prefix %q\n", mkt, cfg.Signing.ClientOrderIDPrefix)
	if err := rest.SweepCancelAll(ctx, mkt, cfg.Signing.ClientOrderIDPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("open orders cancelled")

	positions, err := rest.GetPositions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "positions: %v\n", err)
		os.Exit(1)
	}
	var position float64
	for _, p := range positions {
		if p.Market == mkt {
			position = p.Size
		}
	}
	fmt.Printf("current position: %.6f\n", position)

	if position == 0 || !*flatten {
		if position != 0 {
			fmt.Println("position left open; re-run with -flatten to close it")
		}
		return
	}

	side := venue.SideSell
	qty := position
	if position < 0 {
		side = venue.SideBuy
		qty = -position
	}

	nonce := venue.NewNonceCounter(0, time.Now())
	n, err := nonce.Next()
	if err != nil {
		fmt.Fprintf(os.Stderr, "nonce: %v\n", err)
		os.Exit(1)
	}
	res, err := rest.PlaceOrder(ctx, venue.OrderFields{
		Market:         mkt,
		Side:           side,
		Type:           venue.OrderTypeMarket,
		Qty:            qty,
		TimeInForce:    venue.TIFImmediateOrCancel,
		ReduceOnly:     true,
		Nonce:          n,
		ClientOrderID:  fmt.Sprintf("%s-cleanup-%d", cfg.Signing.ClientOrderIDPrefix, n),
		FeeRate:        cfg.Signing.FeeRate,
		ExpirySec:      cfg.Signing.ExpirySec,
		Chain:          venue.ChainID(cfg.Signing.Chain),
		VaultID:        cfg.Signing.VaultID,
		StarkPublicKey: cfg.Signing.StarkPublicKey,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "flatten order failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("flatten order submitted: %s\n", res.OrderID)

	time.Sleep(3 * time.Second)
	positions, err = rest.GetPositions(ctx)
	if err == nil {
		for _, p := range positions {
			if p.Market == mkt {
				fmt.Printf("final position: %.6f\n", p.Size)
			}
		}
	}
}
