// Command pnl_report prints current equity against the persisted P&L
// anchor, plus market-volume statistics from the trade archive. Read-only;
// safe to run against a live engine.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"perpmm/config"
	"perpmm/pnl"
	"perpmm/venue"
)

func main() {
	cfgPath := flag.String("config", "configs/marketmaker.yaml", "path to YAML config")
	sinceStr := flag.String("since", "", "only count archived trades after this RFC3339 time")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	var since time.Time
	if *sinceStr != "" {
		since, err = time.Parse(time.RFC3339Nano, *sinceStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse -since: %v\n", err)
			os.Exit(2)
		}
	}

	anchor, ok, err := pnl.LoadAnchor(cfg.Persistence.PnLStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load anchor: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "no anchor file yet; the engine writes one on first run")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	limiter := venue.NewRequestPacer(cfg.Venue.RateLimitPerSec, cfg.Venue.RateLimitBurst)
	rest := venue.NewRESTClient(cfg.Venue.RESTBaseURL, nil, limiter)
	bal, err := rest.GetBalance(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "balance: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("market:          %s\n", cfg.Strategy.Market)
	fmt.Printf("anchor equity:   %.2f USD (since %s)\n", anchor.InitialEquityUSD, anchor.StartedAtTs.Format(time.RFC3339))
	fmt.Printf("current equity:  %.2f USD\n", bal.EquityUSD)
	fmt.Printf("pnl:             %+.2f USD\n", bal.EquityUSD-anchor.InitialEquityUSD)

	trades, buyNotional, sellNotional, err := tradeStats(cfg.Archive.TradesPath, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trade archive: %v\n", err)
		return
	}
	fmt.Printf("archived trades: %d\n", trades)
	fmt.Printf("buy notional:    %.2f USD\n", buyNotional)
	fmt.Printf("sell notional:   %.2f USD\n", sellNotional)
}

// tradeStats scans the trade archive CSV (ts_ms, trade_id, side, price,
// qty) and sums notional per aggressor side.
func tradeStats(path string, since time.Time) (count int, buyNotional, sellNotional float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, buyNotional, sellNotional, err
		}
		if header {
			header = false
			continue
		}
		if len(row) < 5 {
			continue
		}
		tsMs, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}
		if !since.IsZero() && time.UnixMilli(tsMs).Before(since) {
			continue
		}
		price, err1 := strconv.ParseFloat(row[3], 64)
		qty, err2 := strconv.ParseFloat(row[4], 64)
		if err1 != nil || err2 != nil || price <= 0 || qty <= 0 {
			continue
		}
		count++
		if row[2] == "SELL" {
			sellNotional += price * qty
		} else {
			buyNotional += price * qty
		}
	}
	return count, buyNotional, sellNotional, nil
}
