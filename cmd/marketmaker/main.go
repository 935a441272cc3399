// Command marketmaker runs the Avellaneda-Stoikov quoting engine for one
// perpetual market: it wires the live feed, estimators, quote loop, order
// manager, fill handler, and backup poller under a restarting supervisor,
// and exposes Prometheus metrics and systemd readiness/watchdog signals.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"perpmm/archive"
	"perpmm/backup"
	"perpmm/botstate"
	"perpmm/config"
	"perpmm/feed"
	"perpmm/fillhandler"
	"perpmm/history"
	"perpmm/infrastructure/alert"
	"perpmm/infrastructure/logger"
	"perpmm/kappa"
	"perpmm/market"
	"perpmm/metrics"
	"perpmm/ordermgr"
	"perpmm/pnl"
	"perpmm/risk"
	"perpmm/strategy"
	"perpmm/strategy/asmm"
	"perpmm/supervisor"
	"perpmm/venue"
	"perpmm/volatility"
)

const (
	exitFatal  = 1
	exitConfig = 2
	exitAuth   = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "configs/marketmaker.yaml", "path to YAML config")
	marketOverride := flag.String("market", "", "override strategy.market_making_market")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitConfig
	}
	if *marketOverride != "" {
		cfg.Strategy.Market = *marketOverride
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return exitConfig
	}
	defer log.Close()

	metrics.StartMetricsServer(cfg.Metrics.ListenAddr)

	channels := []alert.Channel{alert.NewConsoleChannel("console")}
	if cfg.Alert.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel("webhook", cfg.Alert.WebhookURL))
	}
	alerts := alert.NewManager(channels, durSec(cfg.Alert.ThrottleIntervalSec))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := runEngine(ctx, cfg, *cfgPath, log)
	if code != 0 {
		_ = alerts.SendCritical("market maker exiting", map[string]interface{}{
			"market": cfg.Strategy.Market,
			"code":   code,
		})
	}
	return code
}

func runEngine(ctx context.Context, cfg config.AppConfig, cfgPath string, log *logger.Logger) int {
	mkt := cfg.Strategy.Market

	limiter := venue.NewRequestPacer(cfg.Venue.RateLimitPerSec, cfg.Venue.RateLimitBurst)
	oracle := venue.NewSubprocessOracle(cfg.Signing.OracleBinaryPath)
	rest := venue.NewRESTClient(cfg.Venue.RESTBaseURL, oracle, limiter)
	rest.RecvWindowMs = cfg.Venue.RecvWindowMs

	// A previous run of this process may have died with orders resting on
	// the venue; sweep them by client-order-id prefix before quoting again.
	sweep := func(ctx context.Context) error {
		return rest.SweepCancelAll(ctx, mkt, cfg.Signing.ClientOrderIDPrefix)
	}
	startupCtx, cancelStartup := context.WithTimeout(ctx, 30*time.Second)
	defer cancelStartup()
	if err := sweep(startupCtx); err != nil {
		log.LogError(err, map[string]interface{}{"phase": "startup_sweep"})
	}

	mcfg, err := fetchRetry(startupCtx, func(c context.Context) (venue.MarketConfig, error) {
		return rest.GetMarketConfig(c, mkt)
	})
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "market_config"})
		return exitCodeFor(err)
	}
	trading := market.TradingConfig{
		TickSize:      mcfg.TickSize,
		SizeIncrement: mcfg.SizeIncrement,
		MinNotional:   mcfg.MinNotional,
		TakerFeeRate:  mcfg.TakerFeeRate,
	}

	positions, err := fetchRetry(startupCtx, rest.GetPositions)
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "positions"})
		return exitCodeFor(err)
	}
	var position float64
	for _, p := range positions {
		if p.Market == mkt {
			position = p.Size
		}
	}

	bal, err := fetchRetry(startupCtx, rest.GetBalance)
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "balance"})
		return exitCodeFor(err)
	}
	if err := pnl.EnsureDir(cfg.Persistence.PnLStatePath); err != nil {
		log.LogError(err, map[string]interface{}{"phase": "pnl_dir"})
		return exitFatal
	}
	anchor, err := pnl.InitAnchor(cfg.Persistence.PnLStatePath, bal.EquityUSD, time.Now())
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "pnl_anchor"})
		return exitFatal
	}
	metrics.EquityUSD.Set(bal.EquityUSD)
	metrics.PnLUSD.Set(bal.EquityUSD - anchor.InitialEquityUSD)

	// Shared state, seeded from venue truth before any goroutine starts.
	state := botstate.New()
	state.InventoryQ = position
	state.PingPong.Enabled = cfg.Strategy.PingPongEnabled
	state.InitializePingPongMode(position)
	metrics.InventoryQ.Set(position)

	book := market.NewOrderBook()
	window := history.New(time.Duration(cfg.Strategy.WindowHours * float64(time.Hour)))
	ig := feed.NewIngestor(market.MarketId(mkt), book, window, 0)

	cursor, hadCursor, err := pnl.LoadResumeCursor(cfg.Persistence.ResumeCursorPath)
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "resume_cursor"})
	}
	if hadCursor {
		log.Info(fmt.Sprintf("resume cursor loaded: sequence=%d trade_id=%s", cursor.LastSequence, cursor.LastTradeID))
	}
	if err := pnl.EnsureDir(cfg.Persistence.ResumeCursorPath); err != nil {
		log.LogError(err, map[string]interface{}{"phase": "cursor_dir"})
		return exitFatal
	}
	cursorWriter := pnl.NewCursorWriter(
		cfg.Persistence.ResumeCursorPath,
		cfg.Persistence.ResumeCursorMinUpdates,
		durSec(cfg.Persistence.ResumeCursorMinIntervalSec),
	)

	for _, p := range []string{cfg.Archive.TradesPath, cfg.Archive.SnapshotsPath} {
		if err := pnl.EnsureDir(p); err != nil {
			log.LogError(err, map[string]interface{}{"phase": "archive_dir"})
			return exitFatal
		}
	}
	tradeArch, err := archive.NewTradeArchive(cfg.Archive.TradesPath, durSec(cfg.Archive.FlushIntervalSec))
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "trade_archive"})
		return exitFatal
	}
	defer tradeArch.Close()
	snapArch, err := archive.NewSnapshotArchive(cfg.Archive.SnapshotsPath, durSec(cfg.Archive.FlushIntervalSec))
	if err != nil {
		log.LogError(err, map[string]interface{}{"phase": "snapshot_archive"})
		return exitFatal
	}
	defer snapArch.Close()

	// Both callbacks fire under the ingestor's merge lock, so lastTradeID
	// needs no further synchronization.
	var lastTradeID string
	ig.OnTrade(func(tr market.Trade) {
		lastTradeID = tr.TradeID
		if err := tradeArch.Append(tr); err != nil {
			log.LogError(err, map[string]interface{}{"component": "trade_archive"})
		}
	})
	ig.OnBookUpdate(func(mid, bestBid, bestAsk float64, sequence uint64, ts time.Time) {
		state.UpdateBook(mid, bestBid, bestAsk, sequence)
		if err := snapArch.Append(ts.UnixMilli(), sequence, mid, bestBid, bestAsk); err != nil {
			log.LogError(err, map[string]interface{}{"component": "snapshot_archive"})
		}
		if err := cursorWriter.Update(pnl.ResumeCursor{LastSequence: sequence, LastTradeID: lastTradeID}, ts); err != nil {
			log.LogError(err, map[string]interface{}{"component": "resume_cursor"})
		}
	})

	feedConn := &feedConnection{
		wsBaseURL: cfg.Venue.WSBaseURL,
		streams:   []string{"book." + mkt, "trades." + mkt},
		ig:        ig,
		log:       log,
	}
	ig.OnGap(feedConn.forceReconnect)

	events := make(chan venue.OrderEvent, 256)
	fills := fillhandler.New(mkt, state, log)

	vol := volatility.New(volatility.Method(cfg.Strategy.SigmaEstimationMethod), 0)
	var sigmaOracle *volatility.ExternalOracle
	if cfg.Strategy.SigmaEstimationMethod == "external" {
		sigmaOracle = volatility.NewExternalOracle(cfg.Strategy.SigmaOraclePath)
	}
	kparams := kappa.DefaultParams()
	kparams.Method = kappa.Method(cfg.Strategy.KEstimationMethod)
	if cfg.Strategy.KMinSamplesPerLevel > 0 {
		kparams.MinSamplesPerLevel = cfg.Strategy.KMinSamplesPerLevel
	}

	quoteLoop := &strategy.QuoteLoop{
		Config:  quoteLoopConfig(cfg),
		State:   state,
		Window:  window,
		Book:    book,
		Trading: trading,
		Vol:     vol,
		Oracle:  sigmaOracle,
		KParams: kparams,
		Calc:    asmm.NewCalculator(),
		Feed:    ig,
		Limits: risk.NewLimitChecker(risk.Limits{
			MaxOrderNotionalUSD: cfg.Risk.MaxOrderNotionalUSD,
			MaxInventorySkew:    cfg.Risk.MaxInventorySkew,
		}),
		Log: log,
	}

	nonce := venue.NewNonceCounter(0, time.Now())
	mgr := ordermgr.New(managerConfig(cfg), state, rest, nonce, log)
	mgr.Tracker = fills

	reconciler := ordermgr.NewReconciler(mkt, state, rest, 30*time.Second, log)
	poller := backup.New(mkt, book, state, rest, durSec(cfg.Strategy.RestBackupIntervalSec), log)

	sup := supervisor.New(log, sweep, durSec(cfg.Strategy.ShutdownGraceSec))
	sup.Register("feed", feedConn.run)
	sup.Register("backup_poller", poller.Run)
	sup.Register("quote_loop", quoteLoop.Run)
	sup.Register("order_manager", func(ctx context.Context) error {
		mgr.Run(ctx)
		return nil
	})
	sup.Register("fill_handler", func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				fills.Handle(ev)
			}
		}
	})
	sup.Register("account_stream", func(ctx context.Context) error {
		return runAccountStream(ctx, cfg, events, log)
	})
	sup.Register("reconciler", reconciler.Run)
	sup.Register("cursor_flush", func(ctx context.Context) error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return cursorWriter.Flush(time.Now())
			case now := <-ticker.C:
				if err := cursorWriter.Flush(now); err != nil {
					log.LogError(err, map[string]interface{}{"component": "cursor_flush"})
				}
			}
		}
	})
	sup.Register("equity_poll", func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				bal, err := rest.GetBalance(ctx)
				if err != nil {
					log.LogError(err, map[string]interface{}{"component": "equity_poll"})
					continue
				}
				metrics.EquityUSD.Set(bal.EquityUSD)
				metrics.PnLUSD.Set(bal.EquityUSD - anchor.InitialEquityUSD)
			}
		}
	})
	sup.Register("config_watch", func(ctx context.Context) error {
		watcher := config.Watcher{Path: cfgPath}
		return watcher.Start(ctx, func(incoming config.AppConfig) {
			merged := config.ApplyTunables(cfg, incoming)
			quoteLoop.SetConfig(quoteLoopConfig(merged))
			mgr.SetTradingEnabled(merged.Strategy.TradingEnabled)
			log.Info("config reloaded")
		})
	})

	registerWatchdog(sup)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info(fmt.Sprintf("market maker started: market=%s trading_enabled=%v", mkt, cfg.Strategy.TradingEnabled))

	if err := sup.Run(ctx); err != nil {
		log.LogError(err, map[string]interface{}{"phase": "supervisor"})
		return exitCodeFor(err)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	return 0
}

// feedConnection owns the market-data websocket lifecycle: connect,
// heartbeat, dispatch, reconnect with bounded backoff, and forced
// reconnects on sequence gaps.
type feedConnection struct {
	wsBaseURL string
	streams   []string
	ig        *feed.Ingestor
	log       *logger.Logger

	mu sync.Mutex
	ws *venue.WSClient
}

func (fc *feedConnection) run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		ws := venue.NewWSClient(fc.wsBaseURL)
		if err := ws.Connect(ctx, fc.streams); err != nil {
			fc.log.LogError(err, map[string]interface{}{"component": "feed", "attempt": attempt})
			metrics.WSReconnectsTotal.Inc()
			if !sleepCtx(ctx, venue.BackoffDuration(attempt)) {
				return nil
			}
			attempt++
			continue
		}
		attempt = 0
		fc.setActive(ws)

		hbCtx, cancelHB := context.WithCancel(ctx)
		go func() { _ = ws.Heartbeat(hbCtx, 15*time.Second) }()
		err := ws.Run(ctx, fc)
		cancelHB()
		fc.setActive(nil)
		_ = ws.Close()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			fc.log.LogError(err, map[string]interface{}{"component": "feed"})
		}
		metrics.WSReconnectsTotal.Inc()
		if !sleepCtx(ctx, venue.BackoffDuration(attempt)) {
			return nil
		}
		attempt++
	}
}

// OnRawMessage parses and applies one inbound frame. Malformed frames are
// logged and dropped rather than killing the connection.
func (fc *feedConnection) OnRawMessage(data []byte) {
	msg, err := feed.ParseMessage(data)
	if err != nil {
		fc.log.LogError(err, map[string]interface{}{"component": "feed"})
		return
	}
	fc.ig.Enqueue(msg)
	fc.ig.Drain()
}

// forceReconnect closes the active connection so run's read loop returns
// and re-subscribes from a fresh snapshot.
func (fc *feedConnection) forceReconnect() {
	fc.mu.Lock()
	ws := fc.ws
	fc.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}

func (fc *feedConnection) setActive(ws *venue.WSClient) {
	fc.mu.Lock()
	fc.ws = ws
	fc.mu.Unlock()
}

// runAccountStream maintains the authenticated order-event stream: listen
// key, keep-alive, websocket, and dispatch into the fill handler's channel.
func runAccountStream(ctx context.Context, cfg config.AppConfig, events chan<- venue.OrderEvent, log *logger.Logger) error {
	keeper := venue.NewSessionKeeper(cfg.Venue.RESTBaseURL)
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		key, err := keeper.NewListenKey(ctx)
		if err != nil {
			log.LogError(err, map[string]interface{}{"component": "account_stream"})
			if !sleepCtx(ctx, venue.BackoffDuration(attempt)) {
				return nil
			}
			attempt++
			continue
		}

		kaCtx, cancelKA := context.WithCancel(ctx)
		go keeper.KeepAliveLoop(kaCtx, key, 30*time.Minute, func(err error) {
			log.LogError(err, map[string]interface{}{"component": "listen_key_keepalive"})
		})

		ws := venue.NewWSClient(cfg.Venue.WSBaseURL)
		if err := ws.Connect(ctx, []string{"account.orders", "listenKey=" + key}); err == nil {
			attempt = 0
			err = ws.Run(ctx, accountDispatch{events: events, log: log})
			if err != nil && ctx.Err() == nil {
				log.LogError(err, map[string]interface{}{"component": "account_stream"})
			}
			_ = ws.Close()
		} else {
			log.LogError(err, map[string]interface{}{"component": "account_stream"})
		}

		cancelKA()
		closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
		_ = keeper.CloseListenKey(closeCtx, key)
		cancelClose()

		if ctx.Err() != nil {
			return nil
		}
		metrics.WSReconnectsTotal.Inc()
		if !sleepCtx(ctx, venue.BackoffDuration(attempt)) {
			return nil
		}
		attempt++
	}
}

type accountDispatch struct {
	events chan<- venue.OrderEvent
	log    *logger.Logger
}

func (d accountDispatch) OnRawMessage(data []byte) {
	ev, ok, err := venue.ParseOrderEvent(data)
	if err != nil {
		d.log.LogError(err, map[string]interface{}{"component": "account_stream"})
		return
	}
	if ok {
		d.events <- ev
	}
}

// registerWatchdog adds a systemd watchdog ping task when the unit has
// WatchdogSec configured; a no-op otherwise.
func registerWatchdog(sup *supervisor.Supervisor) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	sup.Register("sd_watchdog", func(ctx context.Context) error {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

func quoteLoopConfig(cfg config.AppConfig) strategy.QuoteLoopConfig {
	return strategy.QuoteLoopConfig{
		Gamma:          cfg.Strategy.Gamma,
		TimeHorizonSec: cfg.Strategy.TimeHorizonHours * 3600,
		MinSpreadBps:   cfg.Strategy.MinimumSpreadBps,
		NotionalUSD:    cfg.Strategy.NotionalUSD,
		Interval:       durSec(cfg.Strategy.SpreadCalcIntervalSec),
		MaxStaleMs:     2000,
	}
}

func managerConfig(cfg config.AppConfig) ordermgr.Config {
	out := ordermgr.DefaultConfig(cfg.Strategy.Market)
	out.RefreshInterval = durSec(cfg.Strategy.OrderRefreshIntervalSec)
	out.RepricingThresholdBps = cfg.Strategy.RepricingThresholdBps
	out.ForceReplaceInterval = durSec(cfg.Strategy.ForceReplaceIntervalSec)
	out.TradingEnabled = cfg.Strategy.TradingEnabled
	out.ClientOrderIDPrefix = cfg.Signing.ClientOrderIDPrefix
	out.OrderPollTimeout = durSec(cfg.Signing.OrderPollTimeoutSec)
	out.Chain = venue.ChainID(cfg.Signing.Chain)
	out.VaultID = cfg.Signing.VaultID
	out.StarkPublicKey = cfg.Signing.StarkPublicKey
	out.FeeRate = cfg.Signing.FeeRate
	out.TimeInForce = venue.TimeInForce(cfg.Signing.TimeInForce)
	out.ExpirySec = cfg.Signing.ExpirySec
	return out
}

// fetchRetry retries a startup REST call on transient/rate-limited errors;
// auth and invariant errors surface immediately.
func fetchRetry[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		var ve *venue.Error
		if errors.As(err, &ve) && ve.Kind != venue.KindTransient && ve.Kind != venue.KindRateLimited {
			return zero, err
		}
		if !sleepCtx(ctx, venue.BackoffDuration(attempt)) {
			return zero, err
		}
	}
	return zero, lastErr
}

func exitCodeFor(err error) int {
	var ve *venue.Error
	if errors.As(err, &ve) && ve.Kind == venue.KindAuth {
		return exitAuth
	}
	return exitFatal
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func durSec(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
