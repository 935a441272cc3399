// Package ordermgr implements the per-side place/replace/cancel decision
// loop that reconciles botstate's desired quotes with the venue's live
// orders.
package ordermgr

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"perpmm/botstate"
	"perpmm/infrastructure/logger"
	"perpmm/metrics"
	"perpmm/strategy/asmm"
	"perpmm/venue"
)

// Action is the per-side decision OrderManager's tick produces.
type Action string

const (
	ActionNone    Action = "none"
	ActionPlace   Action = "place"
	ActionReplace Action = "replace"
	ActionCancel  Action = "cancel"
)

// Config bundles the order-management tunables and signing parameters.
type Config struct {
	Market                string
	RefreshInterval       time.Duration
	RepricingThresholdBps float64
	ForceReplaceInterval  time.Duration
	TradingEnabled        bool
	ClientOrderIDPrefix   string        // default "mm"
	OrderPollTimeout      time.Duration // default 5s, the idempotence poll window
	Chain                 venue.ChainID
	VaultID               string
	StarkPublicKey        string
	FeeRate               float64
	TimeInForce           venue.TimeInForce
	ExpirySec             int64
}

func DefaultConfig(market string) Config {
	return Config{
		Market:               market,
		RefreshInterval:      250 * time.Millisecond,
		RepricingThresholdBps: 5,
		ForceReplaceInterval: 60 * time.Second,
		TradingEnabled:       true,
		ClientOrderIDPrefix:  "mm",
		OrderPollTimeout:     5 * time.Second,
		TimeInForce:          venue.TIFGoodTillCancel,
	}
}

// FillTracker is the subset of fillhandler.Handler OrderManager notifies
// after a successful place, so fills for stale/superseded orders can be
// ignored.
type FillTracker interface {
	TrackOrder(side asmm.Side, orderID string)
}

// Gateway is the subset of *venue.RESTClient OrderManager needs, narrowed
// to an interface so it can be exercised against a fake in tests without a
// live HTTP round trip.
type Gateway interface {
	PlaceOrder(ctx context.Context, fields venue.OrderFields) (venue.PlaceResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderByClientID(ctx context.Context, clientOrderID string) (venue.PlaceResult, error)
}

// Manager runs OrderManager's tick loop against one market.
type Manager struct {
	Config  Config
	State   *botstate.State
	REST    Gateway
	Nonce   *venue.NonceCounter
	Log     *logger.Logger
	Tracker FillTracker

	trading                  atomic.Bool
	ordersCancelledOnDisable bool
}

func New(cfg Config, state *botstate.State, rest Gateway, nonce *venue.NonceCounter, log *logger.Logger) *Manager {
	m := &Manager{Config: cfg, State: state, REST: rest, Nonce: nonce, Log: log}
	m.trading.Store(cfg.TradingEnabled)
	return m
}

// SetTradingEnabled flips the kill switch live. Disabling makes the next
// tick cancel both sides and stay flat until re-enabled.
func (m *Manager) SetTradingEnabled(v bool) { m.trading.Store(v) }

// Run drives the tick loop at Config.RefreshInterval until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.Config.RefreshInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx, time.Now())
		}
	}
}

// Tick executes one iteration: disabled-trading sweep, then per-side
// decide+execute under the action-in-flight discipline.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	if !m.trading.Load() {
		if !m.ordersCancelledOnDisable {
			m.cancelSide(ctx, asmm.Bid, now)
			m.cancelSide(ctx, asmm.Ask, now)
			m.ordersCancelledOnDisable = true
		}
		return
	}
	m.ordersCancelledOnDisable = false

	snap := m.State.Read()
	if snap.Mid <= 0 {
		return
	}

	sides := []asmm.Side{asmm.Bid, asmm.Ask}
	if snap.PingPong.Enabled {
		sides = m.restrictToPingPongSide(ctx, snap, now)
	}

	for _, side := range sides {
		desired := desiredFor(snap, side)
		live := liveFor(snap, side)
		action := decideAction(desired, live, snap.Mid, now, m.Config)
		m.execute(ctx, side, action, desired, live, now)
	}
}

// restrictToPingPongSide cancels whichever side ping-pong mode currently
// forbids and returns only the allowed side.
func (m *Manager) restrictToPingPongSide(ctx context.Context, snap botstate.Snapshot, now time.Time) []asmm.Side {
	allowed := asmm.Bid
	forbidden := asmm.Ask
	if snap.PingPong.Mode == botstate.PingPongNeedSell {
		allowed, forbidden = asmm.Ask, asmm.Bid
	}
	if liveFor(snap, forbidden) != nil {
		m.cancelSide(ctx, forbidden, now)
	}
	return []asmm.Side{allowed}
}

func desiredFor(snap botstate.Snapshot, side asmm.Side) *asmm.Quote {
	if side == asmm.Bid {
		return snap.DesiredBid
	}
	return snap.DesiredAsk
}

func liveFor(snap botstate.Snapshot, side asmm.Side) *botstate.LiveOrder {
	if side == asmm.Bid {
		return snap.LiveBid
	}
	return snap.LiveAsk
}

// decideAction maps a desired/live pair to the action that reconciles them.
func decideAction(desired *asmm.Quote, live *botstate.LiveOrder, mid float64, now time.Time, cfg Config) Action {
	if desired == nil {
		if live != nil {
			return ActionCancel
		}
		return ActionNone
	}
	if live == nil {
		return ActionPlace
	}

	forceReplace := cfg.ForceReplaceInterval > 0 && now.Sub(live.PlacedTs) >= cfg.ForceReplaceInterval
	priceDrift := mid > 0 && absFloat(live.Price-desired.Price)/mid >= cfg.RepricingThresholdBps*1e-4
	staleGeneration := desired.Generation > live.Generation

	if priceDrift || forceReplace || staleGeneration {
		return ActionReplace
	}
	return ActionNone
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *Manager) execute(ctx context.Context, side asmm.Side, action Action, desired *asmm.Quote, live *botstate.LiveOrder, now time.Time) {
	switch action {
	case ActionNone:
		return
	case ActionCancel:
		m.cancelSide(ctx, side, now)
	case ActionPlace:
		m.placeSide(ctx, side, desired, now)
	case ActionReplace:
		m.cancelSide(ctx, side, now)
		m.placeSide(ctx, side, desired, now)
	}
}

func (m *Manager) cancelSide(ctx context.Context, side asmm.Side, now time.Time) {
	if !m.State.TryAcquireAction(side) {
		return
	}
	defer m.State.ReleaseAction(side)

	snap := m.State.Read()
	live := liveFor(snap, side)
	if live == nil {
		return
	}
	if err := m.REST.CancelOrder(ctx, live.OrderID); err != nil {
		m.logError("cancel_failed", side, err)
		return
	}
	m.State.ClearLive(side)
	metrics.OrdersCancelledTotal.WithLabelValues(string(side)).Inc()
}

func (m *Manager) placeSide(ctx context.Context, side asmm.Side, desired *asmm.Quote, now time.Time) {
	if !m.State.TryAcquireAction(side) {
		return
	}
	defer m.State.ReleaseAction(side)

	nonce, err := m.Nonce.Next()
	if err != nil {
		m.logError("nonce_exhausted", side, err)
		return
	}

	clientOrderID := m.clientOrderID(desired.Generation, side, nonce)
	fields := venue.OrderFields{
		Market:         m.Config.Market,
		Side:           sideToVenue(side),
		Type:           venue.OrderTypeLimit,
		Price:          desired.Price,
		Qty:            desired.Size,
		TimeInForce:    m.Config.TimeInForce,
		ReduceOnly:     false,
		Nonce:          nonce,
		ClientOrderID:  clientOrderID,
		FeeRate:        m.Config.FeeRate,
		ExpirySec:      m.Config.ExpirySec,
		Chain:          m.Config.Chain,
		VaultID:        m.Config.VaultID,
		StarkPublicKey: m.Config.StarkPublicKey,
	}

	result, err := m.REST.PlaceOrder(ctx, fields)
	if err != nil {
		if ctx.Err() != nil {
			// Caller's context already cancelled; don't poll, just bail.
			return
		}
		result, err = m.pollForOrder(ctx, clientOrderID)
		if err != nil {
			m.logError("place_failed", side, err)
			return
		}
	}

	m.State.SetLive(side, &botstate.LiveOrder{
		OrderID:    result.OrderID,
		Side:       side,
		Price:      desired.Price,
		Size:       desired.Size,
		PlacedTs:   now,
		Nonce:      nonce,
		Generation: desired.Generation,
	})
	if m.Tracker != nil {
		m.Tracker.TrackOrder(side, result.OrderID)
	}
	metrics.OrdersPlacedTotal.WithLabelValues(string(side)).Inc()
	if m.Log != nil {
		m.Log.LogOrder("placed", result.OrderID, map[string]interface{}{
			"market": m.Config.Market,
			"side":   string(side),
			"price":  desired.Price,
			"size":   desired.Size,
		})
	}
}

// pollForOrder implements the idempotence/recovery rule: on a place
// timeout, ask the venue for the client-order-id for up to
// Config.OrderPollTimeout before giving up (a retry would risk a duplicate
// the server must reject on id, but we'd rather find the accepted order).
func (m *Manager) pollForOrder(ctx context.Context, clientOrderID string) (venue.PlaceResult, error) {
	timeout := m.Config.OrderPollTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return venue.PlaceResult{}, ctx.Err()
		case <-ticker.C:
			result, err := m.REST.GetOrderByClientID(ctx, clientOrderID)
			if err == nil {
				return result, nil
			}
		}
	}
	return venue.PlaceResult{}, venue.Wrap(venue.KindTransient, "order not found after poll window", nil)
}

func (m *Manager) clientOrderID(generation uint64, side asmm.Side, nonce uint64) string {
	prefix := m.Config.ClientOrderIDPrefix
	if prefix == "" {
		prefix = "mm"
	}
	return fmt.Sprintf("%s-%d-%s-%d", prefix, generation, side, nonce)
}

func (m *Manager) logError(event string, side asmm.Side, err error) {
	if m.Log == nil {
		return
	}
	m.Log.LogError(err, map[string]interface{}{
		"event":  event,
		"market": m.Config.Market,
		"side":   string(side),
	})
}

func sideToVenue(side asmm.Side) venue.Side {
	if side == asmm.Bid {
		return venue.SideBuy
	}
	return venue.SideSell
}
