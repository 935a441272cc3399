package ordermgr

import (
	"context"
	"time"

	"perpmm/botstate"
	"perpmm/infrastructure/logger"
	"perpmm/metrics"
	"perpmm/strategy/asmm"
	"perpmm/venue"
)

// OpenOrderGetter is the subset of *venue.RESTClient the Reconciler needs.
type OpenOrderGetter interface {
	GetOpenOrders(ctx context.Context, market string) ([]venue.OpenOrder, error)
}

// Reconciler periodically diffs BotState's live orders against venue
// truth, independent of the fast replace loop: a live order this process
// thinks exists but the venue has no record of (filled/cancelled out of
// band) is cleared locally; an order the venue reports but BotState
// doesn't track is left alone and not reported, since it didn't originate
// from this process's generation.
// Grounded on order/reconciler.go's NewReconciler/Reconcile shape,
// generalized from per-order GetOrder polling to a single GetOpenOrders
// diff pass.
type Reconciler struct {
	Market   string
	State    *botstate.State
	REST     OpenOrderGetter
	Interval time.Duration
	Log      *logger.Logger

	conflictsResolved int64
}

func NewReconciler(market string, state *botstate.State, rest OpenOrderGetter, interval time.Duration, log *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Reconciler{Market: market, State: state, REST: rest, Interval: interval, Log: log}
}

// Run ticks Reconcile until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Reconcile(ctx); err != nil && r.Log != nil {
				r.Log.LogError(err, map[string]interface{}{"component": "reconciler", "market": r.Market})
			}
		}
	}
}

// Reconcile fetches the venue's open orders once and clears any BotState
// live order this process believes is live but the venue no longer lists.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	remote, err := r.REST.GetOpenOrders(ctx, r.Market)
	if err != nil {
		return err
	}
	remoteIDs := make(map[string]struct{}, len(remote))
	for _, o := range remote {
		remoteIDs[o.OrderID] = struct{}{}
	}

	snap := r.State.Read()
	r.reconcileSide(asmm.Bid, snap.LiveBid, remoteIDs)
	r.reconcileSide(asmm.Ask, snap.LiveAsk, remoteIDs)
	return nil
}

func (r *Reconciler) reconcileSide(side asmm.Side, live *botstate.LiveOrder, remoteIDs map[string]struct{}) {
	if live == nil {
		return
	}
	if _, ok := remoteIDs[live.OrderID]; ok {
		return
	}
	if !r.State.TryAcquireAction(side) {
		return
	}
	defer r.State.ReleaseAction(side)
	r.State.ClearLive(side)
	r.conflictsResolved++
	metrics.ReconcileConflictsTotal.Inc()
	if r.Log != nil {
		r.Log.LogOrder("reconcile_clear_orphan", live.OrderID, map[string]interface{}{
			"market": r.Market,
			"side":   string(side),
		})
	}
}

// ConflictsResolved reports the cumulative count of local live orders
// cleared because the venue no longer listed them.
func (r *Reconciler) ConflictsResolved() int64 { return r.conflictsResolved }
