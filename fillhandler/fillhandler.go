// Package fillhandler consumes the authenticated order-event stream and
// keeps botstate's inventory, live-order bookkeeping, and ping-pong mode in
// sync with what the venue actually did to an order.
package fillhandler

import (
	"time"

	"perpmm/botstate"
	"perpmm/infrastructure/logger"
	"perpmm/metrics"
	"perpmm/strategy/asmm"
	"perpmm/venue"
)

// Handler drains a venue.OrderEvent channel for one market and applies each
// event to a shared botstate.State. It never retries rejected orders itself;
// that decision belongs to OrderManager's next refresh cycle.
type Handler struct {
	Market string
	State  *botstate.State
	Log    *logger.Logger

	// bidOrderID and askOrderID identify, per side, the order this handler is still
	// tracking so it can ignore stale events for orders OrderManager has
	// already superseded (cancel raced with a fill, etc).
	bidOrderID string
	askOrderID string
}

func New(market string, state *botstate.State, log *logger.Logger) *Handler {
	return &Handler{Market: market, State: state, Log: log}
}

// TrackOrder records which order_id a side is now waiting on, so a later
// event for a superseded order_id can be ignored. OrderManager calls this
// right after a successful place.
func (h *Handler) TrackOrder(side asmm.Side, orderID string) {
	if side == asmm.Bid {
		h.bidOrderID = orderID
	} else {
		h.askOrderID = orderID
	}
}

func (h *Handler) trackedID(side asmm.Side) string {
	if side == asmm.Bid {
		return h.bidOrderID
	}
	return h.askOrderID
}

// Run drains events until the channel is closed (venue WS disconnect).
func (h *Handler) Run(events <-chan venue.OrderEvent) {
	for ev := range events {
		h.Handle(ev)
	}
}

// Handle applies a single OrderEvent. Exported directly so tests can drive
// it without a channel/goroutine.
func (h *Handler) Handle(ev venue.OrderEvent) {
	side := asmm.Bid
	if ev.Side == venue.SideSell {
		side = asmm.Ask
	}

	if h.trackedID(side) != "" && h.trackedID(side) != ev.OrderID {
		return
	}

	switch ev.Status {
	case venue.OrderStatusFilled, venue.OrderStatusPartial:
		h.handleFilled(side, ev)
	case venue.OrderStatusCanceled, venue.OrderStatusRejected, venue.OrderStatusExpired:
		h.handleTerminated(side, ev)
	}
}

func (h *Handler) handleFilled(side asmm.Side, ev venue.OrderEvent) {
	fullyFilled := ev.Status == venue.OrderStatusFilled
	wasPingPong := h.State.Read().PingPong.Enabled
	h.State.ApplyFill(side, ev.FilledQty, fullyFilled, time.Now())
	metrics.FillsTotal.WithLabelValues(string(side)).Inc()
	if wasPingPong {
		metrics.PingPongSwitchesTotal.Inc()
	}
	if h.Log != nil {
		h.Log.LogOrder("fill", ev.OrderID, map[string]interface{}{
			"market":     h.Market,
			"side":       string(side),
			"filled_qty": ev.FilledQty,
			"full":       fullyFilled,
		})
	}
	if fullyFilled {
		h.clearTracked(side)
	}
}

func (h *Handler) handleTerminated(side asmm.Side, ev venue.OrderEvent) {
	h.State.ClearLive(side)
	h.clearTracked(side)
	if ev.Status == venue.OrderStatusRejected {
		metrics.OrdersRejectedTotal.WithLabelValues(string(side)).Inc()
	}
	if h.Log != nil {
		h.Log.LogRisk("order_terminated", map[string]interface{}{
			"market": h.Market,
			"side":   string(side),
			"status": string(ev.Status),
			"reason": ev.Reason,
		})
	}
}

func (h *Handler) clearTracked(side asmm.Side) {
	if side == asmm.Bid {
		h.bidOrderID = ""
	} else {
		h.askOrderID = ""
	}
}
