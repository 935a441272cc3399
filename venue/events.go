package venue

import "encoding/json"

// orderEnvelope is the wire shape of one authenticated account.orders frame.
// Numeric fields arrive as json.Number so a malformed quantity is surfaced
// as Protocol instead of silently zeroed.
type orderEnvelope struct {
	Channel       string      `json:"channel"`
	OrderID       string      `json:"order_id"`
	ClientOrderID string      `json:"client_order_id"`
	Side          string      `json:"side"`
	Status        string      `json:"status"`
	FilledQty     json.Number `json:"filled_qty"`
	RemainingQty  json.Number `json:"remaining_qty"`
	Price         json.Number `json:"price"`
	Reason        string      `json:"reason,omitempty"`
}

// ParseOrderEvent decodes one raw account-stream frame into a typed
// OrderEvent. The second return is false for frames that belong to other
// channels (heartbeats, subscription acks); those are not errors, the
// caller just skips them. A malformed order frame is Protocol.
func ParseOrderEvent(raw []byte) (OrderEvent, bool, error) {
	var env orderEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return OrderEvent{}, false, Wrap(KindProtocol, "malformed account frame", err)
	}
	if env.Channel != "" && env.Channel != "account.orders" {
		return OrderEvent{}, false, nil
	}
	if env.OrderID == "" && env.ClientOrderID == "" {
		return OrderEvent{}, false, nil
	}

	status, ok := parseOrderStatus(env.Status)
	if !ok {
		return OrderEvent{}, false, Wrap(KindProtocol, "unknown order status "+env.Status, nil)
	}

	ev := OrderEvent{
		OrderID:       env.OrderID,
		ClientOrderID: env.ClientOrderID,
		Status:        status,
		Reason:        env.Reason,
	}
	switch env.Side {
	case string(SideBuy):
		ev.Side = SideBuy
	case string(SideSell):
		ev.Side = SideSell
	default:
		return OrderEvent{}, false, Wrap(KindProtocol, "unknown order side "+env.Side, nil)
	}

	var err error
	if ev.FilledQty, err = numOrZero(env.FilledQty); err != nil {
		return OrderEvent{}, false, Wrap(KindProtocol, "malformed filled_qty", err)
	}
	if ev.RemainingQty, err = numOrZero(env.RemainingQty); err != nil {
		return OrderEvent{}, false, Wrap(KindProtocol, "malformed remaining_qty", err)
	}
	if ev.Price, err = numOrZero(env.Price); err != nil {
		return OrderEvent{}, false, Wrap(KindProtocol, "malformed price", err)
	}
	return ev, true, nil
}

func parseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusNew, OrderStatusFilled, OrderStatusPartial,
		OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return OrderStatus(s), true
	default:
		return "", false
	}
}

func numOrZero(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	return n.Float64()
}
