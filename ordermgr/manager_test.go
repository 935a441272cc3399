package ordermgr

import (
	"context"
	"sync"
	"testing"
	"time"

	"perpmm/botstate"
	"perpmm/strategy/asmm"
	"perpmm/venue"
)

type fakeGateway struct {
	mu        sync.Mutex
	placed    []venue.OrderFields
	cancelled []string
	placeErr  error
	nextID    int
}

func (f *fakeGateway) PlaceOrder(ctx context.Context, fields venue.OrderFields) (venue.PlaceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return venue.PlaceResult{}, f.placeErr
	}
	f.placed = append(f.placed, fields)
	f.nextID++
	return venue.PlaceResult{OrderID: "ord-1", Ts: time.Now()}, nil
}

func (f *fakeGateway) CancelOrder(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeGateway) GetOrderByClientID(ctx context.Context, clientOrderID string) (venue.PlaceResult, error) {
	return venue.PlaceResult{}, venue.Wrap(venue.KindInvariant, "not found", nil)
}

func newTestManager(gw *fakeGateway) (*Manager, *botstate.State) {
	state := botstate.New()
	cfg := DefaultConfig("ETH-USD")
	nonce := venue.NewNonceCounter(0, time.Unix(1_000_000, 0))
	mgr := New(cfg, state, gw, nonce, nil)
	return mgr, state
}

func TestDecideActionPlacesWhenNoLiveOrder(t *testing.T) {
	desired := &asmm.Quote{Side: asmm.Bid, Price: 100, Size: 1, Generation: 1}
	action := decideAction(desired, nil, 100, time.Now(), DefaultConfig("ETH-USD"))
	if action != ActionPlace {
		t.Fatalf("expected ActionPlace, got %v", action)
	}
}

func TestDecideActionCancelsWhenDesiredCleared(t *testing.T) {
	live := &botstate.LiveOrder{Price: 100, PlacedTs: time.Now()}
	action := decideAction(nil, live, 100, time.Now(), DefaultConfig("ETH-USD"))
	if action != ActionCancel {
		t.Fatalf("expected ActionCancel, got %v", action)
	}
}

func TestDecideActionReplacesOnPriceDrift(t *testing.T) {
	cfg := DefaultConfig("ETH-USD")
	cfg.RepricingThresholdBps = 5
	desired := &asmm.Quote{Price: 101, Generation: 1}
	live := &botstate.LiveOrder{Price: 100, PlacedTs: time.Now(), Generation: 1}
	action := decideAction(desired, live, 100, time.Now(), cfg)
	if action != ActionReplace {
		t.Fatalf("expected ActionReplace on price drift, got %v", action)
	}
}

func TestDecideActionReplacesOnForceInterval(t *testing.T) {
	cfg := DefaultConfig("ETH-USD")
	cfg.ForceReplaceInterval = time.Minute
	desired := &asmm.Quote{Price: 100, Generation: 1}
	live := &botstate.LiveOrder{Price: 100, PlacedTs: time.Now().Add(-2 * time.Minute), Generation: 1}
	action := decideAction(desired, live, 100, time.Now(), cfg)
	if action != ActionReplace {
		t.Fatalf("expected ActionReplace after force-replace interval, got %v", action)
	}
}

func TestDecideActionReplacesOnStaleGeneration(t *testing.T) {
	cfg := DefaultConfig("ETH-USD")
	desired := &asmm.Quote{Price: 100, Generation: 5}
	live := &botstate.LiveOrder{Price: 100, PlacedTs: time.Now(), Generation: 3}
	action := decideAction(desired, live, 100, time.Now(), cfg)
	if action != ActionReplace {
		t.Fatalf("expected ActionReplace on stale generation, got %v", action)
	}
}

func TestDecideActionNoneWhenMatching(t *testing.T) {
	cfg := DefaultConfig("ETH-USD")
	desired := &asmm.Quote{Price: 100, Generation: 3}
	live := &botstate.LiveOrder{Price: 100, PlacedTs: time.Now(), Generation: 3}
	action := decideAction(desired, live, 100, time.Now(), cfg)
	if action != ActionNone {
		t.Fatalf("expected ActionNone, got %v", action)
	}
}

func TestTickPlacesDesiredQuote(t *testing.T) {
	gw := &fakeGateway{}
	mgr, state := newTestManager(gw)
	state.UpdateBook(3000, 2999, 3001, 1)
	state.PublishDesired(&asmm.Quote{Side: asmm.Bid, Price: 2959.4, Size: 0.01, Generation: 1},
		&asmm.Quote{Side: asmm.Ask, Price: 3040.6, Size: 0.01, Generation: 1})

	mgr.Tick(context.Background(), time.Now())

	snap := state.Read()
	if snap.LiveBid == nil || snap.LiveAsk == nil {
		t.Fatalf("expected both sides placed")
	}
	if len(gw.placed) != 2 {
		t.Fatalf("expected 2 place calls, got %d", len(gw.placed))
	}
}

func TestTickPingPongRestrictsToAllowedSide(t *testing.T) {
	gw := &fakeGateway{}
	mgr, state := newTestManager(gw)
	state.PingPong.Enabled = true
	state.PingPong.Mode = botstate.PingPongNeedSell
	state.UpdateBook(3000, 2999, 3001, 1)
	state.PublishDesired(&asmm.Quote{Side: asmm.Bid, Price: 2959.4, Size: 0.01, Generation: 1},
		&asmm.Quote{Side: asmm.Ask, Price: 3040.6, Size: 0.01, Generation: 1})

	mgr.Tick(context.Background(), time.Now())

	snap := state.Read()
	if snap.LiveBid != nil {
		t.Fatalf("ping-pong NeedSell must not place a bid")
	}
	if snap.LiveAsk == nil {
		t.Fatalf("ping-pong NeedSell must place the ask")
	}
}

func TestTickCancelsOnDisabledTradingOnce(t *testing.T) {
	gw := &fakeGateway{}
	mgr, state := newTestManager(gw)
	mgr.SetTradingEnabled(false)
	state.SetLive(asmm.Bid, &botstate.LiveOrder{OrderID: "ord-1", Side: asmm.Bid})

	mgr.Tick(context.Background(), time.Now())
	mgr.Tick(context.Background(), time.Now())

	if len(gw.cancelled) != 1 {
		t.Fatalf("expected exactly one cancel sweep while disabled, got %d", len(gw.cancelled))
	}
}

func TestClientOrderIDFormat(t *testing.T) {
	gw := &fakeGateway{}
	mgr, _ := newTestManager(gw)
	id := mgr.clientOrderID(7, asmm.Bid, 42)
	if id != "mm-7-bid-42" {
		t.Fatalf("unexpected client order id: %s", id)
	}
}
