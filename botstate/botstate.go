// Package botstate holds the single shared record every core task reads
// and writes under one reader/writer lock.
package botstate

import (
	"sync"
	"time"

	"perpmm/strategy/asmm"
)

// PingPongMode is which side the engine is allowed to quote when two-sided
// quoting is forbidden.
type PingPongMode string

const (
	PingPongIdle     PingPongMode = "idle"
	PingPongNeedBuy  PingPongMode = "need_buy"
	PingPongNeedSell PingPongMode = "need_sell"
)

// LiveOrder is a Quote the venue has acknowledged with an order_id.
type LiveOrder struct {
	OrderID    string
	Side       asmm.Side
	Price      float64
	Size       float64
	PlacedTs   time.Time
	Nonce      uint64
	Generation uint64
}

// PingPongState tracks which side is allowed when one-sided quoting is on.
type PingPongState struct {
	Enabled        bool
	Mode           PingPongMode
	LastSwitchTs   time.Time
	CurrentOrderID string
}

// State is the full shared snapshot. Every field is only ever mutated
// under mu; readers must not perform I/O or estimator work while holding
// the lock.
type State struct {
	mu sync.RWMutex

	Mid, BestBid, BestAsk float64
	Sequence              uint64
	StaleSource           string // "" (WS) or "REST" when BackupPoller last wrote the mid

	Sigma, Kappa     float64
	HasSigma         bool
	HasKappa         bool
	LastEstimationTs time.Time

	DesiredBid, DesiredAsk *asmm.Quote
	LiveBid, LiveAsk       *LiveOrder

	InventoryQ float64
	EquityUSD  float64

	PingPong PingPongState

	RunGeneration uint64

	// actionInFlight serializes the order manager's per-side I/O against
	// concurrent fills.
	actionInFlight map[asmm.Side]bool
}

// New creates an empty State with ping-pong mode seeded to NeedBuy, the
// default when position is unknown or zero.
func New() *State {
	return &State{
		PingPong:       PingPongState{Mode: PingPongNeedBuy},
		actionInFlight: make(map[asmm.Side]bool),
	}
}

// UpdateBook publishes a new mid/best bid/ask/sequence snapshot from the
// live feed, clearing any REST-sourced staleness flag.
func (s *State) UpdateBook(mid, bestBid, bestAsk float64, sequence uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mid, s.BestBid, s.BestAsk, s.Sequence = mid, bestBid, bestAsk, sequence
	s.StaleSource = ""
}

// UpdateBookFromREST publishes a BackupPoller-sourced mid/best bid/ask,
// marking StaleSource so downstream readers know this did not come from
// the live feed. Sequence is left untouched since REST has no concept of
// it.
func (s *State) UpdateBookFromREST(mid, bestBid, bestAsk float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Mid, s.BestBid, s.BestAsk = mid, bestBid, bestAsk
	s.StaleSource = "REST"
}

// UpdateEstimates publishes a new sigma/kappa pair from the estimators.
func (s *State) UpdateEstimates(sigma, kappa float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sigma, s.Kappa = sigma, kappa
	s.HasSigma, s.HasKappa = true, true
	s.LastEstimationTs = ts
}

// Snapshot is a read-only copy of the fields SpreadCalculator/OrderManager
// need, taken under RLock so neither estimator work nor I/O happens while
// the lock is held.
type Snapshot struct {
	Mid, BestBid, BestAsk  float64
	StaleSource            string
	Sigma, Kappa           float64
	HasSigma, HasKappa     bool
	InventoryQ             float64
	DesiredBid, DesiredAsk *asmm.Quote
	LiveBid, LiveAsk       *LiveOrder
	PingPong               PingPongState
	RunGeneration          uint64
}

func (s *State) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Mid: s.Mid, BestBid: s.BestBid, BestAsk: s.BestAsk, StaleSource: s.StaleSource,
		Sigma: s.Sigma, Kappa: s.Kappa, HasSigma: s.HasSigma, HasKappa: s.HasKappa,
		InventoryQ: s.InventoryQ,
		DesiredBid: s.DesiredBid, DesiredAsk: s.DesiredAsk,
		LiveBid: s.LiveBid, LiveAsk: s.LiveAsk,
		PingPong: s.PingPong, RunGeneration: s.RunGeneration,
	}
}

// PublishDesired writes a new desired bid/ask pair as given and bumps
// RunGeneration; a nil side is stored as nil while the other side keeps its
// new quote.
func (s *State) PublishDesired(bid, ask *asmm.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DesiredBid, s.DesiredAsk = bid, ask
	s.RunGeneration++
}

// ClearDesired clears both desired quotes without bumping generation further
// than the reject itself already implies.
func (s *State) ClearDesired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DesiredBid, s.DesiredAsk = nil, nil
}

// SetLive records a newly-acknowledged live order on a side.
func (s *State) SetLive(side asmm.Side, order *LiveOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == asmm.Bid {
		s.LiveBid = order
	} else {
		s.LiveAsk = order
	}
}

// ClearLive removes the live order on a side (cancel-ack, fill-to-zero, or
// rejection).
func (s *State) ClearLive(side asmm.Side) {
	s.SetLive(side, nil)
}

// TryAcquireAction attempts to set the per-side action-in-flight flag,
// returning false if an action is already in progress on that side. This
// keeps the fill handler's mode flip and the order manager's read-and-act
// sequence from interleaving.
func (s *State) TryAcquireAction(side asmm.Side) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actionInFlight[side] {
		return false
	}
	s.actionInFlight[side] = true
	return true
}

// ReleaseAction clears the action-in-flight flag on a side.
func (s *State) ReleaseAction(side asmm.Side) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionInFlight[side] = false
}

// ApplyFill updates inventory and, if ping-pong is enabled, flips mode and
// bumps the generation.
func (s *State) ApplyFill(side asmm.Side, filledQty float64, fullyFilled bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if side == asmm.Bid {
		s.InventoryQ += filledQty
	} else {
		s.InventoryQ -= filledQty
	}
	if fullyFilled {
		if side == asmm.Bid {
			s.LiveBid = nil
		} else {
			s.LiveAsk = nil
		}
	}
	if s.PingPong.Enabled {
		s.switchPingPongModeLocked(now)
		s.RunGeneration++
	}
}

func (s *State) switchPingPongModeLocked(now time.Time) {
	switch s.PingPong.Mode {
	case PingPongNeedBuy:
		s.PingPong.Mode = PingPongNeedSell
	case PingPongNeedSell:
		s.PingPong.Mode = PingPongNeedBuy
	}
	s.PingPong.LastSwitchTs = now
	s.PingPong.CurrentOrderID = ""
}

// InitializePingPongMode seeds the mode from a reconciled position:
// position>0 -> NeedSell, position<0 -> NeedBuy, position==0 -> NeedBuy.
func (s *State) InitializePingPongMode(position float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if position > 0 {
		s.PingPong.Mode = PingPongNeedSell
	} else {
		s.PingPong.Mode = PingPongNeedBuy
	}
}
