package venue

import (
	"sync/atomic"
	"time"
)

// maxNonce is the largest nonce the signing oracle will accept
// (seconds, <= 2^31-1).
const maxNonce = (1 << 31) - 1

// NonceCounter issues strictly monotone nonces for one signing key. The
// counter never repeats and is immune to wall-clock regressions (NTP slew)
// because it only ever moves forward from its seed.
type NonceCounter struct {
	next atomic.Uint64
}

// NewNonceCounter seeds the counter at max(venueKnown, wallClockSeconds).
func NewNonceCounter(venueKnown uint64, now time.Time) *NonceCounter {
	wall := uint64(now.Unix())
	seed := venueKnown
	if wall > seed {
		seed = wall
	}
	n := &NonceCounter{}
	n.next.Store(seed - 1) // first Next() call returns seed itself
	return n
}

// Next returns the next nonce, or a Fatal error if the counter would
// exceed maxNonce.
func (n *NonceCounter) Next() (uint64, error) {
	v := n.next.Add(1)
	if v > maxNonce {
		return 0, Wrap(KindFatal, "nonce counter exhausted 2^31-1", nil)
	}
	return v, nil
}
