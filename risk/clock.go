package risk

import "time"

// Clock abstracts time so limit windows can be driven in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// NowUTC is the default production clock.
var NowUTC Clock = realClock{}
