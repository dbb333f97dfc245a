package device

import "time"

// Timer is a single-shot timer. The dispatcher keeps exactly one in flight.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock abstracts wall-clock time and timer creation so the dispatch loop can
// be driven deterministically in tests.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

type realClock struct{}

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

type realTimer struct{ t *time.Timer }

func (rt realTimer) C() <-chan time.Time { return rt.t.C }
func (rt realTimer) Stop() bool          { return rt.t.Stop() }
