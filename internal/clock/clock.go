// Package clock abstracts the time source so reconnect timing can be driven
// deterministically in tests. Production code uses Real; tests use Fake.
package clock

import "time"

// Clock provides the time operations used by session and reconnect code.
type Clock interface {
	Now() time.Time

	// NewTimer returns a one-shot timer that delivers on C after d.
	NewTimer(d time.Duration) *Timer
}

// Timer is a stoppable one-shot timer.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing. It reports whether the call stopped
// an armed timer.
func (t *Timer) Stop() bool { return t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) *Timer {
	t := time.NewTimer(d)
	return &Timer{C: t.C, stop: t.Stop}
}
