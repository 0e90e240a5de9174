package room

import (
	"time"

	"github.com/SK124/Swamp/internal/config"
)

// Policy decides how long to wait before reconnect attempt n, where n counts
// consecutive closures or failed attempts since the last successful open and
// starts at 1. ok is false when no further attempt should be made.
type Policy interface {
	Delay(n int) (d time.Duration, ok bool)
}

type fixed time.Duration

// Fixed waits the same delay before every attempt.
func Fixed(d time.Duration) Policy { return fixed(d) }

func (f fixed) Delay(int) (time.Duration, bool) { return time.Duration(f), true }

type exponential struct {
	base, max time.Duration
}

// Exponential doubles the delay after each failed attempt, starting at base
// and never exceeding max.
func Exponential(base, max time.Duration) Policy {
	if max < base {
		max = base
	}
	return exponential{base: base, max: max}
}

func (e exponential) Delay(n int) (time.Duration, bool) {
	if n < 1 {
		n = 1
	}
	d := e.base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= e.max || d <= 0 {
			return e.max, true
		}
	}
	return d, true
}

type bounded struct {
	p   Policy
	max int
}

// Bounded stops p after max consecutive attempts.
func Bounded(p Policy, max int) Policy {
	return bounded{p: p, max: max}
}

func (b bounded) Delay(n int) (time.Duration, bool) {
	if n > b.max {
		return 0, false
	}
	return b.p.Delay(n)
}

// PolicyFromConfig builds the reconnect policy for a role.
func PolicyFromConfig(c config.ReconnectConfig, role Role) Policy {
	base := c.WatchDelay
	if role == Broadcaster {
		base = c.BroadcastDelay
	}

	var p Policy
	switch c.Policy {
	case config.PolicyFixed:
		p = Fixed(base)
	default:
		p = Exponential(base, c.MaxDelay)
	}

	if c.MaxAttempts > 0 {
		p = Bounded(p, c.MaxAttempts)
	}
	return p
}
