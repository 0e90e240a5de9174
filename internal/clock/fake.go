package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	changed *sync.Cond
	armed   int
}

type fakeTimer struct {
	deadline time.Time
	ch       chan time.Time
	done     bool
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NewTimer registers a timer. A non-positive d fires immediately.
func (c *FakeClock) NewTimer(d time.Duration) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	ft := &fakeTimer{deadline: c.now.Add(d), ch: make(chan time.Time, 1)}
	c.armed++
	if d <= 0 {
		ft.done = true
		ft.ch <- c.now
	} else {
		c.timers = append(c.timers, ft)
	}
	c.changed.Broadcast()

	return &Timer{
		C: ft.ch,
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if ft.done {
				return false
			}
			ft.done = true
			c.removeLocked(ft)
			return true
		},
	}
}

// Advance moves time forward by d and fires every timer whose deadline has
// been reached, earliest first.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)

	var due, pending []*fakeTimer
	for _, ft := range c.timers {
		if ft.deadline.After(c.now) {
			pending = append(pending, ft)
		} else {
			due = append(due, ft)
		}
	}
	c.timers = pending

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, ft := range due {
		ft.done = true
		ft.ch <- c.now
	}
}

// Pending returns the number of armed timers that have not fired or stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Created returns how many timers have been created since the clock was made.
func (c *FakeClock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// WaitForTimers blocks until at least n timers are pending. It closes the
// race between a goroutine arming a timer and the test advancing time.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.timers) < n {
		c.changed.Wait()
	}
}

func (c *FakeClock) removeLocked(target *fakeTimer) {
	for i, ft := range c.timers {
		if ft == target {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}
