package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SK124/Swamp/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type fakeConn struct {
	gen  uint64
	done chan struct{}
	once sync.Once
}

func newFakeConn(gen uint64) *fakeConn {
	return &fakeConn{gen: gen, done: make(chan struct{})}
}

func (c *fakeConn) Close()                { c.once.Do(func() { close(c.done) }) }
func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// fakeDialer hands out fakeConns and checks that the previous one was torn
// down before the next is created.
type fakeDialer struct {
	t       *testing.T
	mu      sync.Mutex
	last    *fakeConn
	fail    map[uint64]bool
	created chan *fakeConn
	calls   chan uint64
}

func newFakeDialer(t *testing.T) *fakeDialer {
	return &fakeDialer{
		t:       t,
		fail:    make(map[uint64]bool),
		created: make(chan *fakeConn, 16),
		calls:   make(chan uint64, 16),
	}
}

func (d *fakeDialer) connect(ctx context.Context, gen uint64) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls <- gen
	if d.last != nil && !d.last.isDone() {
		d.t.Errorf("generation %d created while %d still live", gen, d.last.gen)
	}
	if d.fail[gen] {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn(gen)
	d.last = c
	d.created <- c
	return c, nil
}

func nextConn(t *testing.T, ch <-chan *fakeConn) *fakeConn {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection created")
		return nil
	}
}

func noConn(t *testing.T, ch <-chan *fakeConn) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected connection for generation %d", c.gen)
	case <-time.After(50 * time.Millisecond):
	}
}

type closedCall struct {
	gen     uint64
	attempt int
	delay   time.Duration
}

func TestReconnectorArmsExactDelayOncePerClosure(t *testing.T) {
	clk := clock.Fake(epoch)
	d := newFakeDialer(t)
	closed := make(chan closedCall, 8)

	r := &Reconnector{
		Connect: d.connect,
		Policy:  Fixed(2 * time.Second),
		Clock:   clk,
		OnClosed: func(gen uint64, attempt int, delay time.Duration) {
			closed <- closedCall{gen, attempt, delay}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- r.Run(ctx) }()

	first := nextConn(t, d.created)
	assert.Equal(t, uint64(1), first.gen)

	first.Close()
	call := <-closed
	assert.Equal(t, closedCall{gen: 1, attempt: 1, delay: 2 * time.Second}, call)

	clk.WaitForTimers(1)
	assert.Equal(t, 1, clk.Created())

	clk.Advance(2*time.Second - time.Millisecond)
	noConn(t, d.created)

	clk.Advance(time.Millisecond)
	second := nextConn(t, d.created)
	assert.Equal(t, uint64(2), second.gen)

	clk.Advance(time.Minute)
	noConn(t, d.created)
	assert.Equal(t, 1, clk.Created(), "one timer per closure")

	cancel()
	require.NoError(t, <-result)
	assert.True(t, second.isDone(), "connection closed when the session ends")
}

func TestReconnectorBacksOffOnFailuresAndResets(t *testing.T) {
	clk := clock.Fake(epoch)
	d := newFakeDialer(t)
	d.fail[2] = true
	d.fail[3] = true
	closed := make(chan closedCall, 8)

	r := &Reconnector{
		Connect: d.connect,
		Policy:  Exponential(time.Second, time.Minute),
		Clock:   clk,
		OnClosed: func(gen uint64, attempt int, delay time.Duration) {
			closed <- closedCall{gen, attempt, delay}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	nextConn(t, d.created).Close()

	for _, want := range []closedCall{
		{gen: 1, attempt: 1, delay: time.Second},
		{gen: 2, attempt: 2, delay: 2 * time.Second},
		{gen: 3, attempt: 3, delay: 4 * time.Second},
	} {
		got := <-closed
		assert.Equal(t, want, got)
		clk.WaitForTimers(1)
		clk.Advance(got.delay)
	}

	fourth := nextConn(t, d.created)
	assert.Equal(t, uint64(4), fourth.gen)

	fourth.Close()
	assert.Equal(t, closedCall{gen: 4, attempt: 1, delay: time.Second}, <-closed, "attempts reset after a successful open")
}

func TestReconnectorGivesUp(t *testing.T) {
	clk := clock.Fake(epoch)
	d := newFakeDialer(t)
	for gen := uint64(1); gen <= 3; gen++ {
		d.fail[gen] = true
	}

	r := &Reconnector{
		Connect: d.connect,
		Policy:  Bounded(Fixed(time.Second), 2),
		Clock:   clk,
	}

	result := make(chan error, 1)
	go func() { result <- r.Run(context.Background()) }()

	for i := 0; i < 2; i++ {
		clk.WaitForTimers(1)
		clk.Advance(time.Second)
	}

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrRetriesExhausted)
	case <-time.After(2 * time.Second):
		t.Fatal("reconnector did not give up")
	}
	assert.Len(t, d.calls, 3)
}

func TestReconnectorStopsWhileWaiting(t *testing.T) {
	clk := clock.Fake(epoch)
	d := newFakeDialer(t)

	r := &Reconnector{Connect: d.connect, Policy: Fixed(time.Second), Clock: clk}

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- r.Run(ctx) }()

	nextConn(t, d.created).Close()
	clk.WaitForTimers(1)

	cancel()
	require.NoError(t, <-result)
	assert.Zero(t, clk.Pending(), "timer stopped on teardown")

	clk.Advance(time.Hour)
	noConn(t, d.created)
}
