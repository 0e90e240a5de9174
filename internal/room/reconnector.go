package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SK124/Swamp/internal/clock"
	"github.com/SK124/Swamp/internal/peer"
)

// ErrRetriesExhausted ends a session whose policy gave up reconnecting.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// Conn is one live peer connection plus signaling socket.
type Conn = peer.Conn

// Reconnector keeps one connection open, reopening it after every socket
// closure. Connected becomes Closed when the connection's Done fires; by then
// the peer connection is closed and the stream set cleared. Only then is a
// single timer armed for the policy delay.
type Reconnector struct {
	// Connect opens the connection for the given generation.
	Connect func(ctx context.Context, generation uint64) (Conn, error)

	Policy Policy
	Clock  clock.Clock
	Logger *slog.Logger

	// OnConnected is called after each successful open.
	OnConnected func(generation uint64)

	// OnClosed is called when a reconnect is scheduled.
	OnClosed func(generation uint64, attempt int, delay time.Duration)
}

// Run connects and reconnects until ctx is done or the policy gives up.
// It returns nil when ctx ends and ErrRetriesExhausted otherwise. The
// connection is closed before Run returns.
func (r *Reconnector) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := r.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var (
		handle     peer.Handle[Conn]
		generation uint64
		failures   int
	)
	defer handle.Close()

	for {
		generation++
		gen := generation

		conn, err := handle.Replace(func() (Conn, error) {
			return r.Connect(ctx, gen)
		})
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			logger.Warn("connect failed", "generation", gen, "error", err)
		} else {
			failures = 0
			if r.OnConnected != nil {
				r.OnConnected(gen)
			}

			select {
			case <-conn.Done():
			case <-ctx.Done():
				return nil
			}
		}

		failures++
		delay, ok := r.Policy.Delay(failures)
		if !ok {
			logger.Warn("giving up reconnecting", "attempts", failures-1)
			return ErrRetriesExhausted
		}
		if r.OnClosed != nil {
			r.OnClosed(gen, failures, delay)
		}
		logger.Info("signaling closed, reconnecting", "generation", gen, "attempt", failures, "delay", delay)

		timer := clk.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
