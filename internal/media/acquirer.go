// Package media acquires local camera and microphone streams for
// broadcasting.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrPermissionDenied means the OS refused access to a capture device.
	ErrPermissionDenied = errors.New("camera and microphone permission denied")

	// ErrNoDevice means no device satisfied the constraints.
	ErrNoDevice = errors.New("no camera or microphone available")
)

// Devices opens capture devices.
type Devices interface {
	GetUserMedia(c Constraints) (LocalStream, error)
}

// Acquirer requests local media once. Failures are not retried.
type Acquirer struct {
	devices     Devices
	constraints Constraints
	logger      *slog.Logger
}

func NewAcquirer(devices Devices, constraints Constraints, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acquirer{devices: devices, constraints: constraints, logger: logger}
}

type acquireResult struct {
	stream LocalStream
	err    error
}

// Acquire opens the devices. If ctx ends first, ctx's error is returned and
// a stream that arrives later is closed instead of delivered.
func (a *Acquirer) Acquire(ctx context.Context) (LocalStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make(chan acquireResult, 1)
	go func() {
		s, err := a.devices.GetUserMedia(a.constraints)
		result <- acquireResult{stream: s, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, classify(r.err)
		}
		if err := ctx.Err(); err != nil {
			r.stream.Close()
			return nil, err
		}
		a.logger.Debug("local media acquired", "stream_id", r.stream.ID(), "tracks", len(r.stream.Tracks()))
		return r.stream, nil

	case <-ctx.Done():
		go func() {
			if r := <-result; r.err == nil && r.stream != nil {
				a.logger.Debug("closing media acquired after teardown", "stream_id", r.stream.ID())
				r.stream.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func classify(err error) error {
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoDevice) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNoDevice, err)
}
