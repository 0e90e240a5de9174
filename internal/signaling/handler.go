package signaling

import (
	"errors"
	"log/slog"

	"github.com/SK124/Swamp/internal/metrics"
)

// Handler decodes frames from a Client and routes them. Decoded signals go
// to Signals in socket order; frames that fail to decode go to Errors and
// never stop the stream.
type Handler struct {
	client  *Client
	logger  *slog.Logger
	Signals chan Signal
	Errors  chan error
}

// NewHandler creates a handler for client.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:  client,
		logger:  logger,
		Signals: make(chan Signal, 32),
		Errors:  make(chan error, 8),
	}
}

// Start routes frames until the client's incoming channel closes, then
// closes Signals and Errors.
func (h *Handler) Start() {
	defer close(h.Signals)
	defer close(h.Errors)

	for frame := range h.client.Incoming() {
		sig, err := Decode(frame)
		if err != nil {
			metrics.SignalingDecodeErrorsTotal.Inc()
			h.logger.Warn("dropping signaling message", "error", err)

			var de *DecodeError
			if !errors.As(err, &de) {
				de = &DecodeError{Reason: "unexpected", Err: err}
			}
			// Errors are advisory; never block the signal stream on them.
			select {
			case h.Errors <- de:
			default:
			}
			continue
		}

		metrics.SignalingMessagesTotal.WithLabelValues(string(sig.Kind), "in").Inc()

		select {
		case h.Signals <- sig:
		case <-h.client.Done():
			return
		}
	}
}
