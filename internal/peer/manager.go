package peer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SK124/Swamp/internal/media"
	"github.com/SK124/Swamp/internal/metrics"
	"github.com/SK124/Swamp/internal/signaling"
	"github.com/pion/webrtc/v4"
)

// Manager establishes connections for one room visit.
type Manager struct {
	// ICE returns the configuration for the next connection, so edits to
	// the config file apply on reconnect.
	ICE func() webrtc.Configuration

	// Stream is attached to every connection. Nil for viewers.
	Stream media.LocalStream

	Role   string
	Notify func(Event)
	Logger *slog.Logger
}

// Connect creates a peer connection, attaches local tracks, then opens the
// signaling socket at addr and starts the event loop. Tracks are attached
// before the socket opens, so no answer can be produced without them.
func (m *Manager) Connect(ctx context.Context, addr string, generation uint64) (*Connection, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("generation", generation)

	var cfg webrtc.Configuration
	if m.ICE != nil {
		cfg = m.ICE()
	}

	metrics.ConnectionAttemptsTotal.WithLabelValues(m.Role).Inc()

	pc, err := NewPeerConnection(cfg, m.Stream)
	if err != nil {
		return nil, err
	}

	if m.Stream != nil {
		for _, track := range m.Stream.Tracks() {
			sender, err := pc.AddTrack(track)
			if err != nil {
				pc.Close()
				return nil, WrapError("add track", err, track.ID())
			}
			go readRTCP(sender)
		}
	}

	client := signaling.NewClient(addr, logger)
	if err := client.Dial(ctx); err != nil {
		pc.Close()
		return nil, WrapError("dial signaling", ErrConnectFailed, err.Error())
	}

	metrics.ActivePeerConnections.Inc()

	c := newConnection(generation, m.Role, pc, client, m.Notify, logger)
	go c.handler.Start()
	go c.run()

	logger.Debug("connection established", "addr", addr)
	return c, nil
}

// readRTCP drains RTCP so sender interceptors keep running.
func readRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// Conn is a connection whose Close waits for teardown and whose Done is
// closed once teardown has finished.
type Conn interface {
	Close()
	Done() <-chan struct{}
}

// Handle owns at most one live connection.
type Handle[C Conn] struct {
	mu      sync.Mutex
	current C
	live    bool
}

// Replace closes the current connection, waits for its teardown, and only
// then calls create. Two live connections never coexist.
func (h *Handle[C]) Replace(create func() (C, error)) (C, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closeLocked()

	c, err := create()
	if err != nil {
		var zero C
		return zero, err
	}
	h.current, h.live = c, true
	return c, nil
}

// Current returns the owned connection and whether there is one.
func (h *Handle[C]) Current() (C, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.live
}

// Close closes the owned connection and waits for teardown.
func (h *Handle[C]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked()
}

func (h *Handle[C]) closeLocked() {
	if !h.live {
		return
	}
	h.current.Close()
	var zero C
	h.current, h.live = zero, false
}
