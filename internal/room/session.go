// Package room runs one room visit: resolve the swamp, capture media when
// broadcasting, then keep a peer connection open across socket closures.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SK124/Swamp/internal/api"
	"github.com/SK124/Swamp/internal/clock"
	"github.com/SK124/Swamp/internal/media"
	"github.com/SK124/Swamp/internal/metrics"
	"github.com/SK124/Swamp/internal/peer"
	"github.com/pion/webrtc/v4"
)

type Resolver interface {
	ResolveSwamp(ctx context.Context, id string) (api.Swamp, error)
}

type Acquirer interface {
	Acquire(ctx context.Context) (media.LocalStream, error)
}

// Connector opens one connection to a signaling address.
type Connector interface {
	Connect(ctx context.Context, addr string, generation uint64) (Conn, error)
}

// Session is one room visit. Fields are set before Run and not changed
// afterwards.
type Session struct {
	Role   Role
	RoomID string

	// StreamLink, when set for a viewer, is used as the signaling address
	// directly and resolution is skipped.
	StreamLink string

	Resolver     Resolver
	Acquirer     Acquirer
	SignalingURL func(uuid string) string
	ICE          func() webrtc.Configuration
	Policy       Policy
	Clock        clock.Clock
	Logger       *slog.Logger

	// NewConnector builds the connector once local media is known. Nil
	// uses a peer.Manager.
	NewConnector func(stream media.LocalStream, notify func(peer.Event)) Connector

	once   sync.Once
	events chan Event
	ctx    context.Context

	generation atomic.Uint64

	mu    sync.Mutex
	stats Stats
}

// Stats summarise a session for the exit report.
type Stats struct {
	SwampUUID   string
	StartedAt   time.Time
	Connects    int
	Reconnects  int
	StreamsSeen int
	MaxStreams  int
	Connected   time.Duration

	lastUp  time.Time
	seen    map[string]struct{}
	current int
}

func (s *Session) init() {
	s.once.Do(func() {
		s.events = make(chan Event, 128)
		if s.Logger == nil {
			s.Logger = slog.Default()
		}
		if s.Clock == nil {
			s.Clock = clock.Real()
		}
	})
}

// Events delivers session events. It is closed when Run returns. Callers
// must keep draining it while Run is active.
func (s *Session) Events() <-chan Event {
	s.init()
	return s.events
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.init()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	if !st.lastUp.IsZero() {
		st.Connected += s.Clock.Now().Sub(st.lastUp)
	}
	st.seen = nil
	return st
}

// Run resolves, acquires and connects, then reconnects on closure until ctx
// is done. A failed resolution never reaches the acquirer.
func (s *Session) Run(ctx context.Context) error {
	s.init()
	defer close(s.events)
	s.ctx = ctx

	logger := s.Logger.With("role", s.Role.String(), "swamp_id", s.RoomID)

	s.mu.Lock()
	s.stats = Stats{StartedAt: s.Clock.Now(), seen: make(map[string]struct{})}
	s.mu.Unlock()

	addr, err := s.resolve(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Error("failed to resolve swamp", "error", err)
		return err
	}

	var stream media.LocalStream
	if s.Role == Broadcaster {
		s.emit(Event{Kind: EventState, State: StateAcquiring})
		stream, err = s.Acquirer.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("failed to acquire local media", "error", err)
			s.emit(Event{Kind: EventState, State: StateNoPermission, Err: err})
			return err
		}
		defer stream.Close()
	}

	connector := s.connector(stream, logger)
	rec := &Reconnector{
		Policy: s.Policy,
		Clock:  s.Clock,
		Logger: logger,
		Connect: func(ctx context.Context, gen uint64) (Conn, error) {
			s.generation.Store(gen)
			s.emit(Event{Kind: EventState, State: StateConnecting, Generation: gen})
			return connector.Connect(ctx, addr, gen)
		},
		OnConnected: func(gen uint64) {
			s.mu.Lock()
			s.stats.Connects++
			s.stats.lastUp = s.Clock.Now()
			s.mu.Unlock()
			s.emit(Event{Kind: EventState, State: StateConnected, Generation: gen})
		},
		OnClosed: func(gen uint64, attempt int, delay time.Duration) {
			s.markDown()
			s.mu.Lock()
			s.stats.Reconnects++
			s.mu.Unlock()
			metrics.ReconnectsTotal.WithLabelValues(s.Role.String()).Inc()
			s.emit(Event{Kind: EventState, State: StateClosed, Generation: gen, Attempt: attempt, Delay: delay})
		},
	}

	err = rec.Run(ctx)
	s.markDown()
	if errors.Is(err, ErrRetriesExhausted) {
		s.emit(Event{Kind: EventState, State: StateRetriesExhausted, Err: err})
	}
	return err
}

func (s *Session) resolve(ctx context.Context) (string, error) {
	if s.Role == Viewer && s.StreamLink != "" {
		return s.StreamLink, nil
	}

	s.emit(Event{Kind: EventState, State: StateResolving})
	swamp, err := s.Resolver.ResolveSwamp(ctx, s.RoomID)
	switch {
	case errors.Is(err, api.ErrNoStream):
		s.emit(Event{Kind: EventState, State: StateNoStream, Err: err})
		return "", err
	case err != nil:
		s.emit(Event{Kind: EventState, State: StateResolutionFailed, Err: err})
		return "", err
	}

	s.mu.Lock()
	s.stats.SwampUUID = swamp.UUID
	s.mu.Unlock()
	s.emit(Event{Kind: EventState, State: StateResolving, SwampUUID: swamp.UUID})

	if s.SignalingURL == nil {
		return "", fmt.Errorf("no signaling address for swamp %s", swamp.UUID)
	}
	return s.SignalingURL(swamp.UUID), nil
}

func (s *Session) connector(stream media.LocalStream, logger *slog.Logger) Connector {
	if s.NewConnector != nil {
		return s.NewConnector(stream, s.onPeerEvent)
	}
	return managerConnector{&peer.Manager{
		ICE:    s.ICE,
		Stream: stream,
		Role:   s.Role.String(),
		Notify: s.onPeerEvent,
		Logger: logger,
	}}
}

// onPeerEvent runs on a connection's event loop. Events from a generation
// other than the current one are dropped.
func (s *Session) onPeerEvent(e peer.Event) {
	if e.Generation != s.generation.Load() {
		return
	}

	switch e.Kind {
	case peer.StreamAdded, peer.StreamRemoved:
		added := e.Kind == peer.StreamAdded
		s.mu.Lock()
		s.stats.current = e.Streams
		if added {
			if _, ok := s.stats.seen[e.StreamID]; !ok {
				s.stats.seen[e.StreamID] = struct{}{}
				s.stats.StreamsSeen++
			}
		}
		if e.Streams > s.stats.MaxStreams {
			s.stats.MaxStreams = e.Streams
		}
		s.mu.Unlock()
		s.emit(Event{Kind: EventStreams, Generation: e.Generation, StreamID: e.StreamID, Added: added, Streams: e.Streams})

	case peer.PeerDevice:
		s.emit(Event{Kind: EventPeerDevice, Generation: e.Generation, Device: e.Device})

	case peer.ConnectionClosed:
		s.mu.Lock()
		s.stats.current = 0
		s.mu.Unlock()
		s.emit(Event{Kind: EventStreams, Generation: e.Generation, Streams: 0})
	}
}

func (s *Session) markDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stats.lastUp.IsZero() {
		s.stats.Connected += s.Clock.Now().Sub(s.stats.lastUp)
		s.stats.lastUp = time.Time{}
	}
}

func (s *Session) emit(e Event) {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case s.events <- e:
	case <-ctx.Done():
	}
}

type managerConnector struct {
	m *peer.Manager
}

func (c managerConnector) Connect(ctx context.Context, addr string, gen uint64) (Conn, error) {
	conn, err := c.m.Connect(ctx, addr, gen)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
