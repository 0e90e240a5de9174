package room

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/SK124/Swamp/internal/api"
	"github.com/SK124/Swamp/internal/clock"
	"github.com/SK124/Swamp/internal/media"
	"github.com/SK124/Swamp/internal/peer"
	"github.com/SK124/Swamp/internal/signaling/signalingtest"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	swamp api.Swamp
	err   error
}

func (r stubResolver) ResolveSwamp(context.Context, string) (api.Swamp, error) {
	return r.swamp, r.err
}

type countingAcquirer struct {
	mu     sync.Mutex
	calls  int
	stream media.LocalStream
	err    error
}

func (a *countingAcquirer) Acquire(context.Context) (media.LocalStream, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.stream, a.err
}

func (a *countingAcquirer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// recordingConnector hands out fakeConns and keeps the notify hook.
type recordingConnector struct {
	mu     sync.Mutex
	stream media.LocalStream
	notify func(peer.Event)
	addrs  []string
	conns  chan *fakeConn
}

func (c *recordingConnector) Connect(_ context.Context, addr string, gen uint64) (Conn, error) {
	c.mu.Lock()
	c.addrs = append(c.addrs, addr)
	c.mu.Unlock()
	fc := newFakeConn(gen)
	c.conns <- fc
	return fc, nil
}

func newSession(role Role, res Resolver, acq Acquirer, conn *recordingConnector) *Session {
	return &Session{
		Role:         role,
		RoomID:       "123456",
		Resolver:     res,
		Acquirer:     acq,
		SignalingURL: func(uuid string) string { return fmt.Sprintf("ws://relay/room/%s/websocket", uuid) },
		Policy:       Fixed(time.Second),
		Clock:        clock.Fake(epoch),
		NewConnector: func(stream media.LocalStream, notify func(peer.Event)) Connector {
			conn.stream = stream
			conn.notify = notify
			return conn
		},
	}
}

func collect(s *Session) (<-chan []Event, func() []Event) {
	out := make(chan []Event, 1)
	var mu sync.Mutex
	var got []Event
	go func() {
		for e := range s.Events() {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}
		mu.Lock()
		out <- got
		mu.Unlock()
	}()
	return out, func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), got...)
	}
}

func states(events []Event) []State {
	var out []State
	for _, e := range events {
		if e.Kind == EventState {
			out = append(out, e.State)
		}
	}
	return out
}

func TestResolutionFailureNeverAcquires(t *testing.T) {
	acq := &countingAcquirer{}
	conn := &recordingConnector{conns: make(chan *fakeConn, 4)}
	s := newSession(Broadcaster, stubResolver{err: api.ErrResolutionFailed}, acq, conn)
	all, _ := collect(s)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, api.ErrResolutionFailed)
	assert.Zero(t, acq.Calls())
	assert.Empty(t, conn.conns)

	assert.Equal(t, []State{StateResolving, StateResolutionFailed}, states(<-all))
}

func TestNoStreamForSwamp(t *testing.T) {
	conn := &recordingConnector{conns: make(chan *fakeConn, 4)}
	s := newSession(Viewer, stubResolver{err: api.ErrNoStream}, nil, conn)
	all, _ := collect(s)

	assert.ErrorIs(t, s.Run(context.Background()), api.ErrNoStream)
	assert.Contains(t, states(<-all), StateNoStream)
}

func TestPermissionDenied(t *testing.T) {
	acq := &countingAcquirer{err: media.ErrPermissionDenied}
	conn := &recordingConnector{conns: make(chan *fakeConn, 4)}
	s := newSession(Broadcaster, stubResolver{swamp: api.Swamp{UUID: "u-1"}}, acq, conn)
	all, _ := collect(s)

	assert.ErrorIs(t, s.Run(context.Background()), media.ErrPermissionDenied)
	assert.Equal(t, 1, acq.Calls())
	assert.Empty(t, conn.conns)

	got := states(<-all)
	assert.Equal(t, StateNoPermission, got[len(got)-1])
	assert.True(t, StateNoPermission.Terminal())
}

func TestBroadcasterConnectsWithLocalStream(t *testing.T) {
	local := media.NewStaticStream("local")
	acq := &countingAcquirer{stream: local}
	conn := &recordingConnector{conns: make(chan *fakeConn, 4)}
	s := newSession(Broadcaster, stubResolver{swamp: api.Swamp{ID: 123456, UUID: "u-1"}}, acq, conn)
	all, snapshot := collect(s)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()

	<-conn.conns
	require.Eventually(t, func() bool {
		got := states(snapshot())
		return len(got) > 0 && got[len(got)-1] == StateConnected
	}, 2*time.Second, 10*time.Millisecond)

	assert.Same(t, local, conn.stream)
	assert.Equal(t, []string{"ws://relay/room/u-1/websocket"}, conn.addrs)

	cancel()
	require.NoError(t, <-result)
	assert.True(t, local.Closed(), "local tracks stopped on teardown")

	events := <-all
	for _, e := range events {
		if e.Kind == EventStreams {
			t.Fatalf("no streams expected, got %+v", e)
		}
	}
	st := s.Stats()
	assert.Equal(t, "u-1", st.SwampUUID)
	assert.Equal(t, 1, st.Connects)
}

func TestStaleGenerationEventsAreDropped(t *testing.T) {
	conn := &recordingConnector{conns: make(chan *fakeConn, 4)}
	s := newSession(Viewer, stubResolver{swamp: api.Swamp{UUID: "u-1"}}, nil, conn)
	clk := s.Clock.(*clock.FakeClock)
	_, snapshot := collect(s)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	first := <-conn.conns
	first.Close()
	clk.WaitForTimers(1)
	clk.Advance(time.Second)
	<-conn.conns

	conn.notify(peer.Event{Kind: peer.StreamAdded, Generation: 1, StreamID: "old", Streams: 1})
	conn.notify(peer.Event{Kind: peer.StreamAdded, Generation: 2, StreamID: "new", Streams: 1})

	require.Eventually(t, func() bool {
		for _, e := range snapshot() {
			if e.Kind == EventStreams && e.StreamID == "new" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	for _, e := range snapshot() {
		assert.NotEqual(t, "old", e.StreamID)
	}
	assert.Equal(t, 1, s.Stats().StreamsSeen)
}

func TestViewerReconnectsOverSignalingSocket(t *testing.T) {
	srv := signalingtest.NewServer(t)
	clk := clock.Fake(epoch)

	s := &Session{
		Role:       Viewer,
		StreamLink: srv.URL("room-uuid"),
		ICE:        func() webrtc.Configuration { return webrtc.Configuration{} },
		Policy:     Fixed(time.Second),
		Clock:      clk,
	}
	_, snapshot := collect(s)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Run(ctx) }()

	srv.Accept(t, 5*time.Second).Close()

	require.Eventually(t, func() bool {
		for _, e := range snapshot() {
			if e.Kind == EventState && e.State == StateClosed {
				return e.Delay == time.Second && e.Generation == 1
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	clk.WaitForTimers(1)
	require.Eventually(t, func() bool { return srv.Conns("room-uuid") == 0 }, 5*time.Second, 10*time.Millisecond,
		"old socket gone before the timer fires")
	clk.Advance(time.Second)

	second := srv.Accept(t, 5*time.Second)
	assert.Equal(t, "room-uuid", second.Room)

	require.Eventually(t, func() bool {
		for _, e := range snapshot() {
			if e.Kind == EventState && e.State == StateConnected && e.Generation == 2 {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-result)
	assert.Equal(t, 1, s.Stats().Reconnects)
}
