package peer

import (
	"log/slog"
	"sync"

	"github.com/SK124/Swamp/internal/media"
	"github.com/SK124/Swamp/internal/metrics"
	"github.com/SK124/Swamp/internal/signaling"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// NewPeerConnection builds a peer connection. Codecs come from stream when
// it registers its own encoders, otherwise pion's defaults are used.
func NewPeerConnection(cfg webrtc.Configuration, stream media.LocalStream) (*webrtc.PeerConnection, error) {
	m := &webrtc.MediaEngine{}
	if reg, ok := stream.(media.CodecRegistrar); ok {
		if err := reg.RegisterCodecs(m); err != nil {
			return nil, NewError("register codecs", err)
		}
	} else if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, NewError("register codecs", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, NewError("register interceptors", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir))
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, NewError("create peer connection", err)
	}
	return pc, nil
}

// Connection is one peer connection and its signaling socket. A single
// event loop goroutine owns the peer connection; pion callbacks only
// forward into it.
type Connection struct {
	generation uint64
	role       string
	pc         *webrtc.PeerConnection
	client     *signaling.Client
	handler    *signaling.Handler
	streams    *RemoteStreamSet
	notify     func(Event)
	logger     *slog.Logger

	// Remote candidates that arrived before the remote description.
	pending []webrtc.ICECandidateInit

	localCandidates chan webrtc.ICECandidateInit
	remoteTracks    chan *webrtc.TrackRemote
	trackEnded      chan string
	peerDevices     chan DeviceInfo

	closeReq  chan struct{}
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

func newConnection(gen uint64, role string, pc *webrtc.PeerConnection, client *signaling.Client, notify func(Event), logger *slog.Logger) *Connection {
	if notify == nil {
		notify = func(Event) {}
	}
	c := &Connection{
		generation:      gen,
		role:            role,
		pc:              pc,
		client:          client,
		handler:         signaling.NewHandler(client, logger),
		streams:         NewRemoteStreamSet(),
		notify:          notify,
		logger:          logger,
		localCandidates: make(chan webrtc.ICECandidateInit, 16),
		remoteTracks:    make(chan *webrtc.TrackRemote, 8),
		trackEnded:      make(chan string, 8),
		peerDevices:     make(chan DeviceInfo, 1),
		closeReq:        make(chan struct{}),
		closing:         make(chan struct{}),
		done:            make(chan struct{}),
	}
	c.installCallbacks()
	return c
}

func (c *Connection) installCallbacks() {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		select {
		case c.localCandidates <- cand.ToJSON():
		case <-c.closing:
		}
	})

	c.pc.OnTrack(func(tr *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		select {
		case c.remoteTracks <- tr:
		case <-c.closing:
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Debug("peer connection state changed", "state", s.String())
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != MetaChannelLabel {
			return
		}
		dc.OnOpen(func() {
			if err := sendDeviceInfo(dc, c.role); err != nil {
				c.logger.Debug("failed to send device info", "error", err)
			}
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			meta, err := ParseMeta(msg.Data)
			if err != nil || meta.Type != MessageTypeDeviceInfo {
				return
			}
			var info DeviceInfo
			if err := meta.DecodePayload(&info); err != nil {
				return
			}
			select {
			case c.peerDevices <- info:
			case <-c.closing:
			}
		})
	})
}

// Generation identifies which attempt created this connection.
func (c *Connection) Generation() uint64 { return c.generation }

// Done is closed after teardown has finished: the peer connection is
// closed and the stream set is empty.
func (c *Connection) Done() <-chan struct{} { return c.done }

// Streams returns the remote stream ids in arrival order.
func (c *Connection) Streams() []string { return c.streams.IDs() }

// State reports the peer connection state.
func (c *Connection) State() webrtc.PeerConnectionState { return c.pc.ConnectionState() }

// Close tears the connection down and waits until teardown has finished.
// It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.closeReq) })
	<-c.done
}

// run is the event loop. It returns when the socket closes or Close is
// called, and always tears down before returning.
func (c *Connection) run() {
	defer c.teardown()

	signals := c.handler.Signals
	decodeErrs := c.handler.Errors

	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				return
			}
			c.handleSignal(sig)

		case err, ok := <-decodeErrs:
			if !ok {
				decodeErrs = nil
				continue
			}
			c.logger.Debug("ignored malformed signaling message", "error", err)

		case cand := <-c.localCandidates:
			if err := c.client.Send(signaling.Candidate(cand)); err != nil {
				c.logger.Debug("failed to send local candidate", "error", err)
			}

		case tr := <-c.remoteTracks:
			c.addTrack(tr)

		case id := <-c.trackEnded:
			if c.streams.RemoveTrack(id) {
				metrics.RemoteStreams.Dec()
				c.notify(Event{Kind: StreamRemoved, Generation: c.generation, StreamID: id, Streams: c.streams.Len()})
			}

		case info := <-c.peerDevices:
			c.notify(Event{Kind: PeerDevice, Generation: c.generation, Device: &info})

		case <-c.client.Done():
			return

		case <-c.closeReq:
			return
		}
	}
}

func (c *Connection) handleSignal(sig signaling.Signal) {
	var err error
	switch sig.Kind {
	case signaling.EventOffer:
		err = c.answer(*sig.Description)
	case signaling.EventCandidate:
		err = c.addRemoteCandidate(*sig.Candidate)
	case signaling.EventAnswer:
		if c.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
			err = WrapError("handle answer", ErrUnexpectedSignal, "no local offer outstanding")
			break
		}
		if err = c.pc.SetRemoteDescription(*sig.Description); err == nil {
			c.flushCandidates()
		}
	}
	if err != nil {
		c.logger.Warn("signaling message not applied", "event", sig.Kind, "error", err)
	}
}

// answer applies a remote offer and replies. Local tracks were attached
// when the connection was created, so they are part of every answer.
func (c *Connection) answer(offer webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return NewError("set remote description", err)
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return NewError("create answer", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return NewError("set local description", err)
	}
	if err := c.client.Send(signaling.Answer(answer)); err != nil {
		return NewError("send answer", err)
	}

	c.flushCandidates()
	return nil
}

func (c *Connection) addRemoteCandidate(cand webrtc.ICECandidateInit) error {
	if c.pc.RemoteDescription() == nil {
		c.pending = append(c.pending, cand)
		metrics.BufferedCandidatesTotal.Inc()
		return nil
	}
	if err := c.pc.AddICECandidate(cand); err != nil {
		return NewError("add ICE candidate", err)
	}
	return nil
}

func (c *Connection) flushCandidates() {
	pending := c.pending
	c.pending = nil
	for _, cand := range pending {
		if err := c.pc.AddICECandidate(cand); err != nil {
			c.logger.Debug("failed to add buffered candidate", "error", err)
		}
	}
}

func (c *Connection) addTrack(tr *webrtc.TrackRemote) {
	if tr.Kind() != webrtc.RTPCodecTypeVideo {
		go drain(tr)
		return
	}

	id := tr.StreamID()
	if c.streams.AddTrack(id) {
		metrics.RemoteStreams.Inc()
		c.notify(Event{Kind: StreamAdded, Generation: c.generation, StreamID: id, Streams: c.streams.Len()})
	}

	go func() {
		drain(tr)
		select {
		case c.trackEnded <- id:
		case <-c.closing:
		}
	}()
}

// drain reads a remote track until it ends.
func drain(tr *webrtc.TrackRemote) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := tr.Read(buf); err != nil {
			return
		}
	}
}

func (c *Connection) teardown() {
	close(c.closing)
	c.client.Close()

	if err := c.pc.Close(); err != nil {
		c.logger.Debug("error closing peer connection", "error", err)
	}
	metrics.ActivePeerConnections.Dec()

	cleared := c.streams.Clear()
	metrics.RemoteStreams.Sub(float64(len(cleared)))
	c.pending = nil

	c.logger.Debug("connection torn down", "generation", c.generation, "streams_cleared", len(cleared))
	c.notify(Event{Kind: ConnectionClosed, Generation: c.generation})
	close(c.done)
}
