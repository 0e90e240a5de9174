package media

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// LocalStream is captured local media. Close stops every track.
type LocalStream interface {
	ID() string
	Tracks() []webrtc.TrackLocal
	Close() error
}

// CodecRegistrar is implemented by streams whose encoders need specific
// codecs registered on the peer connection's media engine.
type CodecRegistrar interface {
	RegisterCodecs(m *webrtc.MediaEngine) error
}

// StaticStream is a LocalStream over tracks the caller already built.
type StaticStream struct {
	id     string
	tracks []webrtc.TrackLocal

	mu     sync.Mutex
	closed bool
}

func NewStaticStream(id string, tracks ...webrtc.TrackLocal) *StaticStream {
	return &StaticStream{id: id, tracks: tracks}
}

func (s *StaticStream) ID() string { return s.id }

func (s *StaticStream) Tracks() []webrtc.TrackLocal {
	out := make([]webrtc.TrackLocal, len(s.tracks))
	copy(out, s.tracks)
	return out
}

func (s *StaticStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *StaticStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
