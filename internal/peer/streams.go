package peer

import "sync"

// RemoteStreamSet holds the remote streams of one peer connection in
// arrival order. A stream id appears at most once; it stays in the set while
// at least one of its video tracks is live.
type RemoteStreamSet struct {
	mu     sync.Mutex
	order  []string
	tracks map[string]int
}

func NewRemoteStreamSet() *RemoteStreamSet {
	return &RemoteStreamSet{tracks: make(map[string]int)}
}

// AddTrack records a live track for streamID and reports whether the stream
// is new to the set.
func (s *RemoteStreamSet) AddTrack(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.tracks[streamID]
	s.tracks[streamID] = n + 1
	if ok {
		return false
	}
	s.order = append(s.order, streamID)
	return true
}

// RemoveTrack drops one live track of streamID and reports whether that was
// the stream's last track, removing the stream.
func (s *RemoteStreamSet) RemoveTrack(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.tracks[streamID]
	if !ok {
		return false
	}
	if n > 1 {
		s.tracks[streamID] = n - 1
		return false
	}

	delete(s.tracks, streamID)
	for i, id := range s.order {
		if id == streamID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *RemoteStreamSet) Contains(streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tracks[streamID]
	return ok
}

func (s *RemoteStreamSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// IDs returns the stream ids in arrival order.
func (s *RemoteStreamSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clear empties the set and returns what it held.
func (s *RemoteStreamSet) Clear() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.order
	s.order = nil
	s.tracks = make(map[string]int)
	return out
}
