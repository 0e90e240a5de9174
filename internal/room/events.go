package room

import (
	"time"

	"github.com/SK124/Swamp/internal/peer"
)

// Role is which side of the media session this client plays.
type Role int

const (
	Broadcaster Role = iota
	Viewer
)

func (r Role) String() string {
	if r == Broadcaster {
		return "broadcaster"
	}
	return "viewer"
}

// State is the session phase shown to the user.
type State int

const (
	StateResolving State = iota
	StateAcquiring
	StateConnecting
	StateConnected
	StateClosed
	StateResolutionFailed
	StateNoStream
	StateNoPermission
	StateRetriesExhausted
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAcquiring:
		return "acquiring"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateResolutionFailed:
		return "resolution_failed"
	case StateNoStream:
		return "no_stream"
	case StateNoPermission:
		return "no_permission"
	case StateRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session ends in this state.
func (s State) Terminal() bool {
	switch s {
	case StateResolutionFailed, StateNoStream, StateNoPermission, StateRetriesExhausted:
		return true
	}
	return false
}

// EventKind says which fields of an Event are meaningful.
type EventKind int

const (
	EventState EventKind = iota
	EventStreams
	EventPeerDevice
)

// Event is published by a Session for the UI.
type Event struct {
	Kind       EventKind
	State      State
	Generation uint64

	// EventState with StateClosed: when and which attempt comes next.
	Delay   time.Duration
	Attempt int

	// EventStreams: the stream that changed and the resulting count.
	StreamID string
	Added    bool
	Streams  int

	Device *peer.DeviceInfo
	Err    error

	// Set once resolution succeeded.
	SwampUUID string
}
