package peer

// EventKind identifies what happened on a connection.
type EventKind int

const (
	StreamAdded EventKind = iota + 1
	StreamRemoved
	PeerDevice
	ConnectionClosed
)

func (k EventKind) String() string {
	switch k {
	case StreamAdded:
		return "stream_added"
	case StreamRemoved:
		return "stream_removed"
	case PeerDevice:
		return "peer_device"
	case ConnectionClosed:
		return "connection_closed"
	default:
		return "unknown"
	}
}

// Event is published by a Connection from its event loop.
type Event struct {
	Kind       EventKind
	Generation uint64
	StreamID   string
	Streams    int
	Device     *DeviceInfo
}
