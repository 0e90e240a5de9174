package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/SK124/Swamp/internal/peer"
	"github.com/SK124/Swamp/internal/room"
)

// Tone picks a banner style.
type Tone int

const (
	ToneInfo Tone = iota
	ToneError
)

// Banner is a block of text shown above the stream list.
type Banner struct {
	Tone  Tone
	Lines []string
}

func (b Banner) View() string {
	style := InfoBannerStyle
	if b.Tone == ToneError {
		style = ErrorBannerStyle
	}
	return style.Render(strings.Join(b.Lines, "\n"))
}

// Status is what the room view knows about a session, folded from its
// events.
type Status struct {
	Role         room.Role
	State        room.State
	SwampUUID    string
	Generation   uint64
	Streams      []string
	Peer         *peer.DeviceInfo
	Err          error
	Delay        time.Duration
	Attempt      int
	FallbackLink string
	RoomLink     string
}

// Apply folds one session event into s.
func (s *Status) Apply(e room.Event) {
	switch e.Kind {
	case room.EventState:
		s.State = e.State
		s.Err = e.Err
		if e.Generation != 0 {
			s.Generation = e.Generation
		}
		if e.SwampUUID != "" {
			s.SwampUUID = e.SwampUUID
		}
		if e.State == room.StateClosed {
			s.Delay = e.Delay
			s.Attempt = e.Attempt
			s.Streams = nil
			s.Peer = nil
		}

	case room.EventStreams:
		switch {
		case e.StreamID == "" && e.Streams == 0:
			s.Streams = nil
		case e.Added:
			for _, id := range s.Streams {
				if id == e.StreamID {
					return
				}
			}
			s.Streams = append(s.Streams, e.StreamID)
		default:
			for i, id := range s.Streams {
				if id == e.StreamID {
					s.Streams = append(s.Streams[:i:i], s.Streams[i+1:]...)
					break
				}
			}
		}

	case room.EventPeerDevice:
		s.Peer = e.Device
	}
}

// Viewers is the number of remote streams currently shown.
func (s *Status) Viewers() int { return len(s.Streams) }

// Banners returns the banners for the current status, most important first.
func (s *Status) Banners() []Banner {
	switch s.State {
	case room.StateResolutionFailed:
		lines := []string{"Failed to fetch swamp details."}
		if s.Err != nil {
			lines = append(lines, s.Err.Error())
		}
		return []Banner{{Tone: ToneError, Lines: lines}}

	case room.StateNoStream:
		return []Banner{{Tone: ToneError, Lines: []string{
			"There is no stream for the given Stream Link.",
			"Please join another stream room.",
		}}}

	case room.StateNoPermission:
		lines := []string{"Camera and microphone permissions are needed to join the room."}
		if s.FallbackLink != "" {
			lines = append(lines, "Otherwise, you can join the stream as a viewer: "+IconLink+" "+s.FallbackLink)
		}
		return []Banner{{Tone: ToneInfo, Lines: lines}}

	case room.StateClosed:
		next := "Reconnecting..."
		if s.Delay > 0 {
			next = fmt.Sprintf("Reconnecting in %s (attempt %d).", s.Delay, s.Attempt)
		}
		return []Banner{{Tone: ToneError, Lines: []string{"Connection is closed!", next}}}

	case room.StateRetriesExhausted:
		return []Banner{{Tone: ToneError, Lines: []string{
			"Connection is closed!",
			"Please refresh the page.",
		}}}

	case room.StateResolving, room.StateAcquiring:
		return nil
	}

	if len(s.Streams) > 0 {
		return nil
	}
	if s.Role == room.Broadcaster {
		return []Banner{{Tone: ToneInfo, Lines: []string{
			"No other streamer is in the room.",
			"Share your room link to invite your friends.",
			"Share your viewer link with your viewers.",
		}}}
	}
	return []Banner{{Tone: ToneInfo, Lines: []string{
		"Hey! No streamer in the room.",
		"Please wait for the streamer.",
	}}}
}
