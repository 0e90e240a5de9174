package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Event names the kind of a signaling message on the wire.
type Event string

const (
	EventOffer     Event = "offer"
	EventAnswer    Event = "answer"
	EventCandidate Event = "candidate"
)

// Envelope is the wire frame. Data holds the payload as a JSON-encoded
// string, so the payload is encoded twice.
type Envelope struct {
	Event Event  `json:"event"`
	Data  string `json:"data"`
}

// Signal is one decoded signaling message. Exactly one of Description or
// Candidate is set, matching Kind.
type Signal struct {
	Kind        Event
	Description *webrtc.SessionDescription
	Candidate   *webrtc.ICECandidateInit
}

// ErrUnknownEvent is returned for envelopes whose event is not recognised.
var ErrUnknownEvent = errors.New("unknown signaling event")

// DecodeError reports an inbound frame that could not be turned into a Signal.
type DecodeError struct {
	Event  Event
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode signaling message"
	if e.Event != "" {
		msg += " " + string(e.Event)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Offer wraps an offer description.
func Offer(sd webrtc.SessionDescription) Signal {
	return Signal{Kind: EventOffer, Description: &sd}
}

// Answer wraps an answer description.
func Answer(sd webrtc.SessionDescription) Signal {
	return Signal{Kind: EventAnswer, Description: &sd}
}

// Candidate wraps a trickled ICE candidate.
func Candidate(c webrtc.ICECandidateInit) Signal {
	return Signal{Kind: EventCandidate, Candidate: &c}
}

// Encode builds the wire frame for s.
func Encode(s Signal) ([]byte, error) {
	var payload any
	switch s.Kind {
	case EventOffer, EventAnswer:
		if s.Description == nil {
			return nil, fmt.Errorf("encode %s: missing session description", s.Kind)
		}
		payload = s.Description
	case EventCandidate:
		if s.Candidate == nil {
			return nil, fmt.Errorf("encode candidate: missing candidate")
		}
		payload = s.Candidate
	default:
		return nil, fmt.Errorf("encode %q: %w", s.Kind, ErrUnknownEvent)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", s.Kind, err)
	}
	return json.Marshal(Envelope{Event: s.Kind, Data: string(data)})
}

// Decode parses a wire frame. It never panics; anything that is not a
// well-formed offer, answer or candidate yields a *DecodeError.
func Decode(frame []byte) (Signal, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Signal{}, &DecodeError{Reason: "malformed envelope", Err: err}
	}

	switch env.Event {
	case EventOffer, EventAnswer:
		var sd webrtc.SessionDescription
		if err := json.Unmarshal([]byte(env.Data), &sd); err != nil {
			return Signal{}, &DecodeError{Event: env.Event, Reason: "malformed session description", Err: err}
		}
		if string(env.Event) != sd.Type.String() {
			return Signal{}, &DecodeError{Event: env.Event, Reason: fmt.Sprintf("description type %q does not match event", sd.Type)}
		}
		if sd.SDP == "" {
			return Signal{}, &DecodeError{Event: env.Event, Reason: "empty sdp"}
		}
		return Signal{Kind: env.Event, Description: &sd}, nil

	case EventCandidate:
		var c webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(env.Data), &c); err != nil {
			return Signal{}, &DecodeError{Event: env.Event, Reason: "malformed candidate", Err: err}
		}
		return Signal{Kind: EventCandidate, Candidate: &c}, nil

	case "":
		return Signal{}, &DecodeError{Reason: "missing event"}

	default:
		return Signal{}, &DecodeError{Event: env.Event, Reason: "unsupported event", Err: ErrUnknownEvent}
	}
}
