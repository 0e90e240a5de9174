package peer

import (
	"strings"

	"github.com/SK124/Swamp/internal/version"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MetaChannelLabel is the data channel the remote side may open to exchange
// client metadata alongside the media.
const MetaChannelLabel = "swamp-meta"

const MessageTypeDeviceInfo = "device_info"

// MetaMessage is one msgpack frame on the meta channel.
type MetaMessage struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// DeviceInfo describes the client on the other end of the meta channel.
type DeviceInfo struct {
	DeviceName    string `msgpack:"deviceName"`
	DeviceVersion string `msgpack:"deviceVersion"`
	Role          string `msgpack:"role,omitempty"`
}

func (m MetaMessage) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

func NewMetaMessage(t string, payload any) (MetaMessage, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return MetaMessage{}, err
	}
	return MetaMessage{Type: t, Payload: b}, nil
}

func EncodeMeta(t string, payload any) ([]byte, error) {
	msg, err := NewMetaMessage(t, payload)
	if err != nil {
		return nil, NewError("create meta message", err)
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return nil, NewError("marshal meta message", err)
	}
	return data, nil
}

func ParseMeta(data []byte) (MetaMessage, error) {
	var msg MetaMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return MetaMessage{}, NewError("parse meta message", err)
	}
	return msg, nil
}

// LocalDeviceInfo describes this client.
func LocalDeviceInfo(role string) DeviceInfo {
	return DeviceInfo{
		DeviceName:    version.ClientName,
		DeviceVersion: strings.TrimPrefix(version.Version, "v"),
		Role:          role,
	}
}

func sendDeviceInfo(dc *webrtc.DataChannel, role string) error {
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	data, err := EncodeMeta(MessageTypeDeviceInfo, LocalDeviceInfo(role))
	if err != nil {
		return err
	}
	return dc.Send(data)
}
