// Package devices captures the local camera and microphone with
// pion/mediadevices, encoding video as VP8 and audio as Opus.
package devices

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/SK124/Swamp/internal/media"
	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers camera drivers
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers microphone drivers
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

const (
	videoBitRate = 1_000_000
	audioBitRate = 64_000
	keyFrames    = 60
)

// Devices is the production media.Devices.
type Devices struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Devices {
	if logger == nil {
		logger = slog.Default()
	}
	return &Devices{logger: logger}
}

// GetUserMedia opens one camera and one microphone matching c.
func (d *Devices) GetUserMedia(c media.Constraints) (media.LocalStream, error) {
	selector, err := newCodecSelector()
	if err != nil {
		return nil, err
	}

	width, height := c.Video.IdealSize()
	if c.Audio.EchoCancellation {
		d.logger.Debug("echo cancellation is left to the capture device")
	}

	ms, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			mc.Width = prop.IntRanged{Max: c.Video.MaxWidth, Ideal: width}
			mc.Height = prop.IntRanged{Max: c.Video.MaxHeight, Ideal: height}
			mc.FrameRate = prop.FloatRanged{Max: float32(c.Video.MaxFrameRate), Ideal: float32(c.Video.MaxFrameRate)}
		},
		Audio: func(mc *mediadevices.MediaTrackConstraints) {
			mc.SampleSize = prop.Int(c.Audio.SampleSize)
			mc.ChannelCount = prop.Int(c.Audio.ChannelCount)
			mc.Latency = prop.Duration(20 * time.Millisecond)
		},
		Codec: selector,
	})
	if err != nil {
		return nil, mapError(err)
	}

	s := &stream{id: uuid.NewString(), ms: ms, selector: selector}
	for _, t := range ms.GetTracks() {
		t.OnEnded(func(err error) {
			if err != nil {
				d.logger.Warn("local track ended", "track_id", t.ID(), "error", err)
			}
		})
	}

	d.logger.Info("capturing local media", "stream_id", s.id, "width", width, "height", height)
	return s, nil
}

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	vp8, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("failed to create VP8 params: %w", err)
	}
	vp8.BitRate = videoBitRate
	vp8.KeyFrameInterval = keyFrames

	op, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("failed to create Opus params: %w", err)
	}
	op.BitRate = audioBitRate

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vp8),
		mediadevices.WithAudioEncoders(&op),
	), nil
}

func mapError(err error) error {
	if errors.Is(err, fs.ErrPermission) || strings.Contains(strings.ToLower(err.Error()), "permission denied") {
		return fmt.Errorf("%w: %w", media.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", media.ErrNoDevice, err)
}

type stream struct {
	id       string
	ms       mediadevices.MediaStream
	selector *mediadevices.CodecSelector
}

func (s *stream) ID() string { return s.id }

func (s *stream) Tracks() []webrtc.TrackLocal {
	tracks := s.ms.GetTracks()
	out := make([]webrtc.TrackLocal, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out
}

// RegisterCodecs registers the encoders' codecs on m.
func (s *stream) RegisterCodecs(m *webrtc.MediaEngine) error {
	s.selector.Populate(m)
	return nil
}

func (s *stream) Close() error {
	var errs []error
	for _, t := range s.ms.GetTracks() {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
