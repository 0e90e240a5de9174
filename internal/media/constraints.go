package media

// Constraints describe what to capture from the local camera and microphone.
type Constraints struct {
	Video VideoConstraints
	Audio AudioConstraints
}

type VideoConstraints struct {
	MaxWidth     int
	MaxHeight    int
	AspectRatio  float64
	MaxFrameRate float64
}

// IdealSize returns the largest width and height that fit the bounds at the
// requested aspect ratio.
func (v VideoConstraints) IdealSize() (width, height int) {
	width, height = v.MaxWidth, v.MaxHeight
	if v.AspectRatio <= 0 || width <= 0 || height <= 0 {
		return width, height
	}
	if w := int(float64(height) * v.AspectRatio); w <= width {
		return w, height
	}
	return width, int(float64(width) / v.AspectRatio)
}

type AudioConstraints struct {
	SampleSize       int
	ChannelCount     int
	EchoCancellation bool
}

// DefaultConstraints asks for up to 1280x720 at 4:3 and 30fps, with 16-bit
// stereo echo-cancelled audio.
func DefaultConstraints() Constraints {
	return Constraints{
		Video: VideoConstraints{
			MaxWidth:     1280,
			MaxHeight:    720,
			AspectRatio:  4.0 / 3.0,
			MaxFrameRate: 30,
		},
		Audio: AudioConstraints{
			SampleSize:       16,
			ChannelCount:     2,
			EchoCancellation: true,
		},
	}
}
