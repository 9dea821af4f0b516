package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/audio"

	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

// Encoding names a raw sample layout.
type Encoding string

const (
	S16LE Encoding = "S16LE"

	BytesPerSample = 2
	Channels       = 1

	DefaultSampleRate = 48000
)

var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Format is the only layout the ramp produces: S16LE mono.
// The sample rate is informational, the ramp period is in samples.
type Format struct {
	Encoding   Encoding
	Channels   int
	SampleRate int
}

func DefaultFormat() Format {
	return Format{Encoding: S16LE, Channels: Channels, SampleRate: DefaultSampleRate}
}

func (f Format) Validate() error {
	if f.Encoding != S16LE {
		return fmt.Errorf("%w: encoding %q", ErrUnsupportedFormat, f.Encoding)
	}
	if f.Channels != Channels {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	return nil
}

func (f Format) BytesPerFrame() int { return BytesPerSample * f.Channels }

// Samples returns the number of whole samples in nbytes.
func (f Format) Samples(nbytes int) int { return nbytes / f.BytesPerFrame() }

// Duration is the playback time of nbytes of audio.
func (f Format) Duration(nbytes int) time.Duration {
	return clock.Offset(0, f.Samples(nbytes), f.SampleRate).Duration
}

// Audio converts to the go-audio format description.
func (f Format) Audio() *audio.Format {
	return &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate}
}

func (f Format) String() string {
	return fmt.Sprintf("%s/%dch/%dHz", f.Encoding, f.Channels, f.SampleRate)
}
