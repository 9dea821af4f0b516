package source

import (
	"errors"
	"fmt"

	"github.com/avsynctest/avsynctest/pkg/logger"
	"github.com/avsynctest/avsynctest/pkg/media/audio"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

var ErrFreqRange = errors.New("freq out of range")

// Audio produces the sawtooth ramp. The phase carries over between
// buffers, the host times the buffers from their sample offset.
type Audio struct {
	format  audio.Format
	counter uint8
	offset  uint64
	freq    float64

	sync *SyncPoints
	log  *logger.Logger
}

func NewAudio(opts ...Option) *Audio {
	o := newOptions(opts)
	return &Audio{
		format: audio.DefaultFormat(),
		sync:   o.syncPoints,
		log:    o.log.Module("audio"),
	}
}

func (a *Audio) SetFormat(f audio.Format) error {
	if err := f.Validate(); err != nil {
		return err
	}
	a.format = f
	a.log.Debug().Msgf("format %v", f)
	return nil
}

func (a *Audio) Format() audio.Format { return a.format }

// SetFreq stores the nominal test signal frequency in [0, 1].
// The ramp doesn't depend on it.
func (a *Audio) SetFreq(f float64) error {
	if !(f >= 0 && f <= 1) {
		return fmt.Errorf("%w: %v", ErrFreqRange, f)
	}
	a.freq = f
	return nil
}

func (a *Audio) Freq() float64 { return a.freq }

// Offset is the number of samples produced since the start.
func (a *Audio) Offset() uint64 { return a.offset }

// Fill writes the next len(buf.Data)/2 ramp samples into buf.
func (a *Audio) Fill(buf *Buffer) error {
	n := a.format.Samples(len(buf.Data))
	start, offset := a.counter, a.offset

	a.counter = audio.Ramp(buf.Data, a.counter)
	a.offset += uint64(n)
	buf.Offset = offset
	buf.Timing = clock.Unset

	if a.sync != nil {
		a.emitWraps(start, offset, n)
	}
	return nil
}

func (a *Audio) emitWraps(counter uint8, offset uint64, n int) {
	wraps := audio.Wraps(counter, n)
	first := uint64((audio.Period - int(counter)) % audio.Period)
	for i := 0; i < wraps; i++ {
		at := offset + first + uint64(i*audio.Period)
		a.sync.Emit(SyncPoint{
			Source: KindAudio,
			Offset: at,
			Timing: clock.Offset(at, 0, a.format.SampleRate),
		})
	}
}

// Reset restarts the ramp from zero.
func (a *Audio) Reset() {
	a.counter = 0
	a.offset = 0
}
