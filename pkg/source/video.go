package source

import (
	"fmt"

	"github.com/avsynctest/avsynctest/pkg/caps"
	"github.com/avsynctest/avsynctest/pkg/logger"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
	"github.com/avsynctest/avsynctest/pkg/testcard"
)

// Video produces test card frames, one per Fill, timed by the frame rate.
type Video struct {
	card     *testcard.Compositor
	neg      *caps.Negotiator
	geometry caps.Geometry
	frames   uint64

	sync    *SyncPoints
	pending bool

	log *logger.Logger
}

func NewVideo(card *testcard.Compositor, opts ...Option) *Video {
	o := newOptions(opts)
	log := o.log.Module("video")
	return &Video{
		card: card,
		neg:  caps.NewNegotiator(card, log),
		sync: o.syncPoints,
		log:  log,
	}
}

// Negotiate fixes the output geometry and rebuilds the card for it.
// A failed fixation keeps the current geometry, a failed rebuild leaves
// the source unnegotiated.
func (v *Video) Negotiate(cands []caps.Candidate) (caps.Geometry, error) {
	g, err := v.neg.Negotiate(cands)
	if err != nil {
		if !v.Negotiated() {
			v.geometry = caps.Geometry{}
		}
		v.log.Warn().Err(err).Msg("negotiation failed")
		return g, err
	}
	v.geometry = g
	v.pending = v.sync != nil
	v.log.Info().Msgf("negotiated %v", g)
	return g, nil
}

func (v *Video) Negotiated() bool { return v.card.State() == testcard.Ready }

func (v *Video) Geometry() caps.Geometry { return v.geometry }

// FrameSize is the number of bytes a frame buffer needs.
func (v *Video) FrameSize() int { return v.geometry.Height * v.card.Stride() }

// Frames is the number of frames produced since the start.
func (v *Video) Frames() uint64 { return v.frames }

// Fill renders the next frame into buf. Still image rates produce a single
// frame and then ErrEndOfStream.
func (v *Video) Fill(buf *Buffer) error {
	if !v.Negotiated() {
		return ErrNotNegotiated
	}
	rate := v.geometry.Rate
	if rate.IsZero() && v.frames >= 1 {
		v.log.Debug().Msgf("eos: 0 framerate, frame %d", v.frames)
		return ErrEndOfStream
	}

	buf.Timing = clock.DeriveTiming(v.frames, rate)
	buf.Offset = v.frames
	n := v.frames
	v.frames++

	if err := v.card.RenderInto(buf.Data, buf.Width, buf.Height, buf.Stride); err != nil {
		return fmt.Errorf("frame %d: %w", n, err)
	}
	if v.pending {
		v.pending = false
		v.sync.Emit(SyncPoint{Source: KindVideo, Offset: n, Timing: buf.Timing})
	}
	return nil
}

// Reset restarts the frame count.
func (v *Video) Reset() {
	v.frames = 0
	v.pending = v.sync != nil && v.Negotiated()
}

// Close destroys the card.
func (v *Video) Close() { v.card.Destroy() }
