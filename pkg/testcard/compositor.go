// Package testcard renders the video half of the sync test signal.
//
// The card is static for a given geometry: it is painted once per
// Configure onto an offscreen BGRx canvas and then copied verbatim into
// every output frame. The copy is only done when the frame layout
// matches the canvas exactly.
package testcard

import (
	"errors"
	"fmt"
	"image"

	"github.com/avsynctest/avsynctest/pkg/caps"
	"github.com/avsynctest/avsynctest/pkg/encoder/color/bgrx"
	"github.com/avsynctest/avsynctest/pkg/logger"
)

// State of the compositor lifecycle.
type State uint8

const (
	Uninitialized State = iota
	Ready
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Destroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

var (
	ErrResource           = errors.New("couldn't allocate canvas")
	ErrFormatIncompatible = errors.New("incompatible formats")
	ErrNotConfigured      = errors.New("compositor is not configured")
	ErrDestroyed          = errors.New("compositor is destroyed")
)

// Colors are big-endian ARGB, alpha is ignored.
const (
	DefaultForeground uint32 = 0xFFFFFFFF
	DefaultBackground uint32 = 0xFF000000

	// DefaultMaxBytes caps the canvas size (a bit over 8K UHD).
	DefaultMaxBytes = 256 << 20
)

type Compositor struct {
	canvas   *bgrx.BGRX
	geometry caps.Geometry
	state    State

	fg, bg   uint32
	maxBytes int

	log *logger.Logger
}

type Option func(*Compositor)

func WithColors(fg, bg uint32) Option { return func(c *Compositor) { c.fg, c.bg = fg, bg } }
func WithLogger(l *logger.Logger) Option {
	return func(c *Compositor) { c.log = l.Module("testcard") }
}
func WithMaxBytes(n int) Option { return func(c *Compositor) { c.maxBytes = n } }

func New(opts ...Option) *Compositor {
	c := &Compositor{
		fg:       DefaultForeground,
		bg:       DefaultBackground,
		maxBytes: DefaultMaxBytes,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configure replaces the canvas with a new one of the geometry size and
// paints the card on it. Calling it again with the same geometry
// yields the same pixels.
func (c *Compositor) Configure(g caps.Geometry) error {
	if c.state == Destroyed {
		return ErrDestroyed
	}
	c.release()

	canvas, err := c.allocate(g.Width, g.Height)
	if err != nil {
		c.state = Uninitialized
		c.log.Error().Err(err).Msgf("canvas %v", g)
		return err
	}
	c.canvas, c.geometry = canvas, g
	c.paint()
	c.state = Ready
	c.log.Debug().Msgf("canvas %v, stride %v, fg %08x, bg %08x", g, canvas.Stride, c.fg, c.bg)
	return nil
}

func (c *Compositor) allocate(w, h int) (*bgrx.BGRX, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: bad size %dx%d", ErrResource, w, h)
	}
	if w > c.maxBytes/bgrx.BytesPerPixel || h > c.maxBytes/bgrx.Stride(w) {
		return nil, fmt.Errorf("%w: %dx%d is over %d bytes", ErrResource, w, h, c.maxBytes)
	}
	return bgrx.New(image.Rect(0, 0, w, h)), nil
}

func (c *Compositor) paint() {
	b := c.canvas.Bounds()
	c.canvas.Fill(b, bgrx.FromARGB(c.bg))
	strokeMarker(c.canvas, Marker.Abs(b.Dx(), b.Dy()), bgrx.FromARGB(c.fg))
}

// RenderInto copies the card into a frame buffer of the given layout.
// Width, height and stride must match the canvas and dst must hold
// height*stride bytes, otherwise nothing is written.
func (c *Compositor) RenderInto(dst []byte, width, height, stride int) error {
	switch c.state {
	case Destroyed:
		return ErrDestroyed
	case Uninitialized:
		return ErrNotConfigured
	}
	cv := c.canvas
	cw, ch := cv.Rect.Dx(), cv.Rect.Dy()

	var err error
	switch {
	case cw != width:
		err = fmt.Errorf("%w: canvas width %d != buffer width %d", ErrFormatIncompatible, cw, width)
	case ch != height:
		err = fmt.Errorf("%w: canvas height %d != buffer height %d", ErrFormatIncompatible, ch, height)
	case cv.Stride != stride:
		err = fmt.Errorf("%w: canvas stride %d != buffer stride %d", ErrFormatIncompatible, cv.Stride, stride)
	case len(dst) < height*stride:
		err = fmt.Errorf("%w: buffer holds %d bytes, frame needs %d", ErrFormatIncompatible, len(dst), height*stride)
	}
	if err != nil {
		c.log.Error().Err(err).Send()
		return err
	}
	copy(dst, cv.Pix[:height*stride])
	return nil
}

// SetForeground changes the marker color for the next Configure.
func (c *Compositor) SetForeground(argb uint32) { c.fg = argb }

// SetBackground changes the fill color for the next Configure.
func (c *Compositor) SetBackground(argb uint32) { c.bg = argb }

func (c *Compositor) Colors() (fg, bg uint32) { return c.fg, c.bg }

// Destroy drops the canvas, the compositor can't be used after that.
func (c *Compositor) Destroy() {
	c.release()
	c.state = Destroyed
}

func (c *Compositor) release() {
	if c.canvas != nil {
		c.log.Debug().Msgf("release canvas %v", c.geometry)
	}
	c.canvas = nil
	c.geometry = caps.Geometry{}
}

func (c *Compositor) State() State            { return c.state }
func (c *Compositor) Geometry() caps.Geometry { return c.geometry }

// Canvas exposes the painted card, nil unless Ready.
func (c *Compositor) Canvas() image.Image {
	if c.canvas == nil {
		return nil
	}
	return c.canvas
}

// Stride of the canvas rows in bytes, 0 unless Ready.
func (c *Compositor) Stride() int {
	if c.canvas == nil {
		return 0
	}
	return c.canvas.Stride
}
