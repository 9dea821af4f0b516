// Package caps picks the concrete output geometry of the video source
// out of what the downstream peer accepts.
package caps

import (
	"errors"
	"fmt"

	"github.com/avsynctest/avsynctest/pkg/logger"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

// Preferred values used for fixation.
const (
	DefaultWidth  = 320
	DefaultHeight = 240
)

var DefaultRate = clock.Rational{Num: 30, Den: 1}

var ErrNoGeometry = errors.New("no usable geometry")

// Geometry is the negotiated video layout, fixed until the next negotiation.
type Geometry struct {
	Width  int
	Height int
	Rate   clock.Rational
}

func (g Geometry) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || g.Rate.Den <= 0 || g.Rate.Num < 0 {
		return fmt.Errorf("%w: %v", ErrNoGeometry, g)
	}
	return nil
}

func (g Geometry) String() string { return fmt.Sprintf("%dx%d@%v", g.Width, g.Height, g.Rate) }

// Candidate describes one acceptable family of geometries.
// Zero-valued fields accept anything.
type Candidate struct {
	Width  IntSet
	Height IntSet
	Rate   FractionSet
}

func (c Candidate) String() string {
	return fmt.Sprintf("width=%v, height=%v, framerate=%v", c.Width, c.Height, c.Rate)
}

// Fixed is the candidate that accepts exactly g.
func Fixed(g Geometry) Candidate {
	return Candidate{Width: Int(g.Width), Height: Int(g.Height), Rate: FractionList(g.Rate)}
}

// Fixate turns the candidates into one concrete geometry. The candidates
// are in order of the peer's preference; the first one that has a usable
// value for every field wins. Each field is set to the member nearest to
// DefaultWidth, DefaultHeight and DefaultRate, ties going to the lower value.
func Fixate(cands []Candidate) (Geometry, error) {
	for _, c := range cands {
		if g, ok := fixate(c); ok {
			return g, nil
		}
	}
	if len(cands) == 0 {
		return Geometry{}, fmt.Errorf("%w: no candidates", ErrNoGeometry)
	}
	return Geometry{}, fmt.Errorf("%w: %v", ErrNoGeometry, cands)
}

func fixate(c Candidate) (g Geometry, ok bool) {
	if g.Width, ok = c.Width.Nearest(DefaultWidth); !ok {
		return
	}
	if g.Height, ok = c.Height.Nearest(DefaultHeight); !ok {
		return
	}
	g.Rate, ok = c.Rate.Nearest(DefaultRate)
	return
}

// Configurer receives each newly fixed geometry.
type Configurer interface {
	Configure(Geometry) error
}

// Negotiator fixes a geometry and hands it over to the renderer,
// so the canvas never lags behind the negotiated layout.
type Negotiator struct {
	target Configurer
	log    *logger.Logger
}

func NewNegotiator(target Configurer, log *logger.Logger) *Negotiator {
	return &Negotiator{target: target, log: log}
}

func (n *Negotiator) Negotiate(cands []Candidate) (Geometry, error) {
	g, err := Fixate(cands)
	if err != nil {
		return Geometry{}, err
	}
	n.log.Debug().Msgf("fixate in=%v out=%v", cands, g)
	if err = n.target.Configure(g); err != nil {
		return Geometry{}, fmt.Errorf("configure %v: %w", g, err)
	}
	return g, nil
}
