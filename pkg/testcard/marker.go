package testcard

import (
	"image"
	"math"

	"golang.org/x/image/vector"

	"github.com/avsynctest/avsynctest/pkg/encoder/color/bgrx"
)

// Rect is a rectangle in fractions of the frame size.
type Rect struct {
	Top, Left, Width, Height float64
}

// Marker is where the flash rectangle sits on the card.
var Marker = Rect{Top: 0.166, Left: 0.070, Width: 0.437, Height: 0.283}

// LineWidth of the marker outline in pixels, centered on the edge.
const LineWidth = 2.0

// AbsRect is a rectangle in pixels.
type AbsRect struct {
	X, Y, W, H float64
}

// Abs converts r into pixels of a w×h frame.
func (r Rect) Abs(w, h int) AbsRect {
	return AbsRect{
		X: r.Left * float64(w),
		Y: r.Top * float64(h),
		W: r.Width * float64(w),
		H: r.Height * float64(h),
	}
}

// Bounds returns the pixels touched by an outline of the given width.
func (r AbsRect) Bounds(lineWidth float64) image.Rectangle {
	hw := lineWidth / 2
	return image.Rect(
		floor(r.X-hw), floor(r.Y-hw),
		ceil(r.X+r.W+hw), ceil(r.Y+r.H+hw),
	)
}

// outline builds the stroke of r as two nested rectangles of opposite
// winding, so only the band between them gets coverage. Both rectangles
// are clipped to the rasterizer size.
func outline(z *vector.Rasterizer, r AbsRect, lineWidth float64) {
	size := z.Size()
	clip := func(v float64, max int) float32 {
		return float32(math.Min(math.Max(v, 0), float64(max)))
	}
	hw := lineWidth / 2
	ox0, oy0 := clip(r.X-hw, size.X), clip(r.Y-hw, size.Y)
	ox1, oy1 := clip(r.X+r.W+hw, size.X), clip(r.Y+r.H+hw, size.Y)
	ix0, iy0 := clip(r.X+hw, size.X), clip(r.Y+hw, size.Y)
	ix1, iy1 := clip(r.X+r.W-hw, size.X), clip(r.Y+r.H-hw, size.Y)

	if ox1 <= ox0 || oy1 <= oy0 {
		return
	}
	z.MoveTo(ox0, oy0)
	z.LineTo(ox1, oy0)
	z.LineTo(ox1, oy1)
	z.LineTo(ox0, oy1)
	z.ClosePath()

	if ix1 <= ix0 || iy1 <= iy0 {
		// too small for a hole, the outline is a filled box
		return
	}
	z.MoveTo(ix0, iy0)
	z.LineTo(ix0, iy1)
	z.LineTo(ix1, iy1)
	z.LineTo(ix1, iy0)
	z.ClosePath()
}

// strokeMarker draws the anti-aliased marker outline onto the canvas.
func strokeMarker(dst *bgrx.BGRX, r AbsRect, c bgrx.Color) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	outline(z, r, LineWidth)
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func floor(v float64) int { return int(math.Floor(v)) }
func ceil(v float64) int  { return int(math.Ceil(v)) }
