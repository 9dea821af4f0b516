// Package bgrx is a 32-bit padded RGB image, the layout raw video sinks
// call BGRx: bytes B, G, R then an unused pad byte, i.e. a native-endian
// 0xXXRRGGBB word on little-endian machines.
package bgrx

import (
	"image"
	"image/color"
)

const BytesPerPixel = 4

// pad is written into the unused byte of every pixel.
const pad = 0xff

type BGRX struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

var Model = color.ModelFunc(func(c color.Color) color.Color {
	if _, ok := c.(Color); ok {
		return c
	}
	r, g, b, _ := c.RGBA()
	return Color{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
})

// Color is an opaque BGRx pixel value.
type Color struct {
	R, G, B uint8
}

func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	a = 0xffff
	return
}

// FromARGB unpacks a big-endian 0xAARRGGBB value, alpha is dropped.
func FromARGB(v uint32) Color {
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// Stride returns the row length in bytes for an image of width w.
func Stride(w int) int { return w * BytesPerPixel }

func New(r image.Rectangle) *BGRX {
	stride := Stride(r.Dx())
	return &BGRX{Pix: make([]uint8, stride*r.Dy()), Stride: stride, Rect: r}
}

func (p *BGRX) ColorModel() color.Model { return Model }
func (p *BGRX) Bounds() image.Rectangle { return p.Rect }
func (p *BGRX) Opaque() bool            { return true }

func (p *BGRX) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*BytesPerPixel
}

func (p *BGRX) At(x, y int) color.Color { return p.BGRXAt(x, y) }

func (p *BGRX) BGRXAt(x, y int) Color {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return Color{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	return Color{R: s[2], G: s[1], B: s[0]}
}

func (p *BGRX) Set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	p.SetBGRX(x, y, Model.Convert(c).(Color))
}

func (p *BGRX) SetBGRX(x, y int, c Color) {
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	s[0] = c.B
	s[1] = c.G
	s[2] = c.R
	s[3] = pad
}

// Fill paints the part of r that lies inside the image with c.
func (p *BGRX) Fill(r image.Rectangle, c Color) {
	r = r.Intersect(p.Rect)
	if r.Empty() {
		return
	}
	row := p.Pix[p.PixOffset(r.Min.X, r.Min.Y):]
	px := [4]uint8{c.B, c.G, c.R, pad}
	n := r.Dx() * BytesPerPixel
	for x := 0; x < n; x += BytesPerPixel {
		copy(row[x:x+4], px[:])
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		i := p.PixOffset(r.Min.X, y)
		copy(p.Pix[i:i+n], row[:n])
	}
}
