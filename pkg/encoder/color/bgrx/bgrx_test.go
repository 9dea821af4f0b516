package bgrx

import (
	"image"
	"image/color"
	"testing"
)

func TestFromARGB(t *testing.T) {
	tests := []struct {
		in   uint32
		want Color
	}{
		{0xFFFFFFFF, Color{255, 255, 255}},
		{0xFF000000, Color{0, 0, 0}},
		{0x00112233, Color{0x11, 0x22, 0x33}},
		{0x80FF0000, Color{255, 0, 0}},
	}
	for _, tt := range tests {
		if got := FromARGB(tt.in); got != tt.want {
			t.Errorf("FromARGB(%08x) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLayout(t *testing.T) {
	img := New(image.Rect(0, 0, 3, 2))
	if img.Stride != 12 || len(img.Pix) != 24 {
		t.Fatalf("stride %v, len %v", img.Stride, len(img.Pix))
	}
	img.Set(1, 1, color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff})
	i := img.PixOffset(1, 1)
	if got := img.Pix[i : i+4]; got[0] != 0x30 || got[1] != 0x20 || got[2] != 0x10 || got[3] != pad {
		t.Errorf("pixel bytes = % x", got)
	}
	if c := img.BGRXAt(1, 1); c != (Color{0x10, 0x20, 0x30}) {
		t.Errorf("At = %v", c)
	}
	img.Set(5, 5, color.White)
	if c := img.BGRXAt(5, 5); c != (Color{}) {
		t.Errorf("out of bounds read = %v", c)
	}
}

func TestFill(t *testing.T) {
	img := New(image.Rect(0, 0, 4, 4))
	img.Fill(image.Rect(1, 1, 10, 3), Color{1, 2, 3})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := Color{}
			if x >= 1 && y >= 1 && y < 3 {
				want = Color{1, 2, 3}
			}
			if got := img.BGRXAt(x, y); got != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}
