package source

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/avsynctest/avsynctest/pkg/caps"
	"github.com/avsynctest/avsynctest/pkg/encoder/color/bgrx"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
	"github.com/avsynctest/avsynctest/pkg/testcard"
)

func newVideo(t *testing.T, rate clock.Rational, opts ...Option) *Video {
	t.Helper()
	v := NewVideo(testcard.New(), opts...)
	if _, err := v.Negotiate([]caps.Candidate{{Rate: caps.FractionList(rate)}}); err != nil {
		t.Fatalf("Negotiate() = %v", err)
	}
	return v
}

func frameFor(v *Video) *Buffer {
	g := v.Geometry()
	stride := bgrx.Stride(g.Width)
	return &Buffer{Data: make([]byte, g.Height*stride), Width: g.Width, Height: g.Height, Stride: stride}
}

func TestVideoFillTiming(t *testing.T) {
	tests := []struct {
		rate clock.Rational
		want []clock.Timing
	}{
		{
			rate: clock.Rational{Num: 30, Den: 1},
			want: []clock.Timing{
				{Timestamp: 0, Duration: 33333333},
				{Timestamp: 33333333, Duration: 33333333},
				{Timestamp: 66666666, Duration: 33333333},
			},
		},
		{
			rate: clock.Rational{Num: 25, Den: 1},
			want: []clock.Timing{
				{Timestamp: 0, Duration: 40 * time.Millisecond},
				{Timestamp: 40 * time.Millisecond, Duration: 40 * time.Millisecond},
			},
		},
		{
			rate: clock.Rational{Num: 1, Den: 2},
			want: []clock.Timing{
				{Timestamp: 0, Duration: 2 * time.Second},
				{Timestamp: 2 * time.Second, Duration: 2 * time.Second},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.rate.String(), func(t *testing.T) {
			v := newVideo(t, tt.rate)
			for i, want := range tt.want {
				buf := frameFor(v)
				if err := v.Fill(buf); err != nil {
					t.Fatalf("frame %d: %v", i, err)
				}
				if buf.Timing != want {
					t.Errorf("frame %d timing = %v, want %v", i, buf.Timing, want)
				}
				if buf.Offset != uint64(i) {
					t.Errorf("frame %d offset = %v", i, buf.Offset)
				}
			}
			if v.Frames() != uint64(len(tt.want)) {
				t.Errorf("frames = %v", v.Frames())
			}
		})
	}
}

func TestVideoFillCopiesCard(t *testing.T) {
	card := testcard.New()
	v := NewVideo(card)
	if _, err := v.Negotiate([]caps.Candidate{{}}); err != nil {
		t.Fatal(err)
	}
	buf := frameFor(v)
	if len(buf.Data) != v.FrameSize() || v.FrameSize() != 240*1280 {
		t.Fatalf("frame size = %v", v.FrameSize())
	}
	if err := v.Fill(buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Data, card.Canvas().(*bgrx.BGRX).Pix) {
		t.Errorf("frame differs from the card")
	}
}

func TestVideoStillImage(t *testing.T) {
	v := newVideo(t, clock.Rational{Num: 0, Den: 1})

	buf := frameFor(v)
	if err := v.Fill(buf); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if buf.Timing.Valid() {
		t.Errorf("still frame timing = %v, want none", buf.Timing)
	}
	for i := 0; i < 2; i++ {
		err := v.Fill(frameFor(v))
		if !errors.Is(err, ErrEndOfStream) || !errors.Is(err, io.EOF) {
			t.Fatalf("fill after the still frame = %v, want EOS", err)
		}
	}
	if v.Frames() != 1 {
		t.Errorf("frames = %v", v.Frames())
	}

	v.Reset()
	if err := v.Fill(frameFor(v)); err != nil {
		t.Errorf("fill after reset = %v", err)
	}
}

func TestVideoNotNegotiated(t *testing.T) {
	v := NewVideo(testcard.New())
	if err := v.Fill(&Buffer{}); !errors.Is(err, ErrNotNegotiated) {
		t.Errorf("Fill() = %v, want ErrNotNegotiated", err)
	}
	if _, err := v.Negotiate(nil); !errors.Is(err, caps.ErrNoGeometry) {
		t.Errorf("Negotiate(nil) = %v", err)
	}
	if v.Negotiated() {
		t.Errorf("negotiated without candidates")
	}
}

func TestVideoBadFrame(t *testing.T) {
	v := newVideo(t, caps.DefaultRate)
	buf := frameFor(v)
	buf.Height++
	buf.Data = bytes.Repeat([]byte{0x11}, buf.Height*buf.Stride)

	err := v.Fill(buf)
	if !errors.Is(err, testcard.ErrFormatIncompatible) {
		t.Fatalf("Fill() = %v, want ErrFormatIncompatible", err)
	}
	if !bytes.Equal(buf.Data, bytes.Repeat([]byte{0x11}, len(buf.Data))) {
		t.Errorf("partial write on a bad frame")
	}
}

func TestVideoRenegotiate(t *testing.T) {
	v := newVideo(t, caps.DefaultRate)
	if err := v.Fill(frameFor(v)); err != nil {
		t.Fatal(err)
	}

	hd := caps.Geometry{Width: 1280, Height: 720, Rate: clock.Rational{Num: 60, Den: 1}}
	if _, err := v.Negotiate([]caps.Candidate{caps.Fixed(hd)}); err != nil {
		t.Fatal(err)
	}
	buf := frameFor(v)
	if err := v.Fill(buf); err != nil {
		t.Fatal(err)
	}
	// the count survives renegotiation, only the rate changes
	if want := clock.DeriveTiming(1, hd.Rate); buf.Timing != want {
		t.Errorf("timing = %v, want %v", buf.Timing, want)
	}

	if _, err := v.Negotiate([]caps.Candidate{{Width: caps.IntList(-1)}}); err == nil {
		t.Fatal("negotiated a negative width")
	}
	if v.Geometry() != hd || !v.Negotiated() {
		t.Errorf("failed fixation dropped geometry %v", v.Geometry())
	}
}

func TestVideoSyncPoints(t *testing.T) {
	sp := NewSyncPoints()
	var got []SyncPoint
	sp.Subscribe(func(p SyncPoint) { got = append(got, p) })

	v := newVideo(t, caps.DefaultRate, WithSyncPoints(sp))
	for i := 0; i < 3; i++ {
		if err := v.Fill(frameFor(v)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := v.Negotiate([]caps.Candidate{{}}); err != nil {
		t.Fatal(err)
	}
	if err := v.Fill(frameFor(v)); err != nil {
		t.Fatal(err)
	}

	want := []SyncPoint{
		{Source: KindVideo, Offset: 0, Timing: clock.Timing{Timestamp: 0, Duration: 33333333}},
		{Source: KindVideo, Offset: 3, Timing: clock.Timing{Timestamp: 100000000, Duration: 33333333}},
	}
	if len(got) != len(want) {
		t.Fatalf("sync points = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sync point %d = %v, want %v", i, got[i], want[i])
		}
	}
}
