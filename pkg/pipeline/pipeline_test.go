package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avsynctest/avsynctest/pkg/caps"
	"github.com/avsynctest/avsynctest/pkg/config"
	"github.com/avsynctest/avsynctest/pkg/encoder/color/bgrx"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
	"github.com/avsynctest/avsynctest/pkg/monitoring"
	"github.com/avsynctest/avsynctest/pkg/source"
	"github.com/avsynctest/avsynctest/pkg/testcard"
)

const waitFor = 3 * time.Second

func testConfig() config.Config {
	return config.Config{
		Video: config.Video{
			Foreground:     "0xFFFFFFFF",
			Background:     "0xFF000000",
			MaxCanvasBytes: testcard.DefaultMaxBytes,
		},
		Audio: config.Audio{SampleRate: 48000, BufferSamples: 480},
	}
}

// recorder keeps copies of what the pipeline produced.
type recorder struct {
	mu     sync.Mutex
	video  []source.Buffer
	audio  []source.Buffer
	points []source.SyncPoint
}

func (r *recorder) attach(p *Pipeline) {
	keep := func(dst *[]source.Buffer) func(*source.Buffer) {
		return func(b *source.Buffer) {
			c := *b
			c.Data = append([]byte(nil), b.Data...)
			r.mu.Lock()
			*dst = append(*dst, c)
			r.mu.Unlock()
		}
	}
	p.OnVideo(keep(&r.video))
	p.OnAudio(keep(&r.audio))
	p.OnSyncPoint(func(sp source.SyncPoint) {
		r.mu.Lock()
		r.points = append(r.points, sp)
		r.mu.Unlock()
	})
}

func (r *recorder) frames() []source.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]source.Buffer(nil), r.video...)
}

func (r *recorder) counts() (v, a, sp int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.video), len(r.audio), len(r.points)
}

func TestPipelineRun(t *testing.T) {
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	p, err := New(testConfig(), WithMetrics(m))
	require.NoError(t, err)
	assert.Equal(t, caps.Geometry{Width: 320, Height: 240, Rate: clock.Rational{Num: 30, Den: 1}}, p.Geometry())

	var r recorder
	r.attach(p)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrRunning)

	require.Eventually(t, func() bool {
		v, a, _ := r.counts()
		return v >= 3 && a >= 3
	}, waitFor, 10*time.Millisecond)
	require.NoError(t, p.Stop())
	require.NoError(t, p.Stop())

	frames := r.frames()
	for i, f := range frames {
		assert.Equal(t, uint64(i), f.Offset)
		assert.Equal(t, clock.DeriveTiming(uint64(i), clock.Rational{Num: 30, Den: 1}), f.Timing)
		assert.Len(t, f.Data, 240*bgrx.Stride(320))
	}

	r.mu.Lock()
	for i, b := range r.audio {
		off := uint64(i * 480)
		assert.Equal(t, off, b.Offset)
		assert.Equal(t, clock.Offset(off, 480, 48000), b.Timing)
		assert.Equal(t, 10*time.Millisecond, b.Timing.Duration)
	}
	audioBuffers := len(r.audio)
	assert.Empty(t, r.points, "sync points are off by default")
	r.mu.Unlock()

	st := p.Stats()
	assert.Equal(t, uint64(len(frames)), st.Frames)
	assert.Equal(t, uint64(audioBuffers*480), st.Samples)
	assert.Zero(t, st.Errors)
	assert.Zero(t, st.EOS)
	assert.Equal(t, float64(st.Frames), testutil.ToFloat64(m.VideoFrames))
	assert.Equal(t, float64(st.Samples), testutil.ToFloat64(m.AudioSamples))

	require.NoError(t, p.Close())
}

func TestPipelineStillImage(t *testing.T) {
	conf := testConfig()
	conf.Video.Fps = "0/1"
	p, err := New(conf)
	require.NoError(t, err)

	var r recorder
	r.attach(p)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return p.Stats().EOS == 1 }, waitFor, 10*time.Millisecond)
	require.NoError(t, p.Stop())

	frames := r.frames()
	require.Len(t, frames, 1)
	assert.False(t, frames[0].Timing.Valid())
	assert.Equal(t, uint64(1), p.Stats().Frames)
}

func TestPipelineReconfigure(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)
	var r recorder
	r.attach(p)
	require.NoError(t, p.Start(context.Background()))
	defer func() { _ = p.Close() }()

	require.Eventually(t, func() bool { v, _, _ := r.counts(); return v >= 1 }, waitFor, 5*time.Millisecond)

	g, err := p.Reconfigure(caps.Candidate{Width: caps.IntRange(640, 1280), Height: caps.IntRange(480, 720)})
	require.NoError(t, err)
	assert.Equal(t, caps.Geometry{Width: 640, Height: 480, Rate: clock.Rational{Num: 30, Den: 1}}, g)

	require.NoError(t, p.SetColors(0xFF00FF00, 0xFF0000FF))
	require.Eventually(t, func() bool {
		f := r.frames()
		last := f[len(f)-1]
		return last.Width == 640 && last.Data[0] == 0xff && last.Data[1] == 0 && last.Data[2] == 0
	}, waitFor, 10*time.Millisecond)

	_, err = p.Reconfigure(caps.Candidate{Width: caps.IntList(-5)})
	assert.ErrorIs(t, err, caps.ErrNoGeometry)
	assert.Equal(t, g, p.Geometry())
}

func TestPipelineSyncPoints(t *testing.T) {
	conf := testConfig()
	conf.SyncPoints = true
	p, err := New(conf)
	require.NoError(t, err)

	var r recorder
	r.attach(p)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { _, a, _ := r.counts(); return a >= 2 }, waitFor, 10*time.Millisecond)
	require.NoError(t, p.Stop())

	r.mu.Lock()
	defer r.mu.Unlock()
	var video, audio int
	for _, sp := range r.points {
		switch sp.Source {
		case source.KindVideo:
			video++
			assert.Equal(t, uint64(0), sp.Offset)
		case source.KindAudio:
			assert.Zero(t, sp.Offset%256)
			audio++
		}
	}
	assert.Equal(t, 1, video)
	assert.Equal(t, audio, int(p.Stats().SyncPoints)-video)
	// 480 samples per buffer, the ramp restarts every 256
	assert.GreaterOrEqual(t, audio, 4)
}

func TestPipelineSourceFailure(t *testing.T) {
	conf := testConfig()
	conf.Video.MaxCanvasBytes = 240 * bgrx.Stride(320)
	p, err := New(conf)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	_, err = p.Reconfigure(caps.Fixed(caps.Geometry{Width: 640, Height: 480, Rate: caps.DefaultRate}))
	require.ErrorIs(t, err, testcard.ErrResource)

	require.Eventually(t, func() bool { return p.Stats().Errors == 1 }, waitFor, 10*time.Millisecond)
	err = p.Stop()
	assert.ErrorIs(t, err, source.ErrNotNegotiated)

	// the audio keeps going on its own
	assert.NotZero(t, p.Stats().Samples)
}

func TestPipelineApply(t *testing.T) {
	p, err := New(testConfig())
	require.NoError(t, err)

	conf := testConfig()
	conf.Video.Width, conf.Video.Fps = 1024, "60/1"
	conf.Audio.Freq = 0.25
	require.NoError(t, p.Apply(conf))
	assert.Equal(t, caps.Geometry{Width: 1024, Height: 240, Rate: clock.Rational{Num: 60, Den: 1}}, p.Geometry())

	conf.Video.Foreground = "nope"
	assert.ErrorIs(t, p.Apply(conf), config.ErrBadConfig)
}

func TestNewBadConfig(t *testing.T) {
	conf := testConfig()
	conf.Audio.BufferSamples = 0
	_, err := New(conf)
	assert.ErrorIs(t, err, config.ErrBadConfig)

	conf = testConfig()
	conf.Video.Width = 1 << 20
	conf.Video.Height = 1 << 20
	_, err = New(conf)
	assert.ErrorIs(t, err, testcard.ErrResource)
}
