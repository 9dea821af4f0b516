// Package pipeline runs the video and audio sources live: each one is
// pulled by its own goroutine at the pace of the buffers it produces.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/avsynctest/avsynctest/pkg/caps"
	"github.com/avsynctest/avsynctest/pkg/config"
	"github.com/avsynctest/avsynctest/pkg/encoder/color/bgrx"
	"github.com/avsynctest/avsynctest/pkg/logger"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
	"github.com/avsynctest/avsynctest/pkg/monitoring"
	"github.com/avsynctest/avsynctest/pkg/source"
	"github.com/avsynctest/avsynctest/pkg/testcard"
)

var ErrRunning = errors.New("pipeline is already running")

type Stats struct {
	Frames     uint64
	Samples    uint64
	SyncPoints uint64
	Errors     uint64
	EOS        uint64
}

// Pipeline owns both sources. Reconfiguration is serialized with buffer
// production through a per-source mutex. Buffers passed to the callbacks
// are reused, so the data has to be copied to be kept.
type Pipeline struct {
	id    uuid.UUID
	card  *testcard.Compositor
	video *source.Video
	audio *source.Audio
	sync  *source.SyncPoints

	bufferSamples int

	muv sync.Mutex
	mua sync.Mutex

	vbuf []byte
	abuf []byte

	onVideo func(*source.Buffer)
	onAudio func(*source.Buffer)

	frames     atomic.Uint64
	samples    atomic.Uint64
	syncPoints atomic.Uint64
	failures   atomic.Uint64
	eos        atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool

	mue  sync.Mutex
	errs *multierror.Error

	metrics *monitoring.Metrics
	log     *logger.Logger
}

type Option func(*Pipeline)

func WithLogger(l *logger.Logger) Option { return func(p *Pipeline) { p.log = l } }

func WithMetrics(m *monitoring.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// New builds both sources from conf and negotiates the video geometry.
func New(conf config.Config, opts ...Option) (*Pipeline, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		id:            id,
		sync:          source.NewSyncPoints(),
		bufferSamples: conf.Audio.BufferSamples,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetrics(nil)
	}
	p.log = p.log.Extend(p.log.With().Str("sid", id.String()))

	fg, bg, _ := conf.Video.Colors()
	p.card = testcard.New(
		testcard.WithColors(fg, bg),
		testcard.WithMaxBytes(conf.Video.MaxCanvasBytes),
		testcard.WithLogger(p.log),
	)

	srcOpts := []source.Option{source.WithLogger(p.log)}
	if conf.SyncPoints {
		srcOpts = append(srcOpts, source.WithSyncPoints(p.sync))
	}
	p.video = source.NewVideo(p.card, srcOpts...)
	p.audio = source.NewAudio(srcOpts...)

	cand, _ := conf.Video.Candidate()
	if _, err = p.video.Negotiate([]caps.Candidate{cand}); err != nil {
		return nil, err
	}
	if err = p.audio.SetFormat(conf.Audio.Format()); err != nil {
		return nil, err
	}
	if err = p.audio.SetFreq(conf.Audio.Freq); err != nil {
		return nil, err
	}

	p.sync.Subscribe(func(sp source.SyncPoint) {
		p.syncPoints.Add(1)
		p.metrics.SyncPoints.WithLabelValues(string(sp.Source)).Inc()
		p.log.Debug().Msgf("sync point %v #%d at %v", sp.Source, sp.Offset, sp.Timing)
	})
	return p, nil
}

func (p *Pipeline) ID() uuid.UUID { return p.id }

// OnVideo sets the frame callback, call it before Start.
func (p *Pipeline) OnVideo(fn func(*source.Buffer)) { p.onVideo = fn }

// OnAudio sets the audio buffer callback, call it before Start.
func (p *Pipeline) OnAudio(fn func(*source.Buffer)) { p.onAudio = fn }

// OnSyncPoint subscribes fn to the sync points of both sources.
// The callback runs with the source locked and must not reconfigure it.
func (p *Pipeline) OnSyncPoint(fn func(source.SyncPoint)) (unsubscribe func()) {
	return p.sync.Subscribe(fn)
}

// Start launches both sources. They run until Stop, the end of their
// stream or their first error.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrRunning
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.mue.Lock()
	p.errs = nil
	p.mue.Unlock()

	p.wg.Add(2)
	go p.run(ctx, source.KindVideo, p.videoStep)
	go p.run(ctx, source.KindAudio, p.audioStep)
	p.log.Info().Msgf("started %v", p.Geometry())
	return nil
}

// Stop halts both sources and returns the errors that ended them.
// The sources restart from zero on the next Start.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	p.running = false

	p.muv.Lock()
	p.video.Reset()
	p.muv.Unlock()
	p.mua.Lock()
	p.audio.Reset()
	p.mua.Unlock()

	p.log.Info().Msgf("stopped, %+v", p.Stats())
	p.mue.Lock()
	defer p.mue.Unlock()
	return p.errs.ErrorOrNil()
}

// Close stops the pipeline and releases the card.
func (p *Pipeline) Close() error {
	err := p.Stop()
	p.muv.Lock()
	p.video.Close()
	p.muv.Unlock()
	return err
}

// Run and Shutdown make the pipeline a service.
func (p *Pipeline) Run() {
	if err := p.Start(context.Background()); err != nil {
		p.log.Error().Err(err).Msg("start")
	}
}

func (p *Pipeline) Shutdown(context.Context) error { return p.Stop() }

func (p *Pipeline) String() string { return "pipeline::" + p.id.String() }

func (p *Pipeline) run(ctx context.Context, kind source.Kind, step func() (time.Duration, error)) {
	defer p.wg.Done()
	log := p.log.Module(string(kind))

	t := time.NewTimer(0)
	defer t.Stop()
	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		d, err := step()
		if errors.Is(err, source.ErrEndOfStream) {
			p.eos.Add(1)
			p.metrics.EOS.WithLabelValues(string(kind)).Inc()
			log.Info().Msg("end of stream")
			return
		}
		if err != nil {
			p.failures.Add(1)
			p.metrics.BufferErrors.WithLabelValues(string(kind)).Inc()
			log.Error().Err(err).Msg("source stopped")
			p.mue.Lock()
			p.errs = multierror.Append(p.errs, fmt.Errorf("%v: %w", kind, err))
			p.mue.Unlock()
			return
		}
		// scheduled from the start so lateness doesn't add up
		next = next.Add(d)
		t.Reset(time.Until(next))
	}
}

func (p *Pipeline) videoStep() (time.Duration, error) {
	p.muv.Lock()
	g := p.video.Geometry()
	stride := bgrx.Stride(g.Width)
	size := g.Height * stride
	if cap(p.vbuf) < size {
		p.vbuf = make([]byte, size)
	}
	buf := source.Buffer{Data: p.vbuf[:size], Width: g.Width, Height: g.Height, Stride: stride}
	err := p.video.Fill(&buf)
	p.muv.Unlock()
	if err != nil {
		return 0, err
	}

	p.frames.Add(1)
	p.metrics.VideoFrames.Inc()
	if buf.Timing.Valid() {
		p.metrics.VideoPTS.Set(buf.Timing.Timestamp.Seconds())
	}
	if p.onVideo != nil {
		p.onVideo(&buf)
	}
	return max(buf.Timing.Duration, 0), nil
}

func (p *Pipeline) audioStep() (time.Duration, error) {
	n := p.bufferSamples
	p.mua.Lock()
	f := p.audio.Format()
	size := n * f.BytesPerFrame()
	if cap(p.abuf) < size {
		p.abuf = make([]byte, size)
	}
	buf := source.Buffer{Data: p.abuf[:size]}
	err := p.audio.Fill(&buf)
	p.mua.Unlock()
	if err != nil {
		return 0, err
	}

	buf.Timing = clock.Offset(buf.Offset, n, f.SampleRate)
	p.samples.Add(uint64(n))
	p.metrics.AudioSamples.Add(float64(n))
	if p.onAudio != nil {
		p.onAudio(&buf)
	}
	return max(buf.Timing.Duration, 0), nil
}

// Reconfigure renegotiates the video geometry, the card is rebuilt
// before the next frame.
func (p *Pipeline) Reconfigure(c caps.Candidate) (caps.Geometry, error) {
	p.muv.Lock()
	defer p.muv.Unlock()
	return p.video.Negotiate([]caps.Candidate{c})
}

// SetColors changes the card colors. They show up right away since the
// current geometry is renegotiated to repaint the card.
func (p *Pipeline) SetColors(fg, bg uint32) error {
	p.muv.Lock()
	defer p.muv.Unlock()
	p.card.SetForeground(fg)
	p.card.SetBackground(bg)
	if !p.video.Negotiated() {
		return nil
	}
	_, err := p.video.Negotiate([]caps.Candidate{caps.Fixed(p.video.Geometry())})
	return err
}

// Apply puts a reloaded configuration into effect: colors, geometry and
// the audio freq. Buffer size and sample rate need a restart.
func (p *Pipeline) Apply(conf config.Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	cand, _ := conf.Video.Candidate()
	fg, bg, _ := conf.Video.Colors()

	p.muv.Lock()
	p.card.SetForeground(fg)
	p.card.SetBackground(bg)
	_, err := p.video.Negotiate([]caps.Candidate{cand})
	p.muv.Unlock()
	if err != nil {
		return err
	}

	p.mua.Lock()
	defer p.mua.Unlock()
	return p.audio.SetFreq(conf.Audio.Freq)
}

func (p *Pipeline) Geometry() caps.Geometry {
	p.muv.Lock()
	defer p.muv.Unlock()
	return p.video.Geometry()
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		Frames:     p.frames.Load(),
		Samples:    p.samples.Load(),
		SyncPoints: p.syncPoints.Load(),
		Errors:     p.failures.Load(),
		EOS:        p.eos.Load(),
	}
}
