// Package source drives the two halves of the sync test signal: it fills
// buffers handed out by the host and stamps them with their timing.
package source

import (
	"errors"
	"io"

	"github.com/avsynctest/avsynctest/pkg/logger"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

var (
	// ErrEndOfStream is not a failure, the source has nothing more to produce.
	ErrEndOfStream   = io.EOF
	ErrNotNegotiated = errors.New("source is not negotiated")
)

// Kind names the source in logs, metrics and sync points.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Buffer is one unit of output. Data is owned by the host, the source
// only writes into it. Width, Height and Stride describe the video frame
// layout, Offset is the running sample offset of an audio buffer.
type Buffer struct {
	Data   []byte
	Width  int
	Height int
	Stride int
	Timing clock.Timing
	Offset uint64
}

type Filler interface {
	Fill(buf *Buffer) error
}

type options struct {
	log        *logger.Logger
	syncPoints *SyncPoints
}

type Option func(*options)

func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

// WithSyncPoints makes the source emit its sync points into sp.
func WithSyncPoints(sp *SyncPoints) Option { return func(o *options) { o.syncPoints = sp } }

func newOptions(opts []Option) options {
	o := options{log: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
