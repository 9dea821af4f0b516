package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "avsync"

// Metrics of a running generator. The label of the vectors is the
// source kind, video or audio.
type Metrics struct {
	VideoFrames  prometheus.Counter
	AudioSamples prometheus.Counter
	VideoPTS     prometheus.Gauge
	BufferErrors *prometheus.CounterVec
	EOS          *prometheus.CounterVec
	SyncPoints   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
// unless it's nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		VideoFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_total",
			Help:      "Video frames produced.",
		}),
		AudioSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_samples_total",
			Help:      "Audio samples produced.",
		}),
		VideoPTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "video_pts_seconds",
			Help:      "Timestamp of the last video frame.",
		}),
		BufferErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffer_errors_total",
			Help:      "Buffers that couldn't be filled.",
		}, []string{"source"}),
		EOS: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eos_total",
			Help:      "End of stream events.",
		}, []string{"source"}),
		SyncPoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_points_total",
			Help:      "Sync points emitted.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.VideoFrames, m.AudioSamples, m.VideoPTS, m.BufferErrors, m.EOS, m.SyncPoints)
	}
	return m
}
