// Package config holds the settings of the test signal generator.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/avsynctest/avsynctest/pkg/caps"
	"github.com/avsynctest/avsynctest/pkg/media/audio"
	"github.com/avsynctest/avsynctest/pkg/media/clock"
)

var ErrBadConfig = errors.New("bad config")

type Config struct {
	Debug      bool
	// SyncPoints enables sync point notifications of both sources.
	SyncPoints bool
	// Watch reloads colors and geometry when the config file changes.
	Watch      bool
	Video      Video
	Audio      Audio
	Monitoring Monitoring
}

// Video sets what the output geometry is fixated from.
// Zero width or height and an empty fps accept anything.
type Video struct {
	Width      int
	Height     int
	Fps        string
	Foreground string `default:"0xFFFFFFFF"`
	Background string `default:"0xFF000000"`

	// MaxCanvasBytes limits the card allocation.
	MaxCanvasBytes int `default:"268435456"`
}

type Audio struct {
	SampleRate    int `default:"48000"`
	BufferSamples int `default:"1024"`
	Freq          float64
}

type Monitoring struct {
	Port             int `default:"6601"`
	URLPrefix        string
	MetricEnabled    bool `json:"metric_enabled"`
	ProfilingEnabled bool `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// NewConfig loads the configuration from the --conf directory or the
// default ones and puts the changed command line flags on top.
func NewConfig(args []string) (conf Config, err error) {
	f := newFlags()
	if err = f.set.Parse(args); err != nil {
		return
	}
	if err = LoadConfig(&conf, f.path); err != nil {
		return
	}
	f.apply(&conf)
	err = conf.Validate()
	return
}

// Path returns the --conf value from args, empty if not set.
func Path(args []string) string {
	f := newFlags()
	_ = f.set.Parse(args)
	return f.path
}

type flags struct {
	set  *pflag.FlagSet
	path string
	v    Config
}

func newFlags() *flags {
	f := flags{set: pflag.NewFlagSet("avsynctest", pflag.ContinueOnError)}
	f.set.StringVar(&f.path, "conf", "", "Set custom configuration file directory")
	f.set.BoolVar(&f.v.Debug, "debug", false, "Enable debug logging")
	f.set.IntVar(&f.v.Monitoring.Port, "monitoring.port", 0, "Monitoring server port")
	f.set.IntVar(&f.v.Video.Width, "width", 0, "Preferred video width")
	f.set.IntVar(&f.v.Video.Height, "height", 0, "Preferred video height")
	f.set.StringVar(&f.v.Video.Fps, "fps", "", "Preferred video frame rate (num/den)")
	f.set.StringVar(&f.v.Video.Foreground, "fg", "", "Marker color (0xAARRGGBB)")
	f.set.StringVar(&f.v.Video.Background, "bg", "", "Background color (0xAARRGGBB)")
	return &f
}

func (f *flags) apply(c *Config) {
	changed := f.set.Changed
	if changed("debug") {
		c.Debug = f.v.Debug
	}
	if changed("monitoring.port") {
		c.Monitoring.Port = f.v.Monitoring.Port
	}
	if changed("width") {
		c.Video.Width = f.v.Video.Width
	}
	if changed("height") {
		c.Video.Height = f.v.Video.Height
	}
	if changed("fps") {
		c.Video.Fps = f.v.Video.Fps
	}
	if changed("fg") {
		c.Video.Foreground = f.v.Video.Foreground
	}
	if changed("bg") {
		c.Video.Background = f.v.Video.Background
	}
}

func (c *Config) Validate() error {
	if _, err := c.Video.Candidate(); err != nil {
		return err
	}
	if _, _, err := c.Video.Colors(); err != nil {
		return err
	}
	if c.Video.MaxCanvasBytes <= 0 {
		return fmt.Errorf("%w: max canvas bytes %d", ErrBadConfig, c.Video.MaxCanvasBytes)
	}
	if err := c.Audio.Format().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if c.Audio.BufferSamples <= 0 {
		return fmt.Errorf("%w: buffer samples %d", ErrBadConfig, c.Audio.BufferSamples)
	}
	if !(c.Audio.Freq >= 0 && c.Audio.Freq <= 1) {
		return fmt.Errorf("%w: freq %v", ErrBadConfig, c.Audio.Freq)
	}
	return nil
}

// Candidate is the set of geometries the video source accepts.
func (v Video) Candidate() (c caps.Candidate, err error) {
	switch {
	case v.Width < 0:
		return c, fmt.Errorf("%w: width %d", ErrBadConfig, v.Width)
	case v.Height < 0:
		return c, fmt.Errorf("%w: height %d", ErrBadConfig, v.Height)
	}
	if v.Width > 0 {
		c.Width = caps.Int(v.Width)
	}
	if v.Height > 0 {
		c.Height = caps.Int(v.Height)
	}
	if v.Fps != "" {
		r, err := clock.ParseRational(v.Fps)
		if err != nil {
			return c, fmt.Errorf("%w: fps: %v", ErrBadConfig, err)
		}
		c.Rate = caps.FractionList(r)
	}
	return c, nil
}

func (v Video) Colors() (fg, bg uint32, err error) {
	if fg, err = ParseColor(v.Foreground); err != nil {
		return
	}
	bg, err = ParseColor(v.Background)
	return
}

// ParseColor reads an ARGB color written as 0xAARRGGBB or #AARRGGBB.
func ParseColor(s string) (uint32, error) {
	v := strings.TrimSpace(s)
	if h := strings.TrimPrefix(v, "#"); h != v {
		v = "0x" + h
	}
	c, err := strconv.ParseUint(v, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: color %q", ErrBadConfig, s)
	}
	return uint32(c), nil
}

func (a Audio) Format() audio.Format {
	return audio.Format{Encoding: audio.S16LE, Channels: audio.Channels, SampleRate: a.SampleRate}
}
