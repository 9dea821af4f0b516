package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/avsynctest/avsynctest/pkg/logger"
)

// Watcher reloads the configuration file on every change and passes the
// new values on. Files that fail to load or validate are skipped.
// Command line flags are not applied to reloaded values.
type Watcher struct {
	w       *fsnotify.Watcher
	file    string
	fn      func(Config)
	done    chan struct{}
	running bool
	log     *logger.Logger
}

// NewWatcher watches file. The directory is watched rather than the
// file itself so editors that replace the file are still followed.
func NewWatcher(file string, fn func(Config), log *logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	file = filepath.Clean(file)
	if err = w.Add(filepath.Dir(file)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &Watcher{w: w, file: file, fn: fn, done: make(chan struct{}), log: log.Module("config")}, nil
}

func (w *Watcher) Run() {
	w.running = true
	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-w.w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.file || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				w.reload()
			case err, ok := <-w.w.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("watch")
			}
		}
	}()
}

func (w *Watcher) reload() {
	var conf Config
	if err := LoadConfig(&conf, filepath.Dir(w.file)); err != nil {
		w.log.Error().Err(err).Msgf("couldn't reload %v", w.file)
		return
	}
	if err := conf.Validate(); err != nil {
		w.log.Error().Err(err).Msgf("skip %v", w.file)
		return
	}
	w.log.Info().Msgf("reloaded %v", w.file)
	w.fn(conf)
}

func (w *Watcher) Stop() error {
	err := w.w.Close()
	if w.running {
		<-w.done
	}
	return err
}
