package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avsynctest/avsynctest/pkg/config"
	"github.com/avsynctest/avsynctest/pkg/logger"
	"github.com/avsynctest/avsynctest/pkg/monitoring"
	"github.com/avsynctest/avsynctest/pkg/pipeline"
	"github.com/avsynctest/avsynctest/pkg/service"
)

var Version = "?"

func run() (err error) {
	conf, err := config.NewConfig(os.Args[1:])
	if err != nil {
		return err
	}
	log := logger.NewConsole(conf.Debug, "avsync", false)
	log.Info().Msgf("version %s", Version)
	log.Debug().Msgf("conf: %+v", conf)

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	pipe, err := pipeline.New(conf, pipeline.WithLogger(log), pipeline.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer func() { _ = pipe.Close() }()

	var services service.Group
	if conf.Monitoring.IsEnabled() {
		mon, err := monitoring.New(conf.Monitoring, prometheus.DefaultGatherer, log)
		if err != nil {
			return err
		}
		services.Add(mon)
	}
	services.Add(pipe)

	if conf.Watch {
		if file, ok := config.Locate(config.Path(os.Args[1:])); ok {
			w, err := config.NewWatcher(file, func(c config.Config) {
				if err := pipe.Apply(c); err != nil {
					log.Error().Err(err).Msg("config reload")
				}
			}, log)
			if err != nil {
				return err
			}
			w.Run()
			defer func() { _ = w.Stop() }()
		} else {
			log.Warn().Msg("no config file to watch")
		}
	}

	services.Start()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	sig := <-signals
	log.Info().Msgf("Shutting down [os:%v]", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = services.Shutdown(ctx)
	log.Info().Msgf("%+v", pipe.Stats())
	return err
}

func main() {
	if err := run(); err != nil {
		logger.Default().Fatal().Err(err).Msg("avsynctest")
	}
}
