// Command meru-broker runs the central broker process: it binds the
// collector, publisher, and snapshot ports and relays actions between
// whatever workers connect to it.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/HumbleRetreat/meru/broker"
	"github.com/HumbleRetreat/meru/internal/config"
	"github.com/HumbleRetreat/meru/internal/statereg"
	"github.com/HumbleRetreat/meru/internal/wire"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("failed to load configuration")
	}

	log := newLogger(cfg.Debug)

	registry := wire.NewRegistry()
	if err := registry.Discover(wire.Builtins()...); err != nil {
		log.Fatal().Err(err).Msg("failed to register builtin wire types")
	}
	if cfg.TypeManifestPath != "" {
		manifest, err := wire.LoadManifest(cfg.TypeManifestPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.TypeManifestPath).Msg("failed to load type manifest")
		}
		if err := registry.Verify(manifest); err != nil {
			log.Fatal().Err(err).Msg("type manifest verification failed")
		}
	}
	codec := wire.NewCodec(registry, cfg.Backend)
	states := statereg.NewRegistry(log)

	b, err := broker.New(cfg.BindAddress, broker.Ports{
		Collector: config.CollectorPort,
		Publisher: config.PublisherPort,
		Snapshot:  config.SnapshotPort,
	}, codec, states, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to bind broker sockets")
	}

	log.Info().
		Str("bind", cfg.BindAddress).
		Int("collector_port", config.CollectorPort).
		Int("publisher_port", config.PublisherPort).
		Int("snapshot_port", config.SnapshotPort).
		Msg("meru-broker starting")

	go b.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	done := make(chan struct{})
	go func() {
		b.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("broker shut down cleanly")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout exceeded")
	}
}

func newLogger(debug bool) zerolog.Logger {
	if !debug {
		return zerolog.New(os.Stderr).
			Level(zerolog.InfoLevel).
			With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
}
