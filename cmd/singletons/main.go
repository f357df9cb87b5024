package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/openfroyo/singletons/cmd/singletons/commands"
	"github.com/openfroyo/singletons/pkg/config"
	"github.com/openfroyo/singletons/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}

// setupLogging configures the global logger used before settings load.
func setupLogging() {
	cfg, err := config.BootstrapLogging()
	log.Logger = telemetry.NewLoggerTo(os.Stderr, cfg).Zerolog()
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring logging environment")
	}
}
