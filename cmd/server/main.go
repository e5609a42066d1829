package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/clover-storm/unit-simulator/internal/app"
	"github.com/clover-storm/unit-simulator/internal/config"
	"github.com/clover-storm/unit-simulator/internal/telemetry"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to unitsim.yaml")
	flag.Parse()

	settings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, app.Config{Logger: telemetry.WrapZerolog(logger), Settings: settings}); err != nil {
		log.Fatalf("%v", err)
	}
}
