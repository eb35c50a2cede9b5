package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/emctools/cmd/emcscan/app"
	"github.com/roman-kulish/emctools/internal/scpi"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var paramsPath, levelName string
	flag.StringVar(&paramsPath, "c", "params.json", "Path to the measurement parameter file")
	flag.StringVar(&levelName, "log-level", "", "Log level [debug, info, warn, error]")
	flag.Parse()

	params, created, err := app.LoadParams(paramsPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load parameters: %s", err.Error()), slog.String("path", paramsPath))
		os.Exit(1)
	}
	if created {
		logger.Info("created parameter file with defaults", slog.String("path", paramsPath))
	}

	if levelName == "" {
		levelName = params.LogLevel
	}
	if levelName != "" {
		level, err := app.ParseLevel(levelName)
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		logLevel.Set(level)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, params, logger); err != nil {
		var connErr *scpi.ConnectionError
		if errors.As(err, &connErr) {
			logger.Error("make sure the analyzer is connected via RS232, USB or LAN",
				slog.String("resource", connErr.Resource),
				slog.Any("discovered", connErr.Discovered),
				slog.Any("error", connErr.Unwrap()))
		} else {
			logger.Error(err.Error())
		}

		cancel()
		os.Exit(1)
	}
}
