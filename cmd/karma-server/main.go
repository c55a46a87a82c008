package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/nasermirzaei89/env"
	"github.com/nasermirzaei89/karma"
	"github.com/nasermirzaei89/karma/logging"
)

func main() {
	ctx := context.Background()

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.ErrorContext(ctx, "failed to load .env file", "error", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(os.Stderr, logging.Config{
		Level: env.GetString("LOG_LEVEL", "info"),
		File:  env.GetString("LOG_FILE", ""),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up logging", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger)

	app, err := karma.NewApp(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create app", "error", err)
		os.Exit(1)
	}

	err = app.Run(ctx)

	if closeErr := closeLog(); closeErr != nil {
		slog.ErrorContext(ctx, "failed to close log file", "error", closeErr)
	}

	if err != nil {
		slog.ErrorContext(ctx, "failed to run app", "error", err)
		os.Exit(1)
	}
}
