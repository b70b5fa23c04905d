package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"rgehrsitz/messagebot/internal/config"

	"github.com/rs/zerolog/log"
)

func main() {
	config.LoadDotEnv()
	level := os.Getenv("MESSAGEBOT_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	if err := config.SetupLogging(level, "console", os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errIssues):
		os.Exit(1)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	default:
		log.Error().Err(err).Msg("rulectl failed")
		os.Exit(1)
	}
}
