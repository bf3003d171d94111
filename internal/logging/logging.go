// Package logging configures the zerolog logger shared by every service.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a service-scoped zerolog.Logger writing a console-formatted
// stream in development and ndjson in any other environment.
func New(service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if os.Getenv("ENV") == "development" || os.Getenv("LOG_LEVEL") == "debug" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return logger.With().Str("service", service).Logger()
}
