package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance. Defaults to zerolog's package logger (stderr, no
// level of its own, so debug lines print) so components can log before
// Initialize runs, e.g. in tests.
var Log = log.Logger

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "askrd").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Plugins creates a logger for plugin registry and bootstrap events
func Plugins() *zerolog.Logger {
	l := Log.With().Str("component", "plugins").Logger()
	return &l
}

// Sandbox creates a logger for sandbox worker lifecycle events
func Sandbox() *zerolog.Logger {
	l := Log.With().Str("component", "sandbox").Logger()
	return &l
}

// Dispatch creates a logger for dispatcher events
func Dispatch() *zerolog.Logger {
	l := Log.With().Str("component", "dispatch").Logger()
	return &l
}

// Gateway creates a logger for outbound gateway calls
func Gateway() *zerolog.Logger {
	l := Log.With().Str("component", "gateway").Logger()
	return &l
}

// Scheduler creates a logger for the minute scheduler
func Scheduler() *zerolog.Logger {
	l := Log.With().Str("component", "scheduler").Logger()
	return &l
}

// Admin creates a logger for the admin notification channel
func Admin() *zerolog.Logger {
	l := Log.With().Str("component", "admin").Logger()
	return &l
}

// Database creates a logger for history store events
func Database() *zerolog.Logger {
	l := Log.With().Str("component", "database").Logger()
	return &l
}

// HTTP creates a logger for ingress HTTP request events
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}
