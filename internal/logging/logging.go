// Package logging wraps zerolog with the handful of conventions every
// process in this module shares: a single global logger, JSON output in
// production, pretty console output for local runs, and child loggers
// scoped to a named component.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init must be called once at startup
// before any component logger is derived from it.
var Logger zerolog.Logger

// Config controls how Init sets up the global logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// JSON selects structured JSON output instead of a human console writer.
	JSON bool
}

// Init configures the global Logger. Safe to call more than once: the
// package's own init calls it with defaults, and main calls it again.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.JSON {
		Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// WithComponent returns a child logger tagged with component=name, e.g.
// "dispatch", "wal", "registrar".
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

func init() {
	// Sensible default so packages that log before main() calls Init
	// (notably in tests) still produce readable output.
	Init(Config{Level: "info"})
}
