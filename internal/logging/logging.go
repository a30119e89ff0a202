// Package logging configures the process-wide zerolog logger and hands out
// component-scoped children of it.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger with a console writer on stderr, keeping
// stdout free for the scene list. Verbose drops the level to Debug, which is
// where per-cut decisions are logged.
func Init(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// WithComponent returns a child of base tagged with a component field, so
// pipeline, source and CLI lines can be told apart in one stream.
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
