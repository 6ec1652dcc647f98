// Package logger wraps zerolog with the conventions the rest of the
// pulse daemon expects: RFC3339 timestamps, caller info, and an optional
// human-readable console writer for local development.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how New builds the base logger.
type Config struct {
	Level  string // debug|info|warn|error, default info
	Pretty bool   // console-writer output instead of JSON
}

// New builds a zerolog.Logger configured per cfg. Every long-lived
// component should receive this (or a .With()-derived child) via
// constructor injection rather than reaching for a package global.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).With().Timestamp().Caller().Logger()
}

var global = New(Config{Level: "info"})

// SetGlobalLogger overrides the package-level default used only before
// the real, injected logger is wired in cmd/pulsed's bootstrap.
func SetGlobalLogger(l zerolog.Logger) {
	global = l
}

// Global returns the bootstrap-default logger. Prefer constructor
// injection; this exists only for init-time code that runs before
// config.Load() has produced a real logger.
func Global() zerolog.Logger {
	return global
}
