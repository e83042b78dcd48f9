// Package logger builds the zerolog logger shared by the server and the CLI.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects level and format. An empty format picks console output in
// development and JSON everywhere else.
type Config struct {
	Level       string
	Format      string
	Environment string
	Output      io.Writer
}

// New creates a logger for config
func New(config Config) zerolog.Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	if resolveFormat(config) == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(ParseLevel(config.Level)).
		With().Timestamp().Str("service", "meatlens").
		Logger()
}

// ParseLevel maps a level name to zerolog, defaulting to info
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func resolveFormat(config Config) string {
	switch strings.ToLower(config.Format) {
	case FormatConsole:
		return FormatConsole
	case FormatJSON:
		return FormatJSON
	}
	if config.Environment == "development" {
		return FormatConsole
	}
	return FormatJSON
}
