package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is an alias used by services for dependency injection.
type Logger = zerolog.Logger

// New returns a JSON logger on stdout tagged with the service name.
func New(service string) Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewConsole returns a human readable logger on stdout.
func NewConsole(service string) Logger {
	return NewWithWriter(service, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

// NewWithWriter returns a logger tagged with the service name writing to w.
func NewWithWriter(service string, w io.Writer) Logger {
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// Setup applies the process-wide level and UTC timestamps.
func Setup(level string) zerolog.Level {
	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	return lvl
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
