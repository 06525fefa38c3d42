// Package logger builds the JSON logger every binary writes to stdout.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger tagged with the service and host name.
func New(service string) *slog.Logger {
	return NewWithWriter(os.Stdout, service)
}

func NewWithWriter(w io.Writer, service string) *slog.Logger {
	hostname, _ := os.Hostname()
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h).With(
		slog.String("service", service),
		slog.String("hostname", hostname),
	)
}

// Discard is a logger for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
