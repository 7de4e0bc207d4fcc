// Package logging configures the process-wide slog logger and keeps a ring
// of recent records that the running instance serves over IPC.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Options configures Setup
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	Output io.Writer
	Buffer *Buffer
}

// New builds a logger from opts. Records are written to opts.Output
// (stderr by default) and captured in opts.Buffer when set.
func New(opts Options) (*slog.Logger, error) {
	level, ok := parseLevel(opts.Level)
	if !ok && opts.Level != "" {
		return nil, fmt.Errorf("invalid log level: %s", opts.Level)
	}
	if !ok {
		level = slog.LevelInfo
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch opts.Format {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", opts.Format)
	}

	if opts.Buffer != nil {
		handler = NewBufferedHandler(opts.Buffer, handler)
	}

	return slog.New(handler), nil
}

// Setup builds a logger with New and installs it as the slog default
func Setup(opts Options) (*slog.Logger, error) {
	logger, err := New(opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}
