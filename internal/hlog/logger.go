// Package hlog is Hypersonic's ambient structured logging, built on
// log/slog and modeled on the teacher's logging package's handler-type /
// functional-options shape, trimmed to what the event loop and compiler
// actually need to log: lifecycle events (compile, worker start/stop,
// shutdown) and per-connection errors (spec.md §7's AcceptError/IOError).
//
// spec.md's Non-goals exclude an observability pipeline as a feature, but
// structured logging is carried anyway as ambient infrastructure (see
// SPEC_FULL.md §9).
package hlog

import (
	"io"
	"log/slog"
	"os"
)

// HandlerType selects the slog.Handler implementation.
type HandlerType string

const (
	JSONHandler HandlerType = "json"
	TextHandler HandlerType = "text"
)

// Option configures a Logger.
type Option func(*config)

type config struct {
	handlerType HandlerType
	output      io.Writer
	level       slog.Level
	addSource   bool
}

// WithHandler selects JSON or text output. Default: JSONHandler.
func WithHandler(t HandlerType) Option {
	return func(c *config) { c.handlerType = t }
}

// WithOutput sets the log destination. Default: os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

// WithLevel sets the minimum log level. Default: slog.LevelInfo.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithSource adds source file:line to every record.
func WithSource(enabled bool) Option {
	return func(c *config) { c.addSource = enabled }
}

// New builds a *slog.Logger for the given component name (worker id,
// "compiler", "trampoline", ...), always scoped with a "component" attr so
// multi-worker logs can be told apart.
func New(component string, opts ...Option) *slog.Logger {
	cfg := &config{
		handlerType: JSONHandler,
		output:      os.Stderr,
		level:       slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     cfg.level,
		AddSource: cfg.addSource,
	}

	var handler slog.Handler
	if cfg.handlerType == TextHandler {
		handler = slog.NewTextHandler(cfg.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(cfg.output, handlerOpts)
	}

	return slog.New(handler).With("component", component)
}

// Noop returns a logger that discards everything, used as the zero-value
// default so components never need a nil check.
func Noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
