// Package logger implements script.EventSink on top of log/slog, in the
// functional-options style the teacher's own logger construction uses
// (WithDebug/WithFormat/WithQuiet/WithLogFile), fanning out to a
// colorized human console handler and, under --json, a line-delimited
// JSON handler via github.com/samber/slog-multi.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	slogmulti "github.com/samber/slog-multi"
)

// Logger is quake's structured event sink (spec.md §6 "Structured event
// stream"), implementing script.EventSink's Info/Warn/Error.
type Logger struct {
	slog  *slog.Logger
	quiet bool
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	json    bool
	quiet   bool
	logFile io.Writer
	debug   bool
	runID   string
}

// WithJSON emits structured events as line-delimited JSON on stderr
// (spec.md §6 --json), instead of the default colorized console lines.
func WithJSON() Option { return func(o *options) { o.json = true } }

// WithQuiet suppresses info-level events; warnings and errors still surface.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// WithLogFile tees every event at or above the logger's level (info, or
// debug under WithDebug) to f as JSON, whatever the console format and
// regardless of WithQuiet.
func WithLogFile(f io.Writer) Option { return func(o *options) { o.logFile = f } }

// WithDebug enables debug-level event output.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithRunID tags every event with a run correlation id, in the style of
// the teacher's generateRequestID (_examples/dagu-org-dagu/cmd/reqid.go):
// one random id per invocation, useful for grepping a single run's
// events out of a shared JSON log stream.
func WithRunID(id string) Option { return func(o *options) { o.runID = id } }

// New builds a Logger from opts, in the teacher's "NewLogger(opts...)"
// construction style.
func New(opts ...Option) *Logger {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	if o.json {
		jsonLevel := level
		if o.quiet && jsonLevel < slog.LevelWarn {
			jsonLevel = slog.LevelWarn
		}
		handlers = append(handlers, slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: jsonLevel}))
	} else {
		handlers = append(handlers, &consoleHandler{level: level, quiet: o.quiet})
	}
	if o.logFile != nil {
		handlers = append(handlers, slog.NewJSONHandler(o.logFile, &slog.HandlerOptions{Level: level}))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = slogmulti.Fanout(handlers...)
	}

	l := slog.New(h)
	if o.runID != "" {
		l = l.With("run_id", o.runID)
	}
	return &Logger{slog: l, quiet: o.quiet}
}

// isTerminal reports whether stderr is attached to a terminal, used to
// decide whether the console handler should emit color escapes at all
// (github.com/mattn/go-isatty, the same TTY check fatih/color itself
// uses internally for its own NO_COLOR handling).
func isTerminal() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// Info implements script.EventSink.
func (l *Logger) Info(msg string) { l.slog.Info(msg) }

// Warn implements script.EventSink.
func (l *Logger) Warn(msg string) { l.slog.Warn(msg) }

// Error implements script.EventSink.
func (l *Logger) Error(msg string) { l.slog.Error(msg) }

// consoleHandler renders events as colorized "> quake: <message>" lines
// on stderr, matching the original host's console texture: white for
// info/warn, bold light red for errors.
type consoleHandler struct {
	level slog.Leveler
	quiet bool
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.quiet && level < slog.LevelWarn {
		return false
	}
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	bold := color.New(color.Bold)
	errColor := color.New(color.FgHiRed, color.Bold)
	bold.EnableColor()
	errColor.EnableColor()
	if !isTerminal() {
		bold.DisableColor()
		errColor.DisableColor()
	}

	prefix := bold.Sprint("> quake:")
	msg := r.Message
	if r.Level >= slog.LevelError {
		msg = errColor.Sprint(msg)
	}
	_, err := os.Stderr.WriteString(prefix + " " + msg + "\n")
	return err
}

func (h *consoleHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *consoleHandler) WithGroup(_ string) slog.Handler      { return h }
