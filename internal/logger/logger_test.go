package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/quake-build/quake/internal/script"
	"github.com/stretchr/testify/require"
)

func TestLogger_ImplementsEventSink(t *testing.T) {
	var _ script.EventSink = New()
}

func TestConsoleHandler_QuietSuppressesInfoNotError(t *testing.T) {
	h := &consoleHandler{level: slog.LevelInfo, quiet: true}
	require.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestConsoleHandler_DebugLevelGatesDebugMessages(t *testing.T) {
	h := &consoleHandler{level: slog.LevelInfo}
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	debug := &consoleHandler{level: slog.LevelDebug}
	require.True(t, debug.Enabled(context.Background(), slog.LevelDebug))
}

func TestNew_DoesNotPanicAcrossOptionCombinations(t *testing.T) {
	require.NotPanics(t, func() {
		l := New(WithJSON(), WithQuiet(), WithDebug())
		l.Info("hello")
		l.Warn("careful")
		l.Error("boom")
	})
}

func TestNew_WithRunIDDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		New(WithJSON(), WithRunID("test-run-id")).Info("hello")
	})
}
