package contextutil

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestLoggerFromContext(t *testing.T) {
	ctx := context.Background()

	if got := LoggerFromContext(ctx); got != slog.Default() {
		t.Error("LoggerFromContext() without a logger should return the default logger")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx = WithLogger(ctx, logger)

	if got := LoggerFromContext(ctx); got != logger {
		t.Error("LoggerFromContext() should return the logger stored in the context")
	}
}
