package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger used across the service. Records carry the
// active trace and span ids when a span is present on the context, and
// password, secret or token attributes are masked.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler))
}

// NopLogger discards everything. Handy for tests.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
