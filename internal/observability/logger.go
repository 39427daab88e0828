package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger; dev environments log at debug level.
// Records carry trace and span ids when emitted with a traced context.
func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(withTraceContext(handler))
}
