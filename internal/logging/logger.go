// Package logging configures log/slog for the service.
//
// Request handlers log through FromContext so every entry carries the chi
// request id; loads log through ForLoad so entries can be grouped by load.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup installs a logger writing to stdout as the slog default.
//
// Level is debug, info, warn or error (default info). Format is text or json
// (default text); json is meant for log shippers.
func Setup(level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

// New returns a logger writing to w.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLevel maps a level name to slog.Level. Unknown names mean info.
func parseLevel(level string) slog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// FromContext returns the default logger, with request_id set when ctx
// carries one from chi's RequestID middleware.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

// ForLoad returns the request logger tagged with a load id and its schema.
//
//	log := logging.ForLoad(r.Context(), id, schema)
//	log.Info("load accepted", "path", path)
func ForLoad(ctx context.Context, id, schema string, args ...any) *slog.Logger {
	return FromContext(ctx).With(append([]any{"load_id", id, "schema", schema}, args...)...)
}
