// Package main is the entry point for the MatrixHub catalog API server.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"

	"github.com/matrixhub/catalog-server/cmd/catalog-api/app"
	"github.com/matrixhub/catalog-server/internal/config"
)

// getLogLevel reads CATALOG_LOG_LEVEL, then LOG_LEVEL
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	raw := v.GetString("log_level")
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	return parseLogLevel(raw)
}

// parseLogLevel accepts slog level names with optional offsets ("debug", "WARN+2")
// and "warning". Anything else is logged and treated as info.
func parseLogLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slog.LevelInfo
	}
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		slog.Warn("Unknown log level, using info", "value", raw)
		return slog.LevelInfo
	}
	return level
}

// newLogger builds the JSON logger used by every command. Records logged with
// a span in context carry its trace_id and span_id.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(&traceHandler{Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})})
}

type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

func main() {
	// stdout is reserved for command output such as users list
	slog.SetDefault(newLogger(os.Stderr, getLogLevel()))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
