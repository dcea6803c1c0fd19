package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options selects the handler. Empty fields fall back to the environment:
// JSON at info inside Kubernetes or with ENV prod/production/dev, colored
// text at debug everywhere else.
type Options struct {
	Format string
	Level  string
}

func New(opts Options) *slog.Logger {
	return NewWithWriter(os.Stdout, opts)
}

func NewWithWriter(w io.Writer, opts Options) *slog.Logger {
	format := opts.Format
	if format == "" {
		format = detectFormat()
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     parseLevel(opts.Level, slog.LevelInfo),
			AddSource: true,
		})
	} else {
		handler = &colorTextHandler{
			handler: slog.NewTextHandler(w, &slog.HandlerOptions{
				Level: parseLevel(opts.Level, slog.LevelDebug),
			}),
		}
	}
	return slog.New(&contextHandler{handler: handler})
}

// NewWithServiceContext tags every record with service, version and environment.
func NewWithServiceContext(serviceName, version string, opts Options) *slog.Logger {
	return New(opts).With(
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("environment", os.Getenv("ENV")),
	)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func detectFormat() string {
	if _, inK8s := os.LookupEnv("KUBERNETES_SERVICE_HOST"); inK8s {
		return FormatJSON
	}
	switch os.Getenv("ENV") {
	case "prod", "production", "dev":
		return FormatJSON
	}
	return FormatText
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	if s == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return fallback
	}
	return level
}

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\x1b[90m",
	slog.LevelWarn:  "\x1b[33m",
	slog.LevelError: "\x1b[31m",
}

// colorTextHandler colors the message of debug, warn and error records.
type colorTextHandler struct {
	handler slog.Handler
}

func (h *colorTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *colorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	color, ok := levelColors[r.Level]
	if !ok && r.Level > slog.LevelError {
		color, ok = levelColors[slog.LevelError], true
	}
	if !ok {
		return h.handler.Handle(ctx, r)
	}

	colored := slog.NewRecord(r.Time, r.Level, color+r.Message+"\x1b[0m", r.PC)
	r.Attrs(func(a slog.Attr) bool {
		colored.AddAttrs(a)
		return true
	})
	return h.handler.Handle(ctx, colored)
}

func (h *colorTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorTextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *colorTextHandler) WithGroup(name string) slog.Handler {
	return &colorTextHandler{handler: h.handler.WithGroup(name)}
}

// contextHandler copies the chi request id and the OTel span ids from ctx
// onto each record, so service logs line up with the request log.
type contextHandler struct {
	handler slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if reqID := chimw.GetReqID(ctx); reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
	}
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{handler: h.handler.WithGroup(name)}
}
