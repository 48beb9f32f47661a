// Package logging builds the process logger and carries per-request fields
// through context.Context.
package logging

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

// New returns a logrus logger writing one JSON object per line with the
// "ts", "level" and "msg" keys. Timestamps are rendered in loc.
// Format "text" switches to logrus' key=value formatter.
func New(w io.Writer, level, format string, loc *time.Location) *logrus.Logger {
	if loc == nil {
		loc = time.UTC
	}

	var inner logrus.Formatter = &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "msg",
		},
	}
	if strings.EqualFold(format, "text") {
		inner = &logrus.TextFormatter{TimestampFormat: time.RFC3339Nano, FullTimestamp: true}
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	return &logrus.Logger{
		Out:       w,
		Formatter: &locationFormatter{inner: inner, loc: loc},
		Hooks:     make(logrus.LevelHooks),
		Level:     lvl,
	}
}

type locationFormatter struct {
	inner logrus.Formatter
	loc   *time.Location
}

func (f *locationFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.In(f.loc)
	return f.inner.Format(e)
}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// FromContext returns an entry carrying the request id and, when a span is
// recording, the trace id found in ctx.
func FromContext(ctx context.Context, log logrus.FieldLogger) *logrus.Entry {
	entry := log.WithField("component", "filedrop")
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}
	return entry
}
