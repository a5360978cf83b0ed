package contextx

import (
	"context"
	"log/slog"
)

// WithRequestID returns a derived context carrying the correlation id that is
// echoed back in the x-request-id response header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// LogAttrs returns the request-scoped values worth attaching to a log line.
// Values that are not set are left out.
func LogAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if c, ok := CallerFromContext(ctx); ok {
		attrs = append(attrs, slog.String("caller", c.ID))
	}
	return attrs
}
