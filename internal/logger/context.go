package logger

import "context"

// contextKey keeps the request id entry private to this package.
type contextKey struct{}

var requestIDKey = contextKey{}

// WithRequestID stores a request id in the context. The HTTP request-id
// middleware is the only writer; everything downstream reads.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "" when the context
// never passed through the request-id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
