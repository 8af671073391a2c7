package common

import (
	"context"
	"time"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	documentIDKey
)

// WithRequestID tags ctx with the transport-level request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithDocumentID tags ctx with the document being converted.
func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, documentIDKey, id)
}

func DocumentIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(documentIDKey).(string)
	return id
}

// LogAttrs returns the ids carried by ctx as slog key/value pairs, skipping empty ones.
func LogAttrs(ctx context.Context) []any {
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id := DocumentIDFromContext(ctx); id != "" {
		attrs = append(attrs, "document_id", id)
	}
	return attrs
}

// WithTimeout bounds ctx by timeout; a non-positive timeout returns ctx with a no-op cancel.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}
