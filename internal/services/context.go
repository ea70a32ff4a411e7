package services

import "context"

type contextKey string

const (
	paperKeyKey  contextKey = "paper_key"
	taskIDKey    contextKey = "task_id"
	requestIDKey contextKey = "request_id"
)

// WithPaperKey annotates context with the paper record key.
func WithPaperKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, paperKeyKey, key)
}

// PaperKeyFromContext extracts the paper record key if present.
func PaperKeyFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(paperKeyKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithTaskID annotates context with the external parsing task identifier.
func WithTaskID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, taskIDKey, id)
}

// TaskIDFromContext returns the external parsing task identifier if present.
func TaskIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(taskIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(requestIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}
