package logging

import (
	"context"
	"log/slog"

	"papermill/internal/services"
)

// WithContext returns the logger enriched with any correlation fields carried
// by ctx (paper key, task id, request id).
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if ctx == nil {
		return logger
	}
	if key, ok := services.PaperKeyFromContext(ctx); ok {
		logger = logger.With(String(FieldPaperKey, key))
	}
	if id, ok := services.TaskIDFromContext(ctx); ok {
		logger = logger.With(String(FieldTaskID, id))
	}
	if id, ok := services.RequestIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRequestID, id))
	}
	return logger
}
