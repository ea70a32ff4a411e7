package logging

import (
	"log/slog"
	"time"
)

// Attr aliases keep call sites tidy and make it possible to swap the
// underlying logging library without touching every package.
type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key, value string) Attr { return slog.String(key, value) }

// Error records err under the conventional "error" key; nil-safe.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Common structured field names shared across components.
const (
	FieldPaperKey  = "paper_key"
	FieldTaskID    = "task_id"
	FieldRequestID = "request_id"
	FieldStatus    = "status"
	FieldComponent = "component"
)
