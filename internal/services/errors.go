package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks failures caused by a missing paper record or artifact path.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks operations attempted from the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrExternal marks failures reported by the parsing service, LLM, or object store.
	ErrExternal = errors.New("external service error")
	// ErrArtifact marks missing or unreadable derived files after download/unpack.
	ErrArtifact = errors.New("artifact error")
	// ErrUnavailable marks resource exhaustion such as store lock acquisition timeout.
	ErrUnavailable = errors.New("resource unavailable")
	// ErrTransient marks retryable failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
