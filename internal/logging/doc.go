// Package logging builds the process-wide slog logger and provides small
// helpers (attr aliases, context enrichment) used by every component.
package logging
