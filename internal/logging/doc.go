// Package logging assembles the structured slog loggers used across haul.
//
// It owns the console and JSON handlers, level parsing, and output routing,
// and exposes attribute helpers so the database core and its extensions tag
// log lines with the same keys (component, job_id, operation, event_type).
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
