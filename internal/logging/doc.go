// Package logging assembles structured slog loggers and formatting helpers used
// across gifconv.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes helpers so components tag their lines with a component
// name, job identifiers, and the event_type/error_hint/impact triple used for
// warnings. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
package logging
