// Package logging provides slog-based structured logging with console and
// JSON output formats, plus attribute helpers shared across the codebase.
package logging
