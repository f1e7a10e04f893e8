// Package logging assembles structured slog loggers and formatting helpers used
// across the content pipeline.
//
// It owns the console and JSON handlers, fans console output and the JSON log
// file out through slog-multi, and exposes context-aware helpers so stage code
// tags log lines with item IDs, stages, and correlation IDs. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
