// Package logging constructs the log/slog loggers used across habla.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for log files or machine consumption. Helpers
// standardize attribute keys so pipeline steps stay greppable.
package logging
