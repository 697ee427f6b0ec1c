// Package logging builds the slog loggers used across the daemon and CLI.
package logging
