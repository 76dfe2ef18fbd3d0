package logging

import (
	"log/slog"
	"strings"
)

// DefaultLevel is the log level used when none is configured.
const DefaultLevel = slog.LevelInfo

// ParseLevel converts a string log level to slog.Level. Supported values are
// "debug", "info", "warn", and "error", case-insensitive. The second return
// is false when the string is not recognized.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return DefaultLevel, false
	}
}
