// Package logging wires slog-based logging for the towpack pipeline:
// console and session-file text handlers, dynamic run context, and an
// optional OpenTelemetry bridge.
package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// LogFilePath builds a session log file path using OS-appropriate path separators.
func LogFilePath(logsDir string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("towpack.%s.log", sessionStart.Format("20060102_150405")),
	)
}

// NewZerolog builds a zerolog logger for the managers that take one
// (archive, metrics). It writes to the same session log sink as slog.
func NewZerolog(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
