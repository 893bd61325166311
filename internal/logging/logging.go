// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a JSON logger, or a colour text logger for FormatText.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	if format == FormatText {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			AddSource:  level <= slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
