package logger

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Setup builds the process logger: colored lines to console and, when
// logFile is set, JSON records appended to that file as well.
// The returned func closes the file.
func Setup(console io.Writer, logFile string, level slog.Level) (*slog.Logger, func() error) {
	opts := *DefaultOptions
	opts.Level = level
	consoleHandler := NewHandler(console, &opts)

	if logFile == "" {
		return slog.New(consoleHandler), func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l := slog.New(consoleHandler)
		l.Error("opening log file, using console only", "file", logFile, Err(err))
		return l, func() error { return nil }
	}

	return SetupWithWriters(console, file, level), file.Close
}

// SetupWithWriters fans records out to a console handler and a JSON handler.
func SetupWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	opts := *DefaultOptions
	opts.Level = level

	return slog.New(slogmulti.Fanout(
		NewHandler(console, &opts),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	))
}

// ParseLevel accepts slog level names (DEBUG, INFO, WARN, ERROR), defaulting to DEBUG.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelDebug
	}
	return level
}
