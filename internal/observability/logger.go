package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a structured logger that writes to stderr and to a
// rotated log file.
func NewLogger(logPath, logLevel string) *slog.Logger {
	rotator := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	handler := slog.NewTextHandler(
		io.MultiWriter(os.Stderr, rotator),
		&slog.HandlerOptions{Level: parseLevel(logLevel)},
	)
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
