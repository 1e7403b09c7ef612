package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/antigravity-dev/taskrelay/internal/config"
)

func parseLevel(logLevel string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
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

// configureLogger builds the process logger. The level is read through
// level on every record so SIGHUP can change it without rebuilding loggers
// already handed to components.
func configureLogger(level *slog.LevelVar, useDev bool, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

// newLogRotator returns a rotating file writer for [log], or nil when no file
// is configured.
func newLogRotator(c config.Log) *lumberjack.Logger {
	file := strings.TrimSpace(c.File)
	if file == "" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   config.ExpandHome(file),
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// logOutput tees stderr into the rotator when one is configured.
func logOutput(rotator *lumberjack.Logger) io.Writer {
	if rotator == nil {
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, rotator)
}
