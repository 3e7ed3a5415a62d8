package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLoggerWithWriters builds the dual-sink logger over arbitrary
// writers: human-readable text on the first, JSON records on the
// second. The CLI passes io.Discard as the first sink to keep answer
// output clean.
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(console, opts),
		slog.NewJSONHandler(file, opts),
	))
}

// SetupLogger wires the process logger: text to stderr plus JSON to
// logFile, installed as the slog default. The returned cleanup closes
// the log file. An unopenable file degrades to stderr only.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		logger.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		slog.SetDefault(logger)
		return logger, func() error { return nil }
	}

	logger := SetupLoggerWithWriters(os.Stderr, file, level)
	slog.SetDefault(logger)
	return logger, file.Close
}
