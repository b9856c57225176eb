// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the process-wide structured logger. Runs
// log twice: human-readable text on stderr and JSON appended to a file
// inside the cache directory, so past runs stay greppable.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Setup creates a dual-output logger: text to stderr, JSON appended to
// logFile. It returns the logger and a cleanup function that closes the
// file. When the file cannot be opened the logger degrades to
// stderr-only and the cleanup function is a no-op.
func Setup(logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Warn("could not open log file, logging to stderr only", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	return logger, file.Close
}

// SetupWithWriters creates a dual-output logger over custom writers.
// Tests use it to capture both streams.
func SetupWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
