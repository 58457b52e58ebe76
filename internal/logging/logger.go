// Package logging provides structured logging configuration using log/slog.
//
// Pipeline runs are batch jobs, so loggers carry a run_id attribute instead
// of a per-request ID: ForRun derives a logger that tags every entry with
// the run it belongs to.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
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

// ForRun returns a logger that tags every entry with the pipeline run ID,
// so entries from concurrent jobs of the same run can be correlated.
func ForRun(runID string) *slog.Logger {
	if runID == "" {
		return slog.Default()
	}
	return slog.Default().With("run_id", runID)
}

// ForJob derives a job-scoped logger from a run-scoped one.
func ForJob(base *slog.Logger, job string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("job", job)
}
