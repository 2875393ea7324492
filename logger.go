package lingodb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with lingodb-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithPath adds a path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// LogOpen logs opening a knowledge base.
func (l *Logger) LogOpen(ctx context.Context, path string, nodes, connections int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"path", path,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "knowledge base opened",
		"path", path,
		"nodes", nodes,
		"connections", connections,
		"duration", d,
	)
}

// LogBuild logs writing a knowledge base.
func (l *Logger) LogBuild(ctx context.Context, path string, nodes, connections int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"path", path,
			"nodes", nodes,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"path", path,
		"nodes", nodes,
		"connections", connections,
		"duration", d,
	)
}

// LogQuery logs a query execution. Successful queries log at debug level.
func (l *Logger) LogQuery(ctx context.Context, instructions, results int, d time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "query failed",
			"instructions", instructions,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"instructions", instructions,
		"results", results,
		"duration", d,
	)
}

// LogPublish logs publishing a release.
func (l *Logger) LogPublish(ctx context.Context, name string, version uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "release published",
		"name", name,
		"version", version,
	)
}

// LogFetch logs fetching a release.
func (l *Logger) LogFetch(ctx context.Context, name string, version uint64, cached bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "release fetched",
		"name", name,
		"version", version,
		"cached", cached,
	)
}
