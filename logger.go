package extractor

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with extractor-specific context.
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
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithRunID tags every record with the id of a run.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// WithInput adds the input path.
func (l *Logger) WithInput(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("input", path),
	}
}

// LogProcess logs the end of a run.
func (l *Logger) LogProcess(ctx context.Context, st *Stats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "process failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "process completed",
		"mode", st.Mode.String(),
		"rows_processed", st.RowsProcessed,
		"rows_matched", st.RowsMatched,
		"rows_malformed", st.RowsMalformed,
		"chunks", st.Chunks,
		"elapsed", st.Elapsed,
	)
}

// LogFallback logs why an indexed run switched to a full scan.
func (l *Logger) LogFallback(ctx context.Context, reason string) {
	l.InfoContext(ctx, "index not usable, scanning",
		"reason", reason,
	)
}

// LogIndexBuild logs an index build.
func (l *Logger) LogIndexBuild(ctx context.Context, column string, rows int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"column", column,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index built",
		"column", column,
		"rows", rows,
	)
}

// LogProgress logs a progress update.
func (l *Logger) LogProgress(ctx context.Context, p Progress) {
	l.InfoContext(ctx, "progress",
		"percent", int(p.Fraction()*100),
		"rows_processed", p.RowsProcessed,
		"rows_matched", p.RowsMatched,
		"elapsed", p.Elapsed,
	)
}
