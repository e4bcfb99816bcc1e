package rangeindex

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with rangeindex-specific context.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Leveler) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Leveler) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))}
}

// WithField returns a derived Logger that attaches fieldID to every record.
func (l *Logger) WithField(fieldID int) *Logger {
	return &Logger{Logger: l.Logger.With("field_id", fieldID)}
}

// WithDoc returns a derived Logger that attaches docID to every record.
func (l *Logger) WithDoc(docID DocId) *Logger {
	return &Logger{Logger: l.Logger.With("doc_id", docID)}
}

// LogAdd logs an Add(doc, field) applied by the mutation worker.
func (l *Logger) LogAdd(ctx context.Context, fieldID int, doc DocId, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed", "field_id", fieldID, "doc_id", doc, "error", err)
	} else {
		l.DebugContext(ctx, "add applied", "field_id", fieldID, "doc_id", doc)
	}
}

// LogDelete logs a Delete(doc, field) applied by the mutation worker.
func (l *Logger) LogDelete(ctx context.Context, fieldID int, doc DocId, err error) {
	if err != nil {
		l.WarnContext(ctx, "delete failed", "field_id", fieldID, "doc_id", doc, "error", err)
	} else {
		l.DebugContext(ctx, "delete applied", "field_id", fieldID, "doc_id", doc)
	}
}

// LogSearch logs a coordinator Search call.
func (l *Logger) LogSearch(ctx context.Context, filterCount, result int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "filters", filterCount, "error", err)
	} else {
		l.DebugContext(ctx, "search completed", "filters", filterCount, "result", result)
	}
}

// LogConvert logs a Dense<->Sparse Node conversion, including any size
// mismatch the conversion detected.
func (l *Logger) LogConvert(ctx context.Context, fieldID int, from, to NodeType, mismatch bool) {
	if mismatch {
		l.WarnContext(ctx, "node conversion size mismatch", "field_id", fieldID, "from", from, "to", to)
	} else {
		l.DebugContext(ctx, "node converted", "field_id", fieldID, "from", from, "to", to)
	}
}

// LogReclaim logs a buffer reclamation. immediate marks a degraded path: the
// buffer was freed without waiting out its full grace period or free-rate
// budget, either because Submit found the reclamation queue full or the
// memory budget exhausted, or because Run's free-rate wait errored out.
func (l *Logger) LogReclaim(ctx context.Context, bytesFreed int, immediate bool) {
	if immediate {
		l.WarnContext(ctx, "buffer freed immediately, bypassing queue or free-rate limit", "bytes", bytesFreed)
	} else {
		l.DebugContext(ctx, "buffer reclaimed", "bytes", bytesFreed)
	}
}

// LogGrow logs a Node buffer growth (downward or upward alignment change).
func (l *Logger) LogGrow(ctx context.Context, fieldID int, direction string, newSpan int) {
	l.DebugContext(ctx, "node buffer grown", "field_id", fieldID, "direction", direction, "span_bits", newSpan)
}

// LogIntersect logs a multi-filter intersection.
func (l *Logger) LogIntersect(ctx context.Context, inputs int, resultCount int) {
	l.DebugContext(ctx, "intersection computed", "inputs", inputs, "result", resultCount)
}

// LogQueueFull logs a rejected enqueue due to a full mutation queue.
func (l *Logger) LogQueueFull(ctx context.Context, fieldID int, doc DocId) {
	l.WarnContext(ctx, "mutation queue full", "field_id", fieldID, "doc_id", doc)
}
