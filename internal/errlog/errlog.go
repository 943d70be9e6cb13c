// Package errlog appends failures worth a postmortem to a local JSON-lines
// file, independent of the request log on stdout. Each line carries the time,
// the failing operation, the error text and any extra attributes such as the
// trip id.
package errlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Log writes error records. The zero value is not usable; use Open, New or
// Discard. A Log is safe for concurrent use.
type Log struct {
	logger *slog.Logger
	closer io.Closer
}

// Open appends to the file at path, creating it and its directory if needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("errlog.Open: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("errlog.Open: %w", err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// New writes records to w.
func New(w io.Writer) *Log {
	return &Log{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// Discard returns a Log that drops every record.
func Discard() *Log {
	return New(io.Discard)
}

// Record appends one line for err raised by op.
func (l *Log) Record(ctx context.Context, op string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))
	l.logger.LogAttrs(ctx, slog.LevelError, op, attrs...)
}

// Close closes the underlying file, if any.
func (l *Log) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
