// Package logger writes mohair's structured statement logs.
//
// Any *slog.Logger satisfies Logger, so applications pass their own logger
// straight through mohair.WithLogger.
package logger

import (
	"log/slog"
	"time"
)

// Logger is the subset of *slog.Logger used by mohair.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Nop discards every message. It is the default.
type Nop struct{}

func (Nop) Debug(string, ...any) {}
func (Nop) Warn(string, ...any)  {}
func (Nop) Error(string, ...any) {}

// New returns l as a Logger, or Nop for a nil l.
func New(l *slog.Logger) Logger {
	if l == nil {
		return Nop{}
	}
	return l
}

// QueryEntry is one executed statement.
type QueryEntry struct {
	SQL      string // with "?" placeholders, before rebinding
	Params   []interface{}
	Duration time.Duration
	Rows     int
	Database string
	InTx     bool
	Err      error
}

// LogQuery logs e at Debug level, or at Error level when e.Err is set.
// Params are masked by s before they are formatted.
func LogQuery(l Logger, s *Sanitizer, e QueryEntry) {
	args := []any{
		"sql", e.SQL,
		"params", s.FormatParams(s.MaskParams(e.SQL, e.Params)),
		"duration_ms", e.Duration.Milliseconds(),
		"rows", e.Rows,
		"database", e.Database,
	}
	if e.InTx {
		args = append(args, "tx", true)
	}

	if e.Err != nil {
		l.Error("query failed", append(args, "error", e.Err)...)
		return
	}
	l.Debug("query executed", args...)
}
