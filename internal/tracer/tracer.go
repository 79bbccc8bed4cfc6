// Package tracer wraps statement execution in OpenTelemetry client spans.
package tracer

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// SpanName names every statement span.
const SpanName = "mohair.query"

// Noop returns a tracer whose spans record nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer("mohair")
}

// Statement describes one statement execution. Parameter values never
// reach a span, only their count.
type Statement struct {
	SQL        string
	Database   string // driver name
	Operation  string // see DetectOperation
	Table      string
	ParamCount int

	Rows     int
	Duration time.Duration
	Err      error
}

// Start opens a client span carrying what is known before execution.
func Start(ctx context.Context, t trace.Tracer, st Statement) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", st.Database),
		attribute.String("db.statement", st.SQL),
		attribute.String("db.operation", st.Operation),
		attribute.Int("db.params.count", st.ParamCount),
	}
	if st.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", st.Table))
	}
	return t.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// Finish records the outcome of st on span and ends it.
func Finish(span trace.Span, st Statement) {
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.rows_returned", st.Rows),
		attribute.Float64("db.duration_ms", float64(st.Duration.Microseconds())/1000),
	)
	if st.Err != nil {
		span.RecordError(st.Err)
		span.SetStatus(codes.Error, st.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

var verbs = []string{"SELECT", "INSERT", "UPDATE", "DELETE"}

// DetectOperation returns SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
// A leading WITH counts as SELECT.
func DetectOperation(sqlText string) string {
	head := strings.ToUpper(strings.TrimSpace(sqlText))
	for _, v := range verbs {
		if strings.HasPrefix(head, v) {
			return v
		}
	}
	if strings.HasPrefix(head, "WITH") {
		return "SELECT"
	}
	return "UNKNOWN"
}

var (
	writeTarget = regexp.MustCompile(`(?is)^\s*(?:INSERT\s+INTO|UPDATE|DELETE\s+FROM)\s+([^\s(]+)`)
	readTarget  = regexp.MustCompile(`(?is)\bFROM\s+([^\s(),]+)`)
)

// DetectTable returns the first table a rendered statement targets with
// identifier quotes removed, or "".
func DetectTable(sqlText string) string {
	for _, re := range []*regexp.Regexp{writeTarget, readTarget} {
		if m := re.FindStringSubmatch(sqlText); m != nil {
			return strings.Trim(m[1], "\"`[]")
		}
	}
	return ""
}
