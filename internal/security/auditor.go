package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/coregx/mohair/internal/tracer"
)

// AuditLevel selects which statements are written to the audit log.
type AuditLevel int

const (
	// AuditNone disables audit logging.
	AuditNone AuditLevel = iota
	// AuditWrites logs INSERT, UPDATE and DELETE only.
	AuditWrites
	// AuditReads logs SELECT as well as writes.
	AuditReads
	// AuditAll logs every statement, including ones whose verb is not recognized.
	AuditAll
)

func (l AuditLevel) covers(operation string) bool {
	switch operation {
	case "INSERT", "UPDATE", "DELETE":
		return l >= AuditWrites
	case "SELECT":
		return l >= AuditReads
	default:
		return l >= AuditAll
	}
}

// Actor identifies who a statement runs on behalf of.
type Actor struct {
	User      string
	ClientIP  string
	RequestID string
}

func (a Actor) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("user", a.User),
		slog.String("client_ip", a.ClientIP),
		slog.String("request_id", a.RequestID),
	}
}

type actorKey struct{}

// ActorFrom returns the Actor attached to ctx; fields never set are "".
func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}

func withActor(ctx context.Context, edit func(*Actor)) context.Context {
	a := ActorFrom(ctx)
	edit(&a)
	return context.WithValue(ctx, actorKey{}, a)
}

// WithUser attaches the acting user to ctx.
func WithUser(ctx context.Context, user string) context.Context {
	return withActor(ctx, func(a *Actor) { a.User = user })
}

// WithClientIP attaches the client address to ctx.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return withActor(ctx, func(a *Actor) { a.ClientIP = ip })
}

// WithRequestID attaches a request ID to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withActor(ctx, func(a *Actor) { a.RequestID = id })
}

// Auditor writes one slog record per audited statement.
// Bound values never appear in a record, only a SHA-256 of them.
type Auditor struct {
	log   *slog.Logger
	level AuditLevel
}

// NewAuditor returns an auditor writing to l. A nil l disables it.
func NewAuditor(l *slog.Logger, level AuditLevel) *Auditor {
	return &Auditor{log: l, level: level}
}

// LogOperation records an executed statement that returned rows rows.
// Operation and table are derived from query.
func (a *Auditor) LogOperation(ctx context.Context, query string, params []interface{}, rows int, err error, elapsed time.Duration) {
	op := tracer.DetectOperation(query)
	if a.log == nil || !a.level.covers(op) {
		return
	}

	attrs := append(ActorFrom(ctx).attrs(),
		slog.Time("timestamp", time.Now().UTC()),
		slog.String("operation", op),
		slog.String("table", tracer.DetectTable(query)),
		slog.Int("rows", rows),
		slog.String("sql", query),
		slog.String("params_hash", hashParams(params)),
		slog.Bool("success", err == nil),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	a.log.LogAttrs(ctx, level, "audit_event", attrs...)
}

// LogSecurityEvent records a statement rejected before execution. kind is
// "query_blocked" or "params_blocked". Security events ignore the level.
func (a *Auditor) LogSecurityEvent(ctx context.Context, kind, query string, err error) {
	if a.log == nil {
		return
	}

	attrs := append(ActorFrom(ctx).attrs(),
		slog.String("event_type", kind),
		slog.Time("timestamp", time.Now().UTC()),
		slog.String("table", tracer.DetectTable(query)),
		slog.String("query", query),
	)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	a.log.LogAttrs(ctx, slog.LevelWarn, "security_event", attrs...)
}

// hashParams is the hex SHA-256 of the %v rendering of each value, or "".
func hashParams(params []interface{}) string {
	if len(params) == 0 {
		return ""
	}
	sum := sha256.New()
	for _, p := range params {
		fmt.Fprint(sum, p)
	}
	return hex.EncodeToString(sum.Sum(nil))
}
