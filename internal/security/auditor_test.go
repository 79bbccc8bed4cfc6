package security

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func decodeEvent(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestAuditor_LogOperation(t *testing.T) {
	tests := []struct {
		name    string
		level   AuditLevel
		query   string
		params  []interface{}
		err     error
		wantLog bool
	}{
		{"insert_audit_writes", AuditWrites, "INSERT INTO users(name) VALUES (?)", []interface{}{"Alice"}, nil, true},
		{"select_audit_writes", AuditWrites, "SELECT * FROM users", nil, nil, false},
		{"select_audit_reads", AuditReads, "SELECT * FROM users WHERE id = ?", []interface{}{123}, nil, true},
		{"unknown_audit_reads", AuditReads, "PRAGMA foreign_keys", nil, nil, false},
		{"unknown_audit_all", AuditAll, "PRAGMA foreign_keys", nil, nil, true},
		{"failed_update", AuditWrites, "UPDATE users SET status = ? WHERE id = ?", []interface{}{1, 999}, errors.New("deadlock"), true},
		{"audit_none", AuditNone, "DELETE FROM users WHERE id = ?", []interface{}{1}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewAuditor(newJSONLogger(&buf), tt.level).
				LogOperation(context.Background(), tt.query, tt.params, 0, tt.err, 10*time.Millisecond)

			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}
			entry := decodeEvent(t, &buf)
			assert.Equal(t, "audit_event", entry["msg"])
			assert.Equal(t, tt.query, entry["sql"])
			assert.Equal(t, tt.err == nil, entry["success"])
			if tt.err != nil {
				assert.Equal(t, "WARN", entry["level"])
				assert.Equal(t, tt.err.Error(), entry["error"])
			}
		})
	}
}

func TestAuditor_DerivesOperationAndTable(t *testing.T) {
	var buf bytes.Buffer
	NewAuditor(newJSONLogger(&buf), AuditAll).
		LogOperation(context.Background(), "DELETE FROM sessions WHERE expires_at < ?", []interface{}{1}, 3, nil, time.Millisecond)

	entry := decodeEvent(t, &buf)
	assert.Equal(t, "DELETE", entry["operation"])
	assert.Equal(t, "sessions", entry["table"])
	assert.EqualValues(t, 3, entry["rows"])
}

func TestAuditor_ContextMetadata(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRequestID(WithClientIP(WithUser(context.Background(), "john.doe@example.com"), "192.168.1.100"), "req-12345")

	NewAuditor(newJSONLogger(&buf), AuditAll).
		LogOperation(ctx, "INSERT INTO logs(message) VALUES (?)", []interface{}{"test message"}, 0, nil, 5*time.Millisecond)

	entry := decodeEvent(t, &buf)
	assert.Equal(t, "john.doe@example.com", entry["user"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])
	assert.Equal(t, "req-12345", entry["request_id"])
}

func TestAuditor_ParamsAreHashed(t *testing.T) {
	var buf bytes.Buffer
	params := []interface{}{"Alice", "alice@example.com"}

	NewAuditor(newJSONLogger(&buf), AuditWrites).
		LogOperation(context.Background(), "INSERT INTO users(name, email) VALUES (?, ?)", params, 0, nil, 10*time.Millisecond)

	assert.NotContains(t, buf.String(), "alice@example.com")
	entry := decodeEvent(t, &buf)
	assert.Equal(t, hashParams(params), entry["params_hash"])
}

func TestAuditor_LogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithClientIP(WithUser(context.Background(), "attacker@evil.com"), "10.0.0.1")

	NewAuditor(newJSONLogger(&buf), AuditNone).
		LogSecurityEvent(ctx, "query_blocked", "SELECT * FROM users WHERE id = 1 OR 1=1", ErrDangerousQuery)

	entry := decodeEvent(t, &buf)
	assert.Equal(t, "security_event", entry["msg"])
	assert.Equal(t, "query_blocked", entry["event_type"])
	assert.Equal(t, "attacker@evil.com", entry["user"])
	assert.Equal(t, "users", entry["table"])
	assert.Contains(t, entry["error"], "dangerous SQL pattern")
}

func TestAuditor_NilLogger(t *testing.T) {
	auditor := NewAuditor(nil, AuditAll)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		auditor.LogOperation(ctx, "INSERT INTO test VALUES (?)", []interface{}{1}, 0, nil, time.Millisecond)
		auditor.LogSecurityEvent(ctx, "test_event", "SELECT 1", errors.New("test error"))
	})
}

func TestActorFrom(t *testing.T) {
	ctx := WithRequestID(WithClientIP(WithUser(context.Background(), "u@example.com"), "172.16.0.1"), "req-xyz-789")

	assert.Equal(t, Actor{User: "u@example.com", ClientIP: "172.16.0.1", RequestID: "req-xyz-789"}, ActorFrom(ctx))
	assert.Equal(t, "u@example.com", ActorFrom(WithClientIP(ctx, "10.0.0.2")).User, "later setters keep earlier fields")
	assert.Zero(t, ActorFrom(context.Background()))
}

func TestAuditLevel_Covers(t *testing.T) {
	tests := []struct {
		level AuditLevel
		op    string
		want  bool
	}{
		{AuditNone, "INSERT", false},
		{AuditWrites, "DELETE", true},
		{AuditWrites, "SELECT", false},
		{AuditReads, "UPDATE", true},
		{AuditReads, "SELECT", true},
		{AuditReads, "UNKNOWN", false},
		{AuditAll, "UNKNOWN", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.covers(tt.op), "%d/%s", tt.level, tt.op)
	}
}

func TestHashParams(t *testing.T) {
	assert.Empty(t, hashParams(nil))
	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", // sha256("test")
		hashParams([]interface{}{"test"}))
	assert.Len(t, hashParams([]interface{}{123, "test", true}), 64)
	assert.NotEqual(t, hashParams([]interface{}{"Alice"}), hashParams([]interface{}{"Bob"}))
}
