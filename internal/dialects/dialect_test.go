package dialects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"postgres", "postgresql", "pgx", "mysql", "sqlite", "sqlite3"} {
		t.Run(name, func(t *testing.T) {
			d, err := Lookup(name)
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}

	_, err := Lookup("oracle")
	require.ErrorIs(t, err, ErrUnsupportedDialect)
	assert.Contains(t, err.Error(), "oracle")
}

func TestGetDialect_PanicsOnUnknown(t *testing.T) {
	assert.Panics(t, func() { GetDialect("nope") })
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		driver string
		in     string
		want   string
	}{
		{"postgres", "users", `"users"`},
		{"postgres", "public.users", `"public"."users"`},
		{"postgres", `we"ird`, `"we""ird"`},
		{"sqlite", "users", `"users"`},
		{"mysql", "users", "`users`"},
		{"mysql", "app.users", "`app`.`users`"},
		{"mysql", "we`ird", "`we``ird`"},
	}

	for _, tt := range tests {
		t.Run(tt.driver+"/"+tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, GetDialect(tt.driver).QuoteIdentifier(tt.in))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", GetDialect("postgres").Placeholder(1))
	assert.Equal(t, "$12", GetDialect("pgx").Placeholder(12))
	assert.Equal(t, "?", GetDialect("mysql").Placeholder(3))
	assert.Equal(t, "?", GetDialect("sqlite3").Placeholder(3))
}

func TestRebind(t *testing.T) {
	pg := GetDialect("postgres")

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "no placeholders",
			query: "SELECT * FROM users",
			want:  "SELECT * FROM users",
		},
		{
			name:  "sequential numbering",
			query: "SELECT * FROM users WHERE a = ? AND b = ? LIMIT ? OFFSET ?",
			want:  "SELECT * FROM users WHERE a = $1 AND b = $2 LIMIT $3 OFFSET $4",
		},
		{
			name:  "string literal untouched",
			query: "SELECT * FROM t WHERE a = '?' AND b = ?",
			want:  "SELECT * FROM t WHERE a = '?' AND b = $1",
		},
		{
			name:  "escaped quote inside literal",
			query: "SELECT * FROM t WHERE a = 'it''s ?' AND b = ?",
			want:  "SELECT * FROM t WHERE a = 'it''s ?' AND b = $1",
		},
		{
			name:  "quoted identifier untouched",
			query: `SELECT "what?" FROM t WHERE id = ?`,
			want:  `SELECT "what?" FROM t WHERE id = $1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rebind(pg, tt.query))
		})
	}
}

func TestRebind_QuestionMarkDialectsUnchanged(t *testing.T) {
	q := "INSERT INTO t(a, b) VALUES (?, ?)"
	assert.Equal(t, q, Rebind(GetDialect("mysql"), q))
	assert.Equal(t, q, Rebind(GetDialect("sqlite"), q))
}
