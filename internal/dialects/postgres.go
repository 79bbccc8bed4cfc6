package dialects

import (
	"strconv"
	"strings"
)

// PostgresDialect quotes identifiers with double quotes and binds with $n.
type PostgresDialect struct{}

func init() {
	for _, driver := range []string{"postgres", "postgresql", "pgx"} {
		RegisterDialect(driver, &PostgresDialect{})
	}
}

// QuoteIdentifier wraps each dotted part in double quotes, so "public.users"
// becomes "public"."users". Embedded double quotes are doubled.
func (*PostgresDialect) QuoteIdentifier(s string) string { return quoteParts(s, doubleQuote) }

// Placeholder returns "$1", "$2", ...
func (*PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func doubleQuote(part string) string {
	return `"` + strings.ReplaceAll(part, `"`, `""`) + `"`
}

// quoteParts quotes every dot-separated part of identifier, trimming
// surrounding spaces from each.
func quoteParts(identifier string, quote func(string) string) string {
	parts := strings.Split(identifier, ".")
	for i, p := range parts {
		parts[i] = quote(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}
