package dialects

// SQLiteDialect quotes identifiers like PostgreSQL and binds with "?".
// It serves both the pure Go driver ("sqlite") and the cgo one ("sqlite3").
type SQLiteDialect struct{}

func init() {
	for _, driver := range []string{"sqlite", "sqlite3"} {
		RegisterDialect(driver, &SQLiteDialect{})
	}
}

// QuoteIdentifier wraps each dotted part in double quotes.
func (*SQLiteDialect) QuoteIdentifier(s string) string { return quoteParts(s, doubleQuote) }

// Placeholder always returns "?".
func (*SQLiteDialect) Placeholder(int) string { return "?" }
