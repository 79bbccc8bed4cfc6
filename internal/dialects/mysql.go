package dialects

import "strings"

// MySQLDialect quotes identifiers with backticks and binds with "?".
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// QuoteIdentifier wraps each dotted part in backticks, so "shop.order"
// becomes `shop`.`order`. Embedded backticks are doubled.
func (*MySQLDialect) QuoteIdentifier(s string) string { return quoteParts(s, backtick) }

// Placeholder always returns "?".
func (*MySQLDialect) Placeholder(int) string { return "?" }

func backtick(part string) string {
	return "`" + strings.ReplaceAll(part, "`", "``") + "`"
}
