// Package dialects provides database-specific SQL dialects for PostgreSQL,
// MySQL, and SQLite: identifier quoting for the query builder's escape hook
// and placeholder styles for binding "?" parameters.
package dialects

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnsupportedDialect is returned when no dialect is registered for a driver name.
var ErrUnsupportedDialect = errors.New("unsupported database dialect")

// Dialect defines database-specific behaviors.
type Dialect interface {
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(string) string
	// Placeholder returns the bind marker for the 1-based parameter index.
	Placeholder(int) string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Lookup retrieves a registered dialect by driver name.
func Lookup(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	if d, ok := dialects[name]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, name)
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	d, err := Lookup(name)
	if err != nil {
		panic("unsupported dialect: " + name)
	}
	return d
}

// Rebind rewrites every "?" placeholder in query into the dialect's placeholder
// format, numbering from 1. Question marks inside single-quoted string literals,
// double-quoted identifiers and backtick-quoted identifiers are left alone.
//
// Example (PostgreSQL):
//
//	Rebind(pg, "SELECT * FROM t WHERE a = ? AND b = '?'") // ... a = $1 AND b = '?'
func Rebind(d Dialect, query string) string {
	if d.Placeholder(1) == "?" || !strings.Contains(query, "?") {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	var quote rune
	n := 0
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		case r == '?':
			n++
			sb.WriteString(d.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}
