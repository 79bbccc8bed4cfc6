package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSensitiveFields lists column names whose bound values are masked by default.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

const maskValue = "***REDACTED***"

var (
	wordRegex   = regexp.MustCompile(`\w+`)
	insertRegex = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s+[^(]+\(([^)]*)\)\s*VALUES`)

	// keywords that may sit between a column and its placeholder, or between
	// two placeholders of the same column ("a IN (?, ?)", "a BETWEEN ? AND ?").
	operatorWords = map[string]bool{
		"AND": true, "OR": true, "NOT": true, "IN": true, "IS": true,
		"LIKE": true, "ILIKE": true, "BETWEEN": true,
	}
	// keywords whose placeholder is never bound to a column.
	pagingWords = map[string]bool{"LIMIT": true, "OFFSET": true}
)

// Sanitizer masks sensitive values in query parameters before they are logged.
//
// Queries built by mohair always bind values with "?", so every placeholder can
// be traced back to the column it is compared with or assigned to. Only the
// values bound to sensitive columns are masked; the rest are logged as-is.
type Sanitizer struct {
	patterns []*regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given column names.
// If no fields are provided, DefaultSensitiveFields is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)(^|[^a-z0-9])`+regexp.QuoteMeta(field)+`($|[^a-z0-9])`))
	}

	return &Sanitizer{patterns: patterns}
}

// MaskParams returns a copy of params with every value bound to a sensitive
// column replaced by a mask. The original slice is never modified.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.matches(sql) {
		return params
	}

	sensitive := s.sensitivePositions(sql, len(params))

	masked := make([]interface{}, len(params))
	for i, p := range params {
		if sensitive[i] {
			masked[i] = maskValue
		} else {
			masked[i] = p
		}
	}
	return masked
}

// sensitivePositions maps each placeholder index to whether it binds a sensitive column.
func (s *Sanitizer) sensitivePositions(sql string, n int) []bool {
	out := make([]bool, n)

	// INSERT INTO t(c1, c2) VALUES (?, ?), (?, ?): position i binds column i % len(cols).
	if m := insertRegex.FindStringSubmatch(sql); m != nil {
		cols := strings.Split(m[1], ",")
		for i := range out {
			out[i] = s.matches(cols[i%len(cols)])
		}
		return out
	}

	// Everything else: the column is in the text since the previous placeholder.
	segments := strings.Split(sql, "?")
	prev := false
	for i := 0; i < n && i < len(segments); i++ {
		cur, decided := s.classify(segments[i])
		if !decided {
			cur = prev
		}
		out[i] = cur
		prev = cur
	}
	return out
}

// classify inspects the SQL between two placeholders. It returns decided=false
// when the segment holds nothing but operators, so the placeholder belongs to
// the same column as the previous one.
func (s *Sanitizer) classify(segment string) (sensitive, decided bool) {
	words := wordRegex.FindAllString(segment, -1)
	if len(words) == 0 {
		return false, false
	}

	last := strings.ToUpper(words[len(words)-1])
	if pagingWords[last] {
		return false, true
	}

	onlyOperators := true
	for _, w := range words {
		if !operatorWords[strings.ToUpper(w)] {
			onlyOperators = false
			break
		}
	}
	if onlyOperators {
		return false, false
	}

	// Only the trailing expression matters: "a = ? AND password = ?" must not
	// attribute "a" to the second placeholder.
	tail := segment
	if idx := lastBoundary(segment); idx >= 0 {
		tail = segment[idx:]
	}
	return s.matches(tail), true
}

// lastBoundary returns the index just past the last " AND ", " OR ", "," or
// SQL clause keyword that precedes a column reference.
func lastBoundary(segment string) int {
	upper := strings.ToUpper(segment)
	best := -1
	for _, sep := range []string{" AND ", " OR ", ",", "(", " WHERE ", " SET ", " ON "} {
		if i := strings.LastIndex(upper, sep); i >= 0 && i+len(sep) < len(upper) {
			// Ignore a separator that is the operator right before the placeholder.
			if strings.TrimSpace(upper[i+len(sep):]) == "" {
				continue
			}
			if i+len(sep) > best {
				best = i + len(sep)
			}
		}
	}
	return best
}

func (s *Sanitizer) matches(text string) bool {
	for _, p := range s.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// FormatParams converts parameters to a string for logging.
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue formats a single parameter, truncating long values.
func formatValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	var str string
	if b, ok := v.([]byte); ok {
		str = fmt.Sprintf("<%d bytes>", len(b))
	} else {
		str = fmt.Sprintf("%v", v)
	}

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
