// Package security screens rendered SQL and bound parameters before they reach
// the driver, and writes an audit trail of executed statements.
package security

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrDangerousQuery is returned when rendered SQL matches a blocked pattern.
	ErrDangerousQuery = errors.New("security: dangerous SQL pattern")

	// ErrSuspiciousParam is returned when a string parameter looks like an injection payload.
	ErrSuspiciousParam = errors.New("security: suspicious parameter")
)

// Validator checks statements against known injection patterns.
//
// Statements built with mohair bind every value as a placeholder, so a match
// usually means a raw fragment (projection, join, group, order or Raw
// criterion) was assembled from untrusted input.
type Validator struct {
	rules  []rule
	strict bool
}

type rule struct {
	name string
	re   *regexp.Regexp
}

func newRule(name, pattern string) rule {
	return rule{name: name, re: regexp.MustCompile(`(?is)` + pattern)}
}

// ValidatorOption configures the Validator.
type ValidatorOption func(*Validator)

// WithStrict additionally rejects inline literals and statement separators.
func WithStrict(strict bool) ValidatorOption {
	return func(v *Validator) {
		v.strict = strict
	}
}

// NewValidator returns a validator with the default rule set.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}

	v.rules = append(v.rules, defaultRules...)
	if v.strict {
		v.rules = append(v.rules, strictRules...)
	}
	return v
}

var defaultRules = []rule{
	newRule("line comment", `--\s`),
	newRule("block comment", `/\*.*\*/`),
	newRule("hash comment", `#\s`),

	newRule("stacked statement", `;\s*(?:DROP|DELETE|TRUNCATE|ALTER|CREATE)\s`),
	newRule("union select", `\bUNION\s+(?:ALL\s+)?SELECT\b`),

	newRule("stored procedure", `\b(?:XP_CMDSHELL|SP_EXECUTESQL)\b|\bEXEC\s+(?:XP|SP)_`),
	newRule("dynamic exec", `\bEXEC(?:UTE)?\s*\(`),
	newRule("schema probe", `\bINFORMATION_SCHEMA\b`),
	newRule("time delay", `\bPG_SLEEP\s*\(|\bBENCHMARK\s*\(|\bWAITFOR\s+DELAY\b`),

	newRule("tautology", `\sOR\s+1\s*=\s*1\b|\sOR\s+'1'\s*=\s*'1'`),
	newRule("contradiction", `\sAND\s+1\s*=\s*0\b`),
}

// Rendered statements carry no literals or separators of their own, so
// strict mode treats any of these as coming from a raw fragment.
var strictRules = []rule{
	newRule("inline literal", `'[^']*'`),
	newRule("statement separator", `;`),
	newRule("union", `\bUNION\b`),
	newRule("exec", `\bEXEC(?:UTE)?\b`),
}

// ValidateQuery returns an error wrapping ErrDangerousQuery naming the first
// rule query breaks. Matching ignores case.
func (v *Validator) ValidateQuery(query string) error {
	for _, r := range v.rules {
		if r.re.MatchString(query) {
			return fmt.Errorf("%w: %s", ErrDangerousQuery, r.name)
		}
	}
	return nil
}

// ValidateParams returns an error wrapping ErrSuspiciousParam for the first
// string (or fmt.Stringer) parameter carrying an injection payload.
// Positions in the error are 1-based to match placeholder numbering.
func (v *Validator) ValidateParams(params []interface{}) error {
	for i, param := range params {
		var text string
		switch p := param.(type) {
		case string:
			text = p
		case fmt.Stringer:
			text = p.String()
		default:
			continue
		}

		if payload.MatchString(text) {
			return fmt.Errorf("%w at position %d", ErrSuspiciousParam, i+1)
		}
	}
	return nil
}

// payload matches a quote breaking out into SQL, comment markers and
// SQL Server extended procedures.
var payload = regexp.MustCompile(`(?i)'\s*(?:--|;)|'\s+(?:OR|AND|UNION|DROP)\s|/\*|\*/|\bxp_`)
