// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package criterion implements the predicate sublanguage used by mohair for
// WHERE and JOIN conditions. A Criterion renders to a boolean SQL fragment
// with "?" placeholders plus the ordered values bound to them.
//
// Criteria are immutable: every constructor copies its inputs and And returns
// a new value that shares nothing mutable with its operands.
package criterion

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrInvalidArgs is returned by Parse when the arguments do not describe a criterion.
var ErrInvalidArgs = errors.New("criterion: invalid arguments")

// Criterion is a renderable boolean SQL expression.
//
// Example:
//
//	c := criterion.Eq("status", 1).And(criterion.Gt("age", 18))
//	c.SQL()    // (status = ?) AND (age > ?)
//	c.Params() // [1 18]
type Criterion interface {
	// SQL renders the expression with "?" for every bound value.
	SQL() string
	// Params returns the bound values in placeholder order.
	Params() []interface{}
	// And returns the conjunction of the receiver and other.
	And(other Criterion) Criterion
}

// and is embedded by every concrete criterion to provide And.
type and struct {
	self Criterion
}

func (a and) And(other Criterion) Criterion {
	return All(a.self, other)
}

// copyArgs returns a private copy of args so callers cannot mutate a criterion later.
func copyArgs(args []interface{}) []interface{} {
	if len(args) == 0 {
		return nil
	}
	out := make([]interface{}, len(args))
	copy(out, args)
	return out
}

// raw is a literal SQL fragment with bindings.
type raw struct {
	and
	sql    string
	params []interface{}
}

// Raw creates a criterion from a SQL fragment with optional "?" bindings.
//
//	criterion.Raw("age > ? AND status = ?", 18, "active")
func Raw(sql string, params ...interface{}) Criterion {
	r := &raw{sql: sql, params: copyArgs(params)}
	r.self = r
	return r
}

func (r *raw) SQL() string           { return r.sql }
func (r *raw) Params() []interface{} { return copyArgs(r.params) }

// compare is a binary comparison between a column and a value.
type compare struct {
	and
	col   string
	op    string
	value interface{}
}

func newCompare(col, op string, value interface{}) Criterion {
	c := &compare{col: col, op: op, value: value}
	c.self = c
	return c
}

// Eq renders "col = ?". A nil value renders "col IS NULL".
func Eq(col string, value interface{}) Criterion { return newCompare(col, "=", value) }

// NotEq renders "col <> ?". A nil value renders "col IS NOT NULL".
func NotEq(col string, value interface{}) Criterion { return newCompare(col, "<>", value) }

// Gt renders "col > ?".
func Gt(col string, value interface{}) Criterion { return newCompare(col, ">", value) }

// Lt renders "col < ?".
func Lt(col string, value interface{}) Criterion { return newCompare(col, "<", value) }

// Gte renders "col >= ?".
func Gte(col string, value interface{}) Criterion { return newCompare(col, ">=", value) }

// Lte renders "col <= ?".
func Lte(col string, value interface{}) Criterion { return newCompare(col, "<=", value) }

func (c *compare) SQL() string {
	if c.value == nil {
		switch c.op {
		case "=":
			return c.col + " IS NULL"
		case "<>":
			return c.col + " IS NOT NULL"
		}
	}
	if sub, ok := c.value.(Criterion); ok {
		return c.col + " " + c.op + " (" + sub.SQL() + ")"
	}
	return c.col + " " + c.op + " ?"
}

func (c *compare) Params() []interface{} {
	if c.value == nil && (c.op == "=" || c.op == "<>") {
		return nil
	}
	if sub, ok := c.value.(Criterion); ok {
		return sub.Params()
	}
	return []interface{}{c.value}
}

// in is an IN or NOT IN list.
type in struct {
	and
	col    string
	values []interface{}
	not    bool
}

// In renders "col IN (?, ?, ...)".
// An empty list renders "1 = 0"; a single value collapses to Eq.
func In(col string, values ...interface{}) Criterion {
	c := &in{col: col, values: copyArgs(values)}
	c.self = c
	return c
}

// NotIn renders "col NOT IN (?, ?, ...)".
// An empty list renders "1 = 1"; a single value collapses to NotEq.
func NotIn(col string, values ...interface{}) Criterion {
	c := &in{col: col, values: copyArgs(values), not: true}
	c.self = c
	return c
}

func (c *in) SQL() string {
	switch len(c.values) {
	case 0:
		if c.not {
			return "1 = 1"
		}
		return "1 = 0"
	case 1:
		return c.single().SQL()
	}

	marks := make([]string, len(c.values))
	for i := range marks {
		marks[i] = "?"
	}
	op := "IN"
	if c.not {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", c.col, op, strings.Join(marks, ", "))
}

func (c *in) Params() []interface{} {
	switch len(c.values) {
	case 0:
		return nil
	case 1:
		return c.single().Params()
	}
	return copyArgs(c.values)
}

func (c *in) single() Criterion {
	if c.not {
		return NotEq(c.col, c.values[0])
	}
	return Eq(c.col, c.values[0])
}

// between is a BETWEEN or NOT BETWEEN range.
type between struct {
	and
	col      string
	from, to interface{}
	not      bool
}

// Between renders "col BETWEEN ? AND ?".
func Between(col string, from, to interface{}) Criterion {
	c := &between{col: col, from: from, to: to}
	c.self = c
	return c
}

// NotBetween renders "col NOT BETWEEN ? AND ?".
func NotBetween(col string, from, to interface{}) Criterion {
	c := &between{col: col, from: from, to: to, not: true}
	c.self = c
	return c
}

func (c *between) SQL() string {
	if c.not {
		return c.col + " NOT BETWEEN ? AND ?"
	}
	return c.col + " BETWEEN ? AND ?"
}

func (c *between) Params() []interface{} {
	return []interface{}{c.from, c.to}
}

// DefaultLikeEscape lists the LIKE special characters and their escaped forms
// as pairs: [special, escaped, special, escaped, ...].
var DefaultLikeEscape = []string{"\\", "\\\\", "%", "\\%", "_", "\\_"}

// LikeCriterion is a LIKE or NOT LIKE match with automatic escaping.
type LikeCriterion struct {
	and
	col         string
	value       string
	not         bool
	left, right bool
}

// Like renders "col LIKE ?" with the value escaped and wrapped in "%" on both sides.
func Like(col, value string) *LikeCriterion {
	c := &LikeCriterion{col: col, value: value, left: true, right: true}
	c.self = c
	return c
}

// NotLike renders "col NOT LIKE ?".
func NotLike(col, value string) *LikeCriterion {
	c := Like(col, value)
	c.not = true
	return c
}

// Match returns a copy with wildcards on the left and/or right side only.
// Match(false, true) matches prefixes.
func (c *LikeCriterion) Match(left, right bool) *LikeCriterion {
	out := *c
	out.left, out.right = left, right
	out.self = &out
	return &out
}

// SQL renders the LIKE fragment.
func (c *LikeCriterion) SQL() string {
	if c.not {
		return c.col + " NOT LIKE ?"
	}
	return c.col + " LIKE ?"
}

// Params returns the escaped pattern.
func (c *LikeCriterion) Params() []interface{} {
	val := c.value
	for j := 0; j < len(DefaultLikeEscape); j += 2 {
		val = strings.ReplaceAll(val, DefaultLikeEscape[j], DefaultLikeEscape[j+1])
	}
	if c.left {
		val = "%" + val
	}
	if c.right {
		val += "%"
	}
	return []interface{}{val}
}

// Hash is a column/value map rendered as equality conditions joined with AND.
// Keys are sorted so the generated SQL is deterministic.
//
//	criterion.Hash{"status": 1, "deleted_at": nil, "role": []interface{}{"a", "b"}}
//	// deleted_at IS NULL AND role IN (?, ?) AND status = ?
type Hash map[string]interface{}

func (h Hash) parts() []Criterion {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]Criterion, 0, len(keys))
	for _, k := range keys {
		if list, ok := asList(h[k]); ok {
			parts = append(parts, In(k, list...))
			continue
		}
		parts = append(parts, Eq(k, h[k]))
	}
	return parts
}

// SQL renders the hash.
func (h Hash) SQL() string {
	parts := h.parts()
	if len(parts) == 0 {
		return "1 = 1"
	}
	frags := make([]string, len(parts))
	for i, p := range parts {
		frags[i] = p.SQL()
	}
	return strings.Join(frags, " AND ")
}

// Params returns the bound values in sorted-key order.
func (h Hash) Params() []interface{} {
	var params []interface{}
	for _, p := range h.parts() {
		params = append(params, p.Params()...)
	}
	return params
}

// And returns the conjunction of h and other.
// h is snapshotted so later writes to the map do not leak into the result.
func (h Hash) And(other Criterion) Criterion {
	return All(Raw(h.SQL(), h.Params()...), other)
}

// asList reports whether v is a slice or array (other than []byte) and returns its elements.
func asList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case nil, []byte:
		return nil, false
	case []interface{}:
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// junction is an AND or OR over several criteria.
type junction struct {
	and
	parts []Criterion
	op    string
}

// All combines criteria with AND. Nil criteria are skipped.
// A single remaining criterion renders without parentheses.
func All(cs ...Criterion) Criterion {
	return newJunction("AND", cs)
}

// Any combines criteria with OR. Nil criteria are skipped.
func Any(cs ...Criterion) Criterion {
	return newJunction("OR", cs)
}

func newJunction(op string, cs []Criterion) Criterion {
	parts := make([]Criterion, 0, len(cs))
	for _, c := range cs {
		if c != nil {
			parts = append(parts, Snapshot(c))
		}
	}
	j := &junction{parts: parts, op: op}
	j.self = j
	return j
}

func (j *junction) SQL() string {
	switch len(j.parts) {
	case 0:
		if j.op == "OR" {
			return "1 = 0"
		}
		return "1 = 1"
	case 1:
		return j.parts[0].SQL()
	}
	frags := make([]string, len(j.parts))
	for i, p := range j.parts {
		frags[i] = p.SQL()
	}
	return "(" + strings.Join(frags, ") "+j.op+" (") + ")"
}

func (j *junction) Params() []interface{} {
	var params []interface{}
	for _, p := range j.parts {
		params = append(params, p.Params()...)
	}
	return params
}

// not negates a criterion.
type not struct {
	and
	inner Criterion
}

// Not renders "NOT (c)".
func Not(c Criterion) Criterion {
	n := &not{inner: Snapshot(c)}
	n.self = n
	return n
}

func (n *not) SQL() string {
	if n.inner == nil {
		return "1 = 0"
	}
	return "NOT (" + n.inner.SQL() + ")"
}

func (n *not) Params() []interface{} {
	if n.inner == nil {
		return nil
	}
	return n.inner.Params()
}

// Parse builds a criterion from loosely typed arguments:
//
//	Parse(c)                      // c itself
//	Parse(Hash{"id": 5})          // id = ?
//	Parse("id", 5)                // id = ?
//	Parse("a = ? OR b = ?", 1, 2) // raw SQL with bindings
//	Parse("deleted_at IS NULL")   // raw SQL without bindings
func Parse(args ...interface{}) (Criterion, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no arguments", ErrInvalidArgs)
	}

	switch first := args[0].(type) {
	case Criterion:
		if len(args) > 1 {
			return nil, fmt.Errorf("%w: unexpected arguments after criterion", ErrInvalidArgs)
		}
		if h, ok := first.(Hash); ok {
			return copyHash(h), nil
		}
		return first, nil

	case map[string]interface{}:
		if len(args) > 1 {
			return nil, fmt.Errorf("%w: unexpected arguments after map", ErrInvalidArgs)
		}
		return copyHash(first), nil

	case string:
		rest := args[1:]
		marks := strings.Count(first, "?")
		if marks == 0 && len(rest) == 1 {
			if list, ok := asList(rest[0]); ok {
				return In(first, list...), nil
			}
			return Eq(first, rest[0]), nil
		}
		if marks != len(rest) {
			return nil, fmt.Errorf("%w: %q has %d placeholders but %d params were given",
				ErrInvalidArgs, first, marks, len(rest))
		}
		return Raw(first, rest...), nil
	}

	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidArgs, args[0])
}

// copyHash copies h and any list values in it, so writes to the caller's
// map or slices do not reach the copy.
func copyHash(h map[string]interface{}) Hash {
	out := make(Hash, len(h))
	for k, v := range h {
		if list, ok := asList(v); ok {
			v = copyArgs(list)
			if v == nil {
				v = []interface{}{}
			}
		}
		out[k] = v
	}
	return out
}

// Snapshot returns c with any Hash replaced by a private copy. Every other
// criterion already owns its inputs and is returned as is.
func Snapshot(c Criterion) Criterion {
	if h, ok := c.(Hash); ok {
		return copyHash(h)
	}
	return c
}
