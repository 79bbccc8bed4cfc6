// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"strconv"
	"strings"

	"github.com/coregx/mohair/internal/criterion"
)

// Criterion is the predicate contract used for WHERE and JOIN conditions.
type Criterion = criterion.Criterion

// verb is the SQL operation a Query is configured for.
// The zero value is verbSelect so that Query{} means SELECT *.
type verb int

const (
	verbSelect verb = iota
	verbInsert
	verbUpdate
	verbDelete
)

func (v verb) String() string {
	switch v {
	case verbInsert:
		return "insert"
	case verbUpdate:
		return "update"
	case verbDelete:
		return "delete"
	default:
		return "select"
	}
}

// action is the verb plus its verb-specific payload.
type action struct {
	verb       verb
	projection string   // select; empty means "*"
	records    []Record // insert
	fields     Record   // update
}

// join is one JOIN fragment with an optional condition ANDed onto it.
type join struct {
	sql string
	on  Criterion
}

// Query is an immutable SQL query description.
//
// Every method returns a new Query and leaves the receiver untouched, so a
// partially built Query can be reused as the base of several queries and
// shared between goroutines without synchronization. The zero value is a
// valid builder configured as SELECT *.
//
// Example:
//
//	users := mohair.Table("users")
//	q := users.Where(mohair.Eq("id", 5))
//	sql, _ := q.SQL()       // SELECT * FROM users WHERE id = ?
//	params, _ := q.Params() // [5]
type Query struct {
	table  string
	action action
	joins  []join
	where  Criterion
	group  string
	order  string

	limit     int
	hasLimit  bool
	offset    int
	hasOffset bool

	escape func(string) string
	conn   Connection
}

// New returns an empty Query configured as SELECT *.
func New() Query {
	return Query{}
}

// Table sets the target table.
func (q Query) Table(name string) Query {
	q.table = name
	return q
}

// Select configures a SELECT with the given projection.
// Blank fragments are skipped, and with none left the projection is "*".
// Several fragments are joined with ", ". Fragments are raw SQL and are
// never escaped.
func (q Query) Select(fragments ...string) Query {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if strings.TrimSpace(f) != "" {
			kept = append(kept, f)
		}
	}
	q.action = action{verb: verbSelect, projection: strings.Join(kept, ", ")}
	return q
}

// Insert configures an INSERT of one or more records.
// All records must have the same columns in the same order.
// On error the returned Query is the zero value and must not be used.
func (q Query) Insert(records ...Record) (Query, error) {
	if err := validateRecords("insert", records); err != nil {
		return Query{}, err
	}

	owned := make([]Record, len(records))
	for i, r := range records {
		owned[i] = r.clone()
	}

	q.action = action{verb: verbInsert, records: owned}
	return q, nil
}

// InsertStructs configures an INSERT of one or more structs.
// Columns come from db tags in field declaration order.
func (q Query) InsertStructs(models ...interface{}) (Query, error) {
	records := make([]Record, 0, len(models))
	for _, m := range models {
		r, err := RecordFromStruct(m)
		if err != nil {
			return Query{}, err
		}
		records = append(records, r)
	}
	return q.Insert(records...)
}

// Update configures an UPDATE setting the given fields, in order.
func (q Query) Update(fields Record) Query {
	q.action = action{verb: verbUpdate, fields: fields.clone()}
	return q
}

// Delete configures a DELETE.
func (q Query) Delete() Query {
	q.action = action{verb: verbDelete}
	return q
}

// Where adds a condition. Repeated calls are combined with AND.
// A nil criterion leaves the query unchanged. A Hash is copied, so later
// writes to the map do not change the query.
func (q Query) Where(c Criterion) Query {
	if c == nil {
		return q
	}
	if q.where == nil {
		q.where = criterion.Snapshot(c)
	} else {
		q.where = q.where.And(c)
	}
	return q
}

// WhereArgs is Where with the condition given in the loose forms Parse
// accepts:
//
//	q.WhereArgs("id", 5)                     // id = ?
//	q.WhereArgs("a = ? OR b = ?", 1, 2)      // raw SQL with bindings
//	q.WhereArgs(map[string]interface{}{...}) // hash
//
// Arguments Parse rejects return a *ValidationError.
func (q Query) WhereArgs(args ...interface{}) (Query, error) {
	c, err := parseArgs("where", args)
	if err != nil {
		return Query{}, err
	}
	return q.Where(c), nil
}

// JoinArgs is Join with the condition given in the loose forms Parse accepts.
// With no args the fragment is appended without a condition.
func (q Query) JoinArgs(fragment string, args ...interface{}) (Query, error) {
	if len(args) == 0 {
		return q.Join(fragment), nil
	}
	c, err := parseArgs("join", args)
	if err != nil {
		return Query{}, err
	}
	return q.Join(fragment, c), nil
}

func parseArgs(op string, args []interface{}) (Criterion, error) {
	c, err := criterion.Parse(args...)
	if err != nil {
		return nil, validationErr(op, err.Error())
	}
	return c, nil
}

// Join appends a raw JOIN fragment. Optional criteria are combined with AND
// and rendered as " AND (...)" right after this fragment.
//
//	Join("JOIN orders ON orders.user_id = users.id", mohair.Gt("orders.total", 100))
func (q Query) Join(fragment string, on ...Criterion) Query {
	j := join{sql: fragment}
	if len(on) == 1 {
		j.on = criterion.Snapshot(on[0])
	} else if len(on) > 1 {
		j.on = criterion.All(on...)
	}

	joins := make([]join, len(q.joins), len(q.joins)+1)
	copy(joins, q.joins)
	q.joins = append(joins, j)
	return q
}

// Group sets the raw GROUP BY fragment.
func (q Query) Group(fragment string) Query {
	q.group = fragment
	return q
}

// Order sets the raw ORDER BY fragment.
func (q Query) Order(fragment string) Query {
	q.order = fragment
	return q
}

// Limit sets the LIMIT, bound as a parameter.
func (q Query) Limit(n int) Query {
	q.limit, q.hasLimit = n, true
	return q
}

// Offset sets the OFFSET, bound as a parameter.
func (q Query) Offset(n int) Query {
	q.offset, q.hasOffset = n, true
	return q
}

// ParseLimit parses s as a base-10 integer and sets it as the LIMIT.
// Non-numeric input is rejected with a *ValidationError.
func (q Query) ParseLimit(s string) (Query, error) {
	n, err := parseInt("limit", s)
	if err != nil {
		return Query{}, err
	}
	return q.Limit(n), nil
}

// ParseOffset parses s as a base-10 integer and sets it as the OFFSET.
// Non-numeric input is rejected with a *ValidationError.
func (q Query) ParseOffset(s string) (Query, error) {
	n, err := parseInt("offset", s)
	if err != nil {
		return Query{}, err
	}
	return q.Offset(n), nil
}

func parseInt(op, s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, strconv.IntSize)
	if err != nil {
		return 0, validationErr(op, strconv.Quote(s)+" is not a base-10 integer")
	}
	return int(n), nil
}

// Escape sets the function applied to table and column names.
// A nil function restores the identity default.
func (q Query) Escape(fn func(string) string) Query {
	q.escape = fn
	return q
}

// Connect sets the connection used by Exec, FindOne and Exists.
func (q Query) Connect(conn Connection) Query {
	q.conn = conn
	return q
}

// quote applies the configured escaping strategy.
func (q Query) quote(identifier string) string {
	if q.escape == nil {
		return identifier
	}
	return q.escape(identifier)
}
