package core

import (
	"sort"

	"github.com/coregx/mohair/internal/util"
)

// Field is a single column/value pair of a Record.
type Field struct {
	Column string
	Value  interface{}
}

// Record is an ordered set of column/value pairs used as the payload of
// Insert and Update. Column order is significant: it is both the column order
// in the generated SQL and the order of the bound parameters.
//
// Example:
//
//	mohair.Record{}.Set("name", "alice").Set("age", 30)
type Record []Field

// Set returns a copy of r with column set to value. An existing column keeps
// its position; a new column is appended. r itself is never modified.
func (r Record) Set(column string, value interface{}) Record {
	out := make(Record, len(r), len(r)+1)
	copy(out, r)
	for i := range out {
		if out[i].Column == column {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Column: column, Value: value})
}

// Columns returns the column names in order.
func (r Record) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Column
	}
	return cols
}

// Values returns the values in column order.
func (r Record) Values() []interface{} {
	vals := make([]interface{}, len(r))
	for i, f := range r {
		vals[i] = f.Value
	}
	return vals
}

// clone returns a copy that shares no backing array with r.
func (r Record) clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// RecordFromMap builds a Record from a map.
// Keys are sorted for deterministic SQL generation.
func RecordFromMap(m map[string]interface{}) Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := make(Record, 0, len(keys))
	for _, k := range keys {
		r = append(r, Field{Column: k, Value: m[k]})
	}
	return r
}

// RecordFromStruct builds a Record from a struct or pointer to struct.
// Fields keep declaration order; db:"name" tags rename columns, db:"-" skips a field,
// and unexported fields are ignored.
func RecordFromStruct(v interface{}) (Record, error) {
	cols, vals, err := util.StructColumns(v)
	if err != nil {
		return nil, validationErr("RecordFromStruct", err.Error())
	}

	r := make(Record, len(cols))
	for i := range cols {
		r[i] = Field{Column: cols[i], Value: vals[i]}
	}
	return r, nil
}

// validateRecords checks that records is non-empty and that every record has
// the same columns, in the same order, as the first one.
func validateRecords(op string, records []Record) error {
	if len(records) == 0 {
		return validationErr(op, "no records to insert")
	}

	first := records[0]
	if len(first) == 0 {
		return validationErr(op, "record has no columns")
	}

	seen := make(map[string]struct{}, len(first))
	for _, f := range first {
		if f.Column == "" {
			return validationErr(op, "record has an empty column name")
		}
		if _, dup := seen[f.Column]; dup {
			return validationErr(op, "duplicate column "+f.Column)
		}
		seen[f.Column] = struct{}{}
	}

	for _, rec := range records[1:] {
		if len(rec) != len(first) {
			return validationErr(op, "all records must have the same columns")
		}
		for i := range rec {
			if rec[i].Column != first[i].Column {
				return validationErr(op, "all records must have the same columns")
			}
		}
	}

	return nil
}
