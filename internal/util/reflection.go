// Package util provides reflection helpers used by the mohair query builder.
package util

import (
	"errors"
	"reflect"
	"strings"
)

// parseDBTag extracts the column name from a db tag.
//
// Supported formats:
//   - "column"         -> column
//   - "column,options" -> column (options are ignored)
//   - "-"              -> "-" (skip field)
func parseDBTag(tag string) string {
	column, _, _ := strings.Cut(tag, ",")
	return strings.TrimSpace(column)
}

// StructColumns returns the column names and values of a struct in field
// declaration order.
//
// Rules:
//   - Unexported fields are skipped.
//   - db:"-" fields are skipped.
//   - db:"column_name" maps to column_name; fields without a tag use the field name.
//   - Embedded structs without a db tag are flattened in place.
//   - Zero values are included.
//
// Returns an error if data is not a struct or *struct, or is a nil pointer.
func StructColumns(data interface{}) ([]string, []interface{}, error) {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil, errors.New("StructColumns: nil pointer")
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return nil, nil, errors.New("StructColumns: expected struct, got " + v.Kind().String())
	}

	fields := StructFields(v.Type())
	cols := make([]string, len(fields))
	vals := make([]interface{}, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
		vals[i] = v.FieldByIndex(f.Index).Interface()
	}
	return cols, vals, nil
}

// ColumnField maps a column name to a (possibly nested) struct field.
type ColumnField struct {
	Column string
	Index  []int
}

// StructFields lists the column-mapped fields of a struct type, applying the
// same rules as StructColumns. Pointer types are dereferenced; any other
// non-struct type yields nil.
func StructFields(t reflect.Type) []ColumnField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []ColumnField
	collectFields(t, nil, &out)
	return out
}

func collectFields(t reflect.Type, index []int, out *[]ColumnField) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		path := append(append([]int{}, index...), i)
		tag, hasTag := field.Tag.Lookup("db")

		if field.Anonymous && !hasTag && field.Type.Kind() == reflect.Struct {
			collectFields(field.Type, path, out)
			continue
		}

		column := field.Name
		if hasTag {
			column = parseDBTag(tag)
			if column == "-" {
				continue
			}
			if column == "" {
				column = field.Name
			}
		}

		*out = append(*out, ColumnField{Column: column, Index: path})
	}
}
