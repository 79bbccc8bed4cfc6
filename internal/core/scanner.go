package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/coregx/mohair/internal/util"
)

// binaryTypes are database type names whose []byte values stay []byte.
// Every other []byte column value is converted to string.
var binaryTypes = map[string]struct{}{
	"BLOB":       {},
	"BYTEA":      {},
	"BINARY":     {},
	"VARBINARY":  {},
	"TINYBLOB":   {},
	"MEDIUMBLOB": {},
	"LONGBLOB":   {},
}

// scanRows reads every remaining row into a Row keyed by column name.
// rows is not closed.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	binary := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			_, binary[i] = binaryTypes[strings.ToUpper(ct.DatabaseTypeName())]
		}
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		dests := make([]interface{}, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return result, fmt.Errorf("scanner: scan failed: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok && !binary[i] {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	return result, rows.Err()
}

// String returns the value of column as a string.
// Returns "" if the column is missing or NULL.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// IsNull reports whether column is NULL or missing.
func (r Row) IsNull(column string) bool {
	return r[column] == nil
}

// Has reports whether the row has column, NULL or not.
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// Columns returns the column names sorted alphabetically.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Decode copies the row into the struct pointed to by dest.
// Columns are matched to fields by db tag, case-insensitively; unmatched
// columns and fields are ignored. Fields implementing sql.Scanner receive
// the raw value through Scan.
//
// Example:
//
//	var u User
//	row, _ := users.Where(mohair.Eq("id", 1)).FindOne(ctx)
//	err := row.Decode(&u)
func (r Row) Decode(dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("scanner: dest must be a non-nil pointer to struct, got %T", dest)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be pointer to struct, got pointer to %s", v.Kind())
	}
	return r.decodeInto(v, structFieldsOf(v.Type()))
}

// DecodeRows decodes rows into dest, a pointer to a slice of structs or
// struct pointers. dest is replaced, not appended to.
func DecodeRows(rows []Row, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("scanner: dest must be a non-nil pointer to slice, got %T", dest)
	}
	slice := v.Elem()
	if slice.Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest must be pointer to slice, got pointer to %s", slice.Kind())
	}

	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("scanner: slice element must be struct or *struct, got %s", elemType.Kind())
	}

	fields := structFieldsOf(elemType)
	out := reflect.MakeSlice(slice.Type(), 0, len(rows))
	for i, row := range rows {
		elem := reflect.New(elemType)
		if err := row.decodeInto(elem.Elem(), fields); err != nil {
			return fmt.Errorf("scanner: row %d: %w", i, err)
		}
		if isPtr {
			out = reflect.Append(out, elem)
		} else {
			out = reflect.Append(out, elem.Elem())
		}
	}
	slice.Set(out)
	return nil
}

func (r Row) decodeInto(v reflect.Value, fields map[string][]int) error {
	for col, val := range r {
		index, ok := fields[strings.ToLower(col)]
		if !ok {
			continue
		}
		if err := assign(v.FieldByIndex(index), val); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}
	return nil
}

// assign stores src into the settable field dst.
func assign(dst reflect.Value, src interface{}) error {
	if scanner, ok := dst.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(src)
	}

	if src == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), src); err != nil {
			return err
		}
		dst.Set(elem)
		return nil
	}

	sv := reflect.ValueOf(src)
	switch {
	case sv.Type().AssignableTo(dst.Type()):
		dst.Set(sv)
	case dst.Kind() == reflect.String && sv.Kind() == reflect.Slice && sv.Type().Elem().Kind() == reflect.Uint8:
		dst.SetString(string(sv.Bytes()))
	case dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 && sv.Kind() == reflect.String:
		dst.SetBytes([]byte(sv.String()))
	case isNumeric(dst.Kind()) && isNumeric(sv.Kind()):
		dst.Set(sv.Convert(dst.Type()))
	case dst.Kind() == reflect.Bool && isNumeric(sv.Kind()):
		dst.SetBool(!sv.IsZero())
	default:
		return fmt.Errorf("cannot assign %T to %s", src, dst.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// fieldCache holds lowercase column -> field index maps per struct type.
var fieldCache sync.Map

func structFieldsOf(t reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}

	fields := util.StructFields(t)
	m := make(map[string][]int, len(fields))
	for _, f := range fields {
		m[strings.ToLower(f.Column)] = f.Index
	}

	actual, _ := fieldCache.LoadOrStore(t, m)
	return actual.(map[string][]int)
}
