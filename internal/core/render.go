// Copyright (c) 2025 COREGX. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package core

import (
	"strings"
)

// SQL renders the statement for the configured verb.
// Every bound value appears as "?"; Params returns them in the same order.
// Returns a *ConfigurationError if no table has been set.
func (q Query) SQL() (string, error) {
	if q.table == "" {
		return "", configurationErr("sql", "table() must precede sql()")
	}

	table := q.quote(q.table)
	var sb strings.Builder

	switch q.action.verb {
	case verbInsert:
		cols := q.action.records[0].Columns()
		for i, c := range cols {
			cols[i] = q.quote(c)
		}
		group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

		sb.WriteString("INSERT INTO ")
		sb.WriteString(table)
		sb.WriteString("(")
		sb.WriteString(strings.Join(cols, ", "))
		sb.WriteString(") VALUES ")
		for i := range q.action.records {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(group)
		}

	case verbUpdate:
		sets := make([]string, len(q.action.fields))
		for i, f := range q.action.fields {
			sets[i] = q.quote(f.Column) + " = ?"
		}
		sb.WriteString("UPDATE ")
		sb.WriteString(table)
		sb.WriteString(" SET ")
		sb.WriteString(strings.Join(sets, ", "))
		q.writeWhere(&sb)

	case verbDelete:
		sb.WriteString("DELETE FROM ")
		sb.WriteString(table)
		q.writeWhere(&sb)

	default:
		projection := q.action.projection
		if projection == "" {
			projection = "*"
		}
		sb.WriteString("SELECT ")
		sb.WriteString(projection)
		sb.WriteString(" FROM ")
		sb.WriteString(table)

		for _, j := range q.joins {
			sb.WriteString(" ")
			sb.WriteString(j.sql)
			if j.on != nil {
				sb.WriteString(" AND (")
				sb.WriteString(j.on.SQL())
				sb.WriteString(")")
			}
		}
		q.writeWhere(&sb)
		if q.group != "" {
			sb.WriteString(" GROUP BY ")
			sb.WriteString(q.group)
		}
		if q.order != "" {
			sb.WriteString(" ORDER BY ")
			sb.WriteString(q.order)
		}
		if q.hasLimit {
			sb.WriteString(" LIMIT ?")
		}
		if q.hasOffset {
			sb.WriteString(" OFFSET ?")
		}
	}

	return sb.String(), nil
}

func (q Query) writeWhere(sb *strings.Builder) {
	if q.where != nil {
		sb.WriteString(" WHERE ")
		sb.WriteString(q.where.SQL())
	}
}

// Params returns the bound values in the order SQL places its placeholders.
// Returns a *ConfigurationError if no table has been set.
func (q Query) Params() ([]interface{}, error) {
	if q.table == "" {
		return nil, configurationErr("params", "table() must precede params()")
	}

	params := []interface{}{}

	switch q.action.verb {
	case verbInsert:
		for _, r := range q.action.records {
			params = append(params, r.Values()...)
		}

	case verbUpdate:
		params = append(params, q.action.fields.Values()...)
		params = q.appendWhere(params)

	case verbDelete:
		params = q.appendWhere(params)

	default:
		for _, j := range q.joins {
			if j.on != nil {
				params = append(params, j.on.Params()...)
			}
		}
		params = q.appendWhere(params)
		if q.hasLimit {
			params = append(params, q.limit)
		}
		if q.hasOffset {
			params = append(params, q.offset)
		}
	}

	return params, nil
}

func (q Query) appendWhere(params []interface{}) []interface{} {
	if q.where != nil {
		params = append(params, q.where.Params()...)
	}
	return params
}

// Build returns the SQL and its parameters together.
func (q Query) Build() (string, []interface{}, error) {
	sql, err := q.SQL()
	if err != nil {
		return "", nil, err
	}
	params, err := q.Params()
	if err != nil {
		return "", nil, err
	}
	return sql, params, nil
}
