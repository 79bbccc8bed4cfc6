package explain

import (
	"context"
	"fmt"
	"strings"
)

type sqlite struct{}

// Explain runs EXPLAIN QUERY PLAN, which yields one text detail per plan step.
// SQLite reports neither cost nor row estimates.
func (sqlite) Explain(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error) {
	rows, err := q.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query, params...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	var details []string
	for rows.Next() {
		var id, parent, notused int64
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("explain: scan: %w", err)
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return parseSQLite(details), nil
}

func (sqlite) Analyze(context.Context, Querier, string, []interface{}) (*Plan, error) {
	return nil, ErrAnalyzeUnsupported
}

// parseSQLite interprets details such as
//
//	SCAN users
//	SEARCH users USING INDEX idx_email (email=?)
//	SEARCH users USING INTEGER PRIMARY KEY (rowid=?)
//	SCAN users USING COVERING INDEX idx_name
func parseSQLite(details []string) *Plan {
	plan := &Plan{Database: "sqlite", Raw: strings.Join(details, "\n")}

	for _, d := range details {
		fields := strings.Fields(d)
		if len(fields) < 2 {
			continue
		}
		verb := strings.ToUpper(fields[0])
		if verb != "SCAN" && verb != "SEARCH" {
			continue
		}
		table := fields[1]
		if table == "TABLE" && len(fields) > 2 {
			// pre-3.36 output: "SCAN TABLE users"
			table = fields[2]
		}
		plan.addTable(table)

		upper := strings.ToUpper(d)
		switch {
		case strings.Contains(upper, "USING INTEGER PRIMARY KEY"):
			plan.useIndex("PRIMARY KEY")
		case strings.Contains(upper, "USING AUTOMATIC"):
			plan.useIndex("AUTOMATIC INDEX")
		case strings.Contains(upper, "INDEX "):
			plan.useIndex(wordAfter(d, "INDEX "))
		case verb == "SCAN":
			plan.FullScan = true
		}
	}
	return plan
}

// wordAfter returns the word following the first case-insensitive marker in s.
func wordAfter(s, marker string) string {
	i := strings.Index(strings.ToUpper(s), marker)
	if i < 0 {
		return ""
	}
	rest := strings.TrimSpace(s[i+len(marker):])
	if end := strings.IndexAny(rest, " ("); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
