// Package explain runs EXPLAIN for rendered statements and summarizes the
// resulting plan in a dialect-independent Plan.
package explain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/mohair/internal/dialects"
)

// ErrAnalyzeUnsupported is returned by Analyze on databases without EXPLAIN ANALYZE.
var ErrAnalyzeUnsupported = errors.New("explain: EXPLAIN ANALYZE is not supported")

// Plan is a query plan summary.
type Plan struct {
	Database string  // "postgres", "mysql" or "sqlite"
	Cost     float64 // estimated total cost in database units; 0 for sqlite

	EstimatedRows int64
	ActualRows    int64         // rows read by table scans, Analyze only
	ActualTime    time.Duration // Analyze only

	UsesIndex bool
	IndexName string // first index seen in the plan
	FullScan  bool
	Tables    []string // tables touched, in plan order

	BuffersHit   int64 // postgres Analyze only
	BuffersMiss  int64 // postgres Analyze only
	RowsExamined int64 // mysql
	RowsProduced int64 // mysql

	Raw string // unparsed EXPLAIN output
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Explainer builds plans for one database family.
// Statements must already use the dialect's placeholders.
type Explainer interface {
	// Explain reports the planner's estimates without running the statement.
	Explain(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error)
	// Analyze runs the statement and reports actual metrics.
	Analyze(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error)
}

// For returns the explainer matching d.
func For(d dialects.Dialect) (Explainer, error) {
	switch d.(type) {
	case *dialects.PostgresDialect:
		return postgres{}, nil
	case *dialects.MySQLDialect:
		return mysql{}, nil
	case *dialects.SQLiteDialect:
		return sqlite{}, nil
	}
	return nil, fmt.Errorf("%w: no explainer for %T", dialects.ErrUnsupportedDialect, d)
}

// queryText runs query and returns the single text value it produces.
func queryText(ctx context.Context, q Querier, query string, params []interface{}) (string, error) {
	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return "", fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("explain: %w", err)
		}
		return "", errors.New("explain: no output")
	}
	var raw string
	if err := rows.Scan(&raw); err != nil {
		return "", fmt.Errorf("explain: scan: %w", err)
	}
	return raw, rows.Err()
}

func (p *Plan) addTable(name string) {
	if name == "" {
		return
	}
	for _, t := range p.Tables {
		if t == name {
			return
		}
	}
	p.Tables = append(p.Tables, name)
}

func (p *Plan) useIndex(name string) {
	p.UsesIndex = true
	if p.IndexName == "" {
		p.IndexName = name
	}
}
