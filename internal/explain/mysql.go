package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

type mysql struct{}

func (mysql) Explain(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error) {
	raw, err := queryText(ctx, q, "EXPLAIN FORMAT=JSON "+query, params)
	if err != nil {
		return nil, err
	}
	return parseMySQL(raw)
}

// Analyze needs MySQL 8.0.18+, whose EXPLAIN ANALYZE prints a text tree that
// carries no stable structure, so only the raw output is returned.
func (mysql) Analyze(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error) {
	raw, err := queryText(ctx, q, "EXPLAIN ANALYZE "+query, params)
	if err != nil {
		return nil, err
	}
	return &Plan{Database: "mysql", Raw: raw}, nil
}

type myRoot struct {
	QueryBlock myBlock `json:"query_block"`
}

type myBlock struct {
	CostInfo   myCost     `json:"cost_info"`
	Table      *myTable   `json:"table"`
	NestedLoop []myEntry  `json:"nested_loop"`
	Grouping   *myWrapper `json:"grouping_operation"`
	Ordering   *myWrapper `json:"ordering_operation"`
}

type myCost struct {
	QueryCost string `json:"query_cost"`
}

// myWrapper is a grouping or ordering node around the actual access.
type myWrapper struct {
	Table      *myTable   `json:"table"`
	NestedLoop []myEntry  `json:"nested_loop"`
	Grouping   *myWrapper `json:"grouping_operation"`
}

type myEntry struct {
	Table *myTable `json:"table"`
}

type myTable struct {
	TableName    string `json:"table_name"`
	AccessType   string `json:"access_type"` // ALL, index, range, ref, eq_ref, const
	Key          string `json:"key"`
	RowsExamined int64  `json:"rows_examined_per_scan"`
	RowsProduced int64  `json:"rows_produced_per_join"`
}

// parseMySQL reads EXPLAIN FORMAT=JSON output.
func parseMySQL(raw string) (*Plan, error) {
	var root myRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("explain: mysql output: %w", err)
	}

	plan := &Plan{Database: "mysql", Raw: raw}
	if root.QueryBlock.CostInfo.QueryCost != "" {
		cost, err := strconv.ParseFloat(root.QueryBlock.CostInfo.QueryCost, 64)
		if err != nil {
			return nil, fmt.Errorf("explain: mysql query_cost: %w", err)
		}
		plan.Cost = cost
	}

	b := root.QueryBlock
	walkMySQL(&myWrapper{Table: b.Table, NestedLoop: b.NestedLoop}, plan)
	walkMySQL(b.Grouping, plan)
	walkMySQL(b.Ordering, plan)
	return plan, nil
}

func walkMySQL(w *myWrapper, plan *Plan) {
	if w == nil {
		return
	}
	addMySQLTable(w.Table, plan)
	for _, e := range w.NestedLoop {
		addMySQLTable(e.Table, plan)
	}
	walkMySQL(w.Grouping, plan)
}

func addMySQLTable(t *myTable, plan *Plan) {
	if t == nil {
		return
	}
	plan.addTable(t.TableName)
	if t.Key != "" {
		plan.useIndex(t.Key)
	}
	if t.AccessType == "ALL" {
		plan.FullScan = true
	}
	plan.EstimatedRows += t.RowsExamined
	plan.RowsExamined += t.RowsExamined
	plan.RowsProduced += t.RowsProduced
}
