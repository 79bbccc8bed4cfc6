package explain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type postgres struct{}

func (postgres) Explain(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error) {
	raw, err := queryText(ctx, q, "EXPLAIN (FORMAT JSON) "+query, params)
	if err != nil {
		return nil, err
	}
	return parsePostgres(raw, false)
}

func (postgres) Analyze(ctx context.Context, q Querier, query string, params []interface{}) (*Plan, error) {
	raw, err := queryText(ctx, q, "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) "+query, params)
	if err != nil {
		return nil, err
	}
	return parsePostgres(raw, true)
}

type pgRoot struct {
	Plan          pgNode  `json:"Plan"`
	ExecutionTime float64 `json:"Execution Time"` // ms, analyze only
}

type pgNode struct {
	NodeType         string   `json:"Node Type"`
	RelationName     string   `json:"Relation Name"`
	IndexName        string   `json:"Index Name"`
	TotalCost        float64  `json:"Total Cost"`
	PlanRows         int64    `json:"Plan Rows"`
	ActualRows       int64    `json:"Actual Rows"`
	ActualLoops      int64    `json:"Actual Loops"`
	SharedHitBlocks  int64    `json:"Shared Hit Blocks"`
	SharedReadBlocks int64    `json:"Shared Read Blocks"`
	Plans            []pgNode `json:"Plans"`
}

// parsePostgres reads EXPLAIN (FORMAT JSON) output, a one-element array.
func parsePostgres(raw string, analyzed bool) (*Plan, error) {
	var roots []pgRoot
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("explain: postgres output: %w", err)
	}
	if len(roots) == 0 {
		return nil, errors.New("explain: postgres output is empty")
	}

	root := roots[0]
	plan := &Plan{
		Database:      "postgres",
		Cost:          root.Plan.TotalCost,
		EstimatedRows: root.Plan.PlanRows,
		Raw:           raw,
	}
	walkPostgres(&root.Plan, plan, analyzed)
	if analyzed {
		plan.ActualTime = time.Duration(root.ExecutionTime * float64(time.Millisecond))
	}
	return plan, nil
}

func walkPostgres(n *pgNode, plan *Plan, analyzed bool) {
	plan.addTable(n.RelationName)

	switch {
	case strings.Contains(n.NodeType, "Index"):
		// Index Scan, Index Only Scan, Bitmap Index Scan
		plan.useIndex(n.IndexName)
	case n.NodeType == "Seq Scan":
		plan.FullScan = true
	}

	if analyzed {
		loops := n.ActualLoops
		if loops == 0 {
			loops = 1
		}
		if n.RelationName != "" {
			plan.ActualRows += n.ActualRows * loops
		}
		plan.BuffersHit += n.SharedHitBlocks
		plan.BuffersMiss += n.SharedReadBlocks
	}

	for i := range n.Plans {
		walkPostgres(&n.Plans[i], plan, analyzed)
	}
}
