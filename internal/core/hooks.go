package core

import (
	"context"
	"time"
)

// QueryEvent describes one statement executed through a DB or Tx.
type QueryEvent struct {
	// SQL is the statement as the builder rendered it, with "?" placeholders.
	SQL string
	// BoundSQL is the statement sent to the driver after placeholder rebinding.
	BoundSQL string
	// Params are the bound values, unmasked.
	Params []interface{}
	// Duration covers execution and row scanning.
	Duration time.Duration
	// Rows is the number of result rows returned.
	Rows int
	// Error is the driver or validation error, nil on success.
	Error error
	// Operation is SELECT, INSERT, UPDATE, DELETE or UNKNOWN.
	Operation string
	// InTx reports whether the statement ran inside a transaction.
	InTx bool
}

// QueryHook is called after every statement, including rejected ones.
// Hooks run synchronously on the calling goroutine.
//
// Example:
//
//	db, _ := mohair.Open("postgres", dsn,
//	    mohair.WithQueryHook(func(ctx context.Context, e mohair.QueryEvent) {
//	        metrics.Observe(e.Operation, e.Duration)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)
