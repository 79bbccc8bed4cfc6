package core

import "context"

// Row is one result row keyed by column name.
type Row map[string]interface{}

// Connection executes SQL with positional "?" parameters.
// Implementations own I/O, transactions and driver-level escaping;
// *DB and *Tx are the database/sql backed implementations.
type Connection interface {
	Query(ctx context.Context, sql string, params []interface{}) ([]Row, error)
}

// ConnectionFunc adapts an ordinary function to the Connection interface.
type ConnectionFunc func(ctx context.Context, sql string, params []interface{}) ([]Row, error)

// Query calls f(ctx, sql, params).
func (f ConnectionFunc) Query(ctx context.Context, sql string, params []interface{}) ([]Row, error) {
	return f(ctx, sql, params)
}

// run renders the query and hands it to the connection.
// Configuration errors are returned before the connection is touched;
// connection errors are returned unchanged.
func (q Query) run(ctx context.Context, op string) ([]Row, error) {
	if q.conn == nil {
		return nil, configurationErr(op, "connect() must precede execution")
	}
	sql, params, err := q.Build()
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return q.conn.Query(ctx, sql, params)
}

// Exec runs the query and returns all rows.
func (q Query) Exec(ctx context.Context) ([]Row, error) {
	return q.run(ctx, "exec")
}

// Find is an alias for Exec.
func (q Query) Find(ctx context.Context) ([]Row, error) {
	return q.run(ctx, "find")
}

// FindOne runs the query and returns its first row, or nil if there is none.
// A connection error is returned alongside whatever rows came back with it.
func (q Query) FindOne(ctx context.Context) (Row, error) {
	rows, err := q.run(ctx, "findOne")
	if len(rows) == 0 {
		return nil, err
	}
	return rows[0], err
}

// First is an alias for FindOne.
func (q Query) First(ctx context.Context) (Row, error) {
	return q.FindOne(ctx)
}

// Exists reports whether the query returns at least one row.
func (q Query) Exists(ctx context.Context) (bool, error) {
	rows, err := q.run(ctx, "exists")
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
