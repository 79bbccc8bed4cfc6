// Package core implements the immutable query builder and its database/sql
// backed connection.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/coregx/mohair/internal/cache"
	"github.com/coregx/mohair/internal/dialects"
	"github.com/coregx/mohair/internal/explain"
	"github.com/coregx/mohair/internal/logger"
	"github.com/coregx/mohair/internal/security"
	"github.com/coregx/mohair/internal/tracer"
)

// DB is a Connection backed by *sql.DB.
// Statements are prepared once and reused through an LRU cache.
// A DB is safe for concurrent use.
type DB struct {
	sqlDB      *sql.DB
	driverName string
	owned      bool
	dialect    dialects.Dialect
	stmtCache  *cache.StmtCache

	logger    logger.Logger
	sanitizer *logger.Sanitizer
	tracer    trace.Tracer
	validator *security.Validator
	auditor   *security.Auditor
	queryHook QueryHook
}

// Tx is a Connection bound to a database transaction.
// Statements run in a transaction are not cached.
type Tx struct {
	tx *sql.Tx
	db *DB
}

// TxOptions holds the isolation level and read-only flag of a transaction.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Option configures a DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger logs every statement through l. Params bound to sensitive
// columns are masked. A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = logger.New(l)
	}
}

// WithSensitiveFields replaces the default list of columns whose values are
// masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithTracer records one OpenTelemetry span per statement.
//
//	db, _ := mohair.Open("postgres", dsn, mohair.WithTracer(otel.Tracer("app")))
func WithTracer(t trace.Tracer) Option {
	return func(db *DB) {
		if t == nil {
			t = tracer.Noop()
		}
		db.tracer = t
	}
}

// WithValidator rejects statements and params the validator flags before
// they reach the driver.
func WithValidator(v *security.Validator) Option {
	return func(db *DB) {
		db.validator = v
	}
}

// WithAuditor writes an audit event for every statement and rejection.
func WithAuditor(a *security.Auditor) Option {
	return func(db *DB) {
		db.auditor = a
	}
}

// WithQueryHook sets a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

func newDB(sqlDB *sql.DB, driverName string, owned bool, opts []Option) (*DB, error) {
	dialect, err := dialects.Lookup(driverName)
	if err != nil {
		return nil, err
	}

	db := &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		owned:      owned,
		dialect:    dialect,
		stmtCache:  cache.NewStmtCache(),
		logger:     logger.Nop{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     tracer.Noop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Open opens a database with the given driver and DSN.
// The driver must be imported by the caller and have a registered dialect.
// Open does not verify the connection; use Ping for that.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	if _, err := dialects.Lookup(driverName); err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db, err := newDB(sqlDB, driverName, true, opts)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// WrapDB wraps an existing *sql.DB. driverName selects the dialect.
// The caller keeps ownership: Close releases cached statements but leaves
// sqlDB open.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	return newDB(sqlDB, driverName, false, opts)
}

// Close releases cached statements and, for databases created by Open,
// the underlying *sql.DB.
func (db *DB) Close() error {
	db.stmtCache.Clear()
	if !db.owned {
		return nil
	}
	return db.sqlDB.Close()
}

// Ping verifies the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// DB returns the underlying *sql.DB.
func (db *DB) DB() *sql.DB {
	return db.sqlDB
}

// DriverName returns the driver name the DB was opened with.
func (db *DB) DriverName() string {
	return db.driverName
}

// Escape returns the dialect's identifier quoting, for use with Query.Escape.
func (db *DB) Escape() func(string) string {
	return db.dialect.QuoteIdentifier
}

// Table returns a query on name connected to db.
func (db *DB) Table(name string) Query {
	return New().Table(name).Connect(db)
}

// CacheStats returns prepared statement cache metrics.
func (db *DB) CacheStats() cache.Stats {
	return db.stmtCache.Stats()
}

// Query implements Connection. Placeholders are rebound for the dialect and
// the statement is prepared through the cache. Driver errors are returned
// unchanged.
func (db *DB) Query(ctx context.Context, query string, params []interface{}) ([]Row, error) {
	return db.execute(ctx, query, params, false, func(ctx context.Context, bound string) (*sql.Rows, func(), error) {
		stmt, release, err := db.stmtCache.GetOrPrepare(ctx, bound, db.sqlDB.PrepareContext)
		if err != nil {
			return nil, nil, err
		}
		rows, err := stmt.QueryContext(ctx, params...)
		return rows, release, err
	})
}

// Explain renders q and returns the database's plan for it without running it.
// Configured validation applies as for execution.
//
// Example:
//
//	plan, err := db.Explain(ctx, users.Where(mohair.Eq("email", email)))
//	if err == nil && plan.FullScan {
//		log.Println("users.email is not indexed")
//	}
func (db *DB) Explain(ctx context.Context, q Query) (*explain.Plan, error) {
	return db.explain(ctx, q, false)
}

// ExplainAnalyze is like Explain but runs the statement to collect actual
// row counts and timings. Writes take effect. SQLite returns
// explain.ErrAnalyzeUnsupported.
func (db *DB) ExplainAnalyze(ctx context.Context, q Query) (*explain.Plan, error) {
	return db.explain(ctx, q, true)
}

func (db *DB) explain(ctx context.Context, q Query, analyze bool) (*explain.Plan, error) {
	explainer, err := explain.For(db.dialect)
	if err != nil {
		return nil, err
	}
	query, params, err := q.Build()
	if err != nil {
		return nil, err
	}
	if err := db.validate(ctx, query, params); err != nil {
		return nil, err
	}

	bound := dialects.Rebind(db.dialect, query)
	var plan *explain.Plan
	if analyze {
		plan, err = explainer.Analyze(ctx, db.sqlDB, bound, params)
	} else {
		plan, err = explainer.Explain(ctx, db.sqlDB, bound, params)
	}
	if err != nil {
		return nil, err
	}

	db.logger.Debug("query explained",
		"sql", query,
		"database", db.driverName,
		"cost", plan.Cost,
		"uses_index", plan.UsesIndex,
		"full_scan", plan.FullScan,
	)
	return plan, nil
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction. A nil opts uses the driver defaults.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{
			Isolation: opts.Isolation,
			ReadOnly:  opts.ReadOnly,
		}
	}

	tx, err := db.sqlDB.BeginTx(ctx, sqlOpts)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, db: db}, nil
}

// Transactional runs fn inside a transaction. The transaction is committed
// when fn returns nil and rolled back when fn returns an error or panics.
// A panic is re-raised after the rollback.
//
// Example:
//
//	err := db.Transactional(ctx, func(tx *mohair.Tx) error {
//		_, err := tx.Table("accounts").Update(rec).Where(mohair.Eq("id", 1)).Exec(ctx)
//		return err
//	})
func (db *DB) Transactional(ctx context.Context, fn func(*Tx) error) error {
	return db.TransactionalTx(ctx, nil, fn)
}

// TransactionalTx is Transactional with explicit transaction options.
func (db *DB) TransactionalTx(ctx context.Context, opts *TxOptions, fn func(*Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Query implements Connection inside the transaction.
func (tx *Tx) Query(ctx context.Context, query string, params []interface{}) ([]Row, error) {
	return tx.db.execute(ctx, query, params, true, func(ctx context.Context, bound string) (*sql.Rows, func(), error) {
		rows, err := tx.tx.QueryContext(ctx, bound, params...)
		return rows, nil, err
	})
}

// Table returns a query on name connected to the transaction.
func (tx *Tx) Table(name string) Query {
	return New().Table(name).Connect(tx)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.tx.Commit()
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

// execute runs the validation, rebinding, tracing, logging, audit and hook
// steps shared by DB and Tx around run. A non-nil release returned by run
// is called once the rows are scanned and closed.
func (db *DB) execute(ctx context.Context, query string, params []interface{}, inTx bool,
	run func(ctx context.Context, bound string) (*sql.Rows, func(), error)) ([]Row, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	event := QueryEvent{
		SQL:       query,
		Params:    params,
		Operation: tracer.DetectOperation(query),
		InTx:      inTx,
	}

	if err := db.validate(ctx, query, params); err != nil {
		event.Error = err
		db.invokeHook(ctx, event)
		return nil, err
	}

	event.BoundSQL = dialects.Rebind(db.dialect, query)

	st := tracer.Statement{
		SQL:        event.BoundSQL,
		Database:   db.driverName,
		Operation:  event.Operation,
		Table:      tracer.DetectTable(query),
		ParamCount: len(params),
	}
	ctx, span := tracer.Start(ctx, db.tracer, st)

	start := time.Now()
	rows, release, err := run(ctx, event.BoundSQL)
	var result []Row
	if err == nil {
		result, err = scanRows(rows)
		if closeErr := rows.Close(); err == nil {
			err = closeErr
		}
	}
	if release != nil {
		release()
	}
	event.Duration = time.Since(start)
	event.Rows = len(result)
	event.Error = err

	st.Rows, st.Duration, st.Err = event.Rows, event.Duration, err
	tracer.Finish(span, st)
	db.logQuery(event)
	if db.auditor != nil {
		db.auditor.LogOperation(ctx, query, params, event.Rows, err, event.Duration)
	}
	db.invokeHook(ctx, event)

	return result, err
}

func (db *DB) validate(ctx context.Context, query string, params []interface{}) error {
	if db.validator == nil {
		return nil
	}

	eventType := "query_blocked"
	err := db.validator.ValidateQuery(query)
	if err == nil {
		eventType = "params_blocked"
		err = db.validator.ValidateParams(params)
	}
	if err == nil {
		return nil
	}

	db.logger.Warn("query rejected", "sql", query, "error", err)
	if db.auditor != nil {
		db.auditor.LogSecurityEvent(ctx, eventType, query, err)
	}
	return err
}

func (db *DB) logQuery(e QueryEvent) {
	logger.LogQuery(db.logger, db.sanitizer, logger.QueryEntry{
		SQL:      e.SQL,
		Params:   e.Params,
		Duration: e.Duration,
		Rows:     e.Rows,
		Database: db.driverName,
		InTx:     e.InTx,
		Err:      e.Error,
	})
}

func (db *DB) invokeHook(ctx context.Context, event QueryEvent) {
	if db.queryHook != nil {
		db.queryHook(ctx, event)
	}
}
