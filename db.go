// Package mohair is an immutable SQL query builder.
//
// A Query is a plain value: every method returns a new Query and leaves the
// receiver untouched, so a partially built query can be shared and extended
// freely, including across goroutines. Queries render to SQL with "?"
// placeholders plus the ordered values bound to them, and can be executed
// through any Connection, such as the database/sql backed DB.
//
//	users := mohair.Table("users")
//	q := users.Where(mohair.Eq("id", 5))
//	sql, params, _ := q.Build() // "SELECT * FROM users WHERE id = ?", [5]
package mohair

import (
	"github.com/coregx/mohair/internal/core"
	"github.com/coregx/mohair/internal/criterion"
	"github.com/coregx/mohair/internal/dialects"
	"github.com/coregx/mohair/internal/explain"
	"github.com/coregx/mohair/internal/security"
)

type (
	// Query is an immutable SQL query description.
	Query = core.Query
	// Record is an ordered list of column/value pairs for Insert and Update.
	Record = core.Record
	// Field is one column/value pair of a Record.
	Field = core.Field
	// Row is one result row keyed by column name.
	Row = core.Row
	// Connection executes rendered SQL.
	Connection = core.Connection
	// ConnectionFunc adapts a function to Connection.
	ConnectionFunc = core.ConnectionFunc

	// Criterion is a renderable boolean SQL expression.
	Criterion = criterion.Criterion
	// Hash is a column/value map rendered as equality conditions joined with AND.
	Hash = criterion.Hash
	// LikeCriterion is a LIKE match with automatic escaping.
	LikeCriterion = criterion.LikeCriterion

	// ValidationError reports a malformed mutator argument.
	ValidationError = core.ValidationError
	// ConfigurationError reports a terminal operation on an incomplete query.
	ConfigurationError = core.ConfigurationError

	// DB is a Connection backed by *sql.DB with statement caching.
	DB = core.DB
	// Tx is a Connection bound to a transaction.
	Tx = core.Tx
	// TxOptions holds transaction isolation and read-only settings.
	TxOptions = core.TxOptions
	// Option configures a DB.
	Option = core.Option
	// QueryEvent describes one executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook is called after every statement.
	QueryHook = core.QueryHook
	// Plan summarizes a database query plan returned by DB.Explain.
	Plan = explain.Plan

	// Validator rejects statements and params matching injection patterns.
	Validator = security.Validator
	// Auditor writes audit events for executed statements.
	Auditor = security.Auditor
	// AuditLevel selects which statements are audited.
	AuditLevel = security.AuditLevel
	// Actor identifies who a statement runs on behalf of in audit records.
	Actor = security.Actor
)

// Errors.
var (
	ErrValidation         = core.ErrValidation
	ErrConfiguration      = core.ErrConfiguration
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
	ErrInvalidArgs        = criterion.ErrInvalidArgs
	ErrDangerousQuery     = security.ErrDangerousQuery
	ErrSuspiciousParam    = security.ErrSuspiciousParam
	ErrAnalyzeUnsupported = explain.ErrAnalyzeUnsupported
)

// Audit levels.
const (
	AuditNone   = security.AuditNone
	AuditWrites = security.AuditWrites
	AuditReads  = security.AuditReads
	AuditAll    = security.AuditAll
)

// Builder and record constructors.
var (
	New              = core.New
	RecordFromMap    = core.RecordFromMap
	RecordFromStruct = core.RecordFromStruct
	DecodeRows       = core.DecodeRows
)

// Criterion constructors.
var (
	Raw        = criterion.Raw
	Eq         = criterion.Eq
	NotEq      = criterion.NotEq
	Gt         = criterion.Gt
	Lt         = criterion.Lt
	Gte        = criterion.Gte
	Lte        = criterion.Lte
	In         = criterion.In
	NotIn      = criterion.NotIn
	Between    = criterion.Between
	NotBetween = criterion.NotBetween
	Like       = criterion.Like
	NotLike    = criterion.NotLike
	And        = criterion.All
	Or         = criterion.Any
	Not        = criterion.Not
	Parse      = criterion.Parse
)

// Connection constructors and options.
var (
	Open                  = core.Open
	WrapDB                = core.WrapDB
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithSensitiveFields   = core.WithSensitiveFields
	WithTracer            = core.WithTracer
	WithValidator         = core.WithValidator
	WithAuditor           = core.WithAuditor
	WithQueryHook         = core.WithQueryHook

	NewValidator  = security.NewValidator
	WithStrict    = security.WithStrict
	NewAuditor    = security.NewAuditor
	WithUser      = security.WithUser
	WithClientIP  = security.WithClientIP
	WithRequestID = security.WithRequestID
	ActorFrom     = security.ActorFrom
)

// Table returns a new SELECT * query on name.
func Table(name string) Query {
	return core.New().Table(name)
}

// EscapeFor returns the identifier quoting function of a registered driver,
// for use with Query.Escape without opening a connection.
//
//	quote, _ := mohair.EscapeFor("mysql")
//	q := mohair.Table("order").Escape(quote) // SELECT * FROM `order`
func EscapeFor(driverName string) (func(string) string, error) {
	d, err := dialects.Lookup(driverName)
	if err != nil {
		return nil, err
	}
	return d.QuoteIdentifier, nil
}
