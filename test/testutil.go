//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)

	"github.com/coregx/mohair"
)

// DatabaseSetup holds a connected DB and the container backing it, if any.
type DatabaseSetup struct {
	DB        *mohair.DB
	DSN       string
	Driver    string
	Container testcontainers.Container
}

// Close cleans up database resources.
func (ds *DatabaseSetup) Close() {
	if ds.DB != nil {
		ds.DB.Close() //nolint:errcheck
	}
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

// SetupPostgreSQLTestDB starts PostgreSQL via testcontainers.
// POSTGRES_TEST_DSN skips Docker and uses an existing server.
func SetupPostgreSQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return connect(t, "postgres", dsn, nil)
	}

	pgContainer, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connect(t, "postgres", dsn, pgContainer)
}

// SetupMySQLTestDB starts MySQL via testcontainers.
// MYSQL_TEST_DSN skips Docker and uses an existing server.
func SetupMySQLTestDB(t *testing.T) *DatabaseSetup {
	ctx := context.Background()

	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		return connect(t, "mysql", withParseTime(dsn), nil)
	}

	mysqlContainer, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	dsn, err := mysqlContainer.ConnectionString(ctx)
	require.NoError(t, err)
	return connect(t, "mysql", withParseTime(dsn), mysqlContainer)
}

// SetupSQLiteTestDB opens a file-backed SQLite database in a temp dir.
func SetupSQLiteTestDB(t *testing.T) *DatabaseSetup {
	return connect(t, "sqlite", filepath.Join(t.TempDir(), "test.db"), nil)
}

func connect(t *testing.T, driver, dsn string, container testcontainers.Container) *DatabaseSetup {
	db, err := mohair.Open(driver, dsn)
	require.NoError(t, err)
	return &DatabaseSetup{DB: db, DSN: dsn, Driver: driver, Container: container}
}

// withParseTime makes the MySQL driver return time.Time for DATETIME columns.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// databases lists every backend the suite runs against.
var databases = []struct {
	name  string
	setup func(*testing.T) *DatabaseSetup
}{
	{"SQLite", SetupSQLiteTestDB},
	{"PostgreSQL", SetupPostgreSQLTestDB},
	{"MySQL", SetupMySQLTestDB},
}

var ddl = map[string]map[string]string{
	"users": {
		"postgres": `CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(255) NOT NULL, email VARCHAR(255) NOT NULL, age INTEGER, status INTEGER DEFAULT 1)`,
		"mysql":    `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(255) NOT NULL, email VARCHAR(255) NOT NULL, age INT, status INT DEFAULT 1)`,
		"sqlite":   `CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(255) NOT NULL, email VARCHAR(255) NOT NULL, age INTEGER, status INTEGER DEFAULT 1)`,
	},
	"posts": {
		"postgres": `CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, title VARCHAR(255))`,
		"mysql":    `CREATE TABLE posts (id INT PRIMARY KEY, user_id INT NOT NULL, title VARCHAR(255))`,
		"sqlite":   `CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, title VARCHAR(255))`,
	},
}

// CreateTable drops and recreates table for the setup's dialect.
func CreateTable(t *testing.T, ds *DatabaseSetup, table string) {
	ctx := context.Background()
	_, _ = ds.DB.DB().ExecContext(ctx, "DROP TABLE IF EXISTS "+table)
	_, err := ds.DB.DB().ExecContext(ctx, ddl[table][ds.Driver])
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = ds.DB.DB().ExecContext(context.Background(), "DROP TABLE IF EXISTS "+table)
	})
}

// InsertTestUsers inserts count users with ids 1..count in one statement.
func InsertTestUsers(t *testing.T, db *mohair.DB, count int) {
	records := make([]mohair.Record, 0, count)
	for i := 1; i <= count; i++ {
		records = append(records, mohair.Record{}.
			Set("id", i).
			Set("name", fmt.Sprintf("User%d", i)).
			Set("email", fmt.Sprintf("user%d@example.com", i)).
			Set("age", 20+i%50).
			Set("status", i%2))
	}

	q, err := db.Table("users").Escape(db.Escape()).Insert(records...)
	require.NoError(t, err)
	_, err = q.Exec(context.Background())
	require.NoError(t, err)
}

// InsertTestPosts inserts count posts for userID, numbering ids from firstID.
func InsertTestPosts(t *testing.T, db *mohair.DB, userID, firstID, count int) {
	records := make([]mohair.Record, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, mohair.Record{
			{Column: "id", Value: firstID + i},
			{Column: "user_id", Value: userID},
			{Column: "title", Value: fmt.Sprintf("Post %d by User %d", i+1, userID)},
		})
	}

	q, err := db.Table("posts").Insert(records...)
	require.NoError(t, err)
	_, err = q.Exec(context.Background())
	require.NoError(t, err)
}
