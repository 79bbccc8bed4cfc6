package cache

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync/atomic"
)

// mockDriver counts prepared and closed statements.
type mockDriver struct {
	prepared atomic.Int64
	closed   atomic.Int64
}

type mockConn struct {
	d *mockDriver
}

type mockStmt struct {
	d *mockDriver
}

func (d *mockDriver) Open(_ string) (driver.Conn, error) {
	return &mockConn{d: d}, nil
}

func (c *mockConn) Prepare(_ string) (driver.Stmt, error) {
	c.d.prepared.Add(1)
	return &mockStmt{d: c.d}, nil
}

func (c *mockConn) Close() error { return nil }

func (c *mockConn) Begin() (driver.Tx, error) { return nil, driver.ErrSkip }

func (s *mockStmt) Close() error {
	s.d.closed.Add(1)
	return nil
}

func (s *mockStmt) NumInput() int { return -1 }

func (s *mockStmt) Exec(_ []driver.Value) (driver.Result, error) { return nil, driver.ErrSkip }

func (s *mockStmt) Query(_ []driver.Value) (driver.Rows, error) { return nil, driver.ErrSkip }

var driverCounter atomic.Uint64

// openMockDB registers a fresh mock driver and opens a database on it.
func openMockDB() (*sql.DB, *mockDriver, error) {
	d := &mockDriver{}
	name := fmt.Sprintf("mohair-cache-mock-%d", driverCounter.Add(1))
	sql.Register(name, d)
	db, err := sql.Open(name, "")
	return db, d, err
}
