package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"io"
	"sync"
)

// fixedRowConnector is a database/sql connector whose every query returns
// one fixed row. It answers the PostgreSQL-only statements SQLite cannot run.
// With block set, queries wait for their context instead.
type fixedRowConnector struct {
	columns []string
	values  []driver.Value
	block   bool

	mu      sync.Mutex
	queries []string
}

func openFixedRow(c *fixedRowConnector) *sql.DB {
	return sql.OpenDB(c)
}

func (c *fixedRowConnector) Connect(context.Context) (driver.Conn, error) {
	return &fixedRowConn{connector: c}, nil
}

func (c *fixedRowConnector) Driver() driver.Driver { return fixedRowDriver{} }

func (c *fixedRowConnector) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

type fixedRowDriver struct{}

func (fixedRowDriver) Open(string) (driver.Conn, error) {
	return nil, stderrors.New("fixed row driver is opened through its connector")
}

type fixedRowConn struct {
	connector *fixedRowConnector
}

func (c *fixedRowConn) Prepare(string) (driver.Stmt, error) {
	return nil, stderrors.New("prepared statements are not supported")
}

func (c *fixedRowConn) Close() error { return nil }

func (c *fixedRowConn) Begin() (driver.Tx, error) {
	return nil, stderrors.New("transactions are not supported")
}

func (c *fixedRowConn) QueryContext(ctx context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.connector.mu.Lock()
	c.connector.queries = append(c.connector.queries, query)
	c.connector.mu.Unlock()

	if c.connector.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &fixedRows{columns: c.connector.columns, values: c.connector.values}, nil
}

type fixedRows struct {
	columns []string
	values  []driver.Value
	done    bool
}

func (r *fixedRows) Columns() []string { return r.columns }

func (r *fixedRows) Close() error { return nil }

func (r *fixedRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	copy(dest, r.values)
	return nil
}
