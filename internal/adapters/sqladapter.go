package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SQLAdapter implements EngineAdapter over a *sql.DB opened through
// OpenWithHooks. Engine packages embed it and only decide how to open the
// connection.
type SQLAdapter struct {
	mu      sync.RWMutex
	name    string
	dialect Dialect
	db      *sql.DB
	hooks   *QueryHooks
	closed  bool
}

// NewSQLAdapter wraps db. hooks must be the hooks db was opened with.
func NewSQLAdapter(name string, dialect Dialect, db *sql.DB, hooks *QueryHooks) *SQLAdapter {
	return &SQLAdapter{
		name:    name,
		dialect: dialect,
		db:      db,
		hooks:   hooks,
	}
}

// Name returns the engine name.
func (a *SQLAdapter) Name() string {
	return a.name
}

// Dialect returns the engine's SQL dialect.
func (a *SQLAdapter) Dialect() Dialect {
	return a.dialect
}

func (a *SQLAdapter) conn(ctx context.Context) (*sql.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s adapter: context error: %w", a.name, err)
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed || a.db == nil {
		return nil, fmt.Errorf("%s adapter: %w", a.name, ErrAdapterClosed)
	}
	return a.db, nil
}

// Exec runs a statement and returns the number of affected rows.
func (a *SQLAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	db, err := a.conn(ctx)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s adapter: exec failed: %w", a.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report affected rows for DDL.
		return 0, nil
	}
	return n, nil
}

// Query runs a query and returns all rows.
func (a *SQLAdapter) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	db, err := a.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s adapter: query execution failed: %w", a.name, err)
	}
	defer rows.Close()

	result, err := ScanAll(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("%s adapter: %w", a.name, err)
	}
	return result, nil
}

// QueryValue returns the first column of the first row.
func (a *SQLAdapter) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	result, err := a.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if result.RowCount == 0 || len(result.Columns) == 0 {
		return nil, sql.ErrNoRows
	}
	return result.Value(0, 0), nil
}

// SuppressErrors toggles error logging and returns the previous setting.
func (a *SQLAdapter) SuppressErrors(suppress bool) bool {
	if a.hooks == nil {
		return false
	}
	return a.hooks.Suppress(suppress)
}

// Ping checks if the engine is reachable.
func (a *SQLAdapter) Ping(ctx context.Context) error {
	db, err := a.conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// CheckHealth runs SELECT 1.
func (a *SQLAdapter) CheckHealth(ctx context.Context) error {
	v, err := a.QueryValue(ctx, "SELECT 1")
	if err != nil {
		return fmt.Errorf("%s adapter: health check failed: %w", a.name, err)
	}
	if v == nil {
		return fmt.Errorf("%s adapter: health check returned no value", a.name)
	}
	return nil
}

// Close releases the pool. Close is idempotent.
func (a *SQLAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Connect opens dsn through a hooked driver and pings it with retries.
func Connect(ctx context.Context, name string, open func() (*sql.DB, error), retry RetryConfig) (*sql.DB, error) {
	db, err := open()
	if err != nil {
		return nil, err
	}
	result := ExecuteWithRetry(ctx, retry, func() error {
		return db.PingContext(ctx)
	})
	if !result.Success {
		_ = db.Close()
		return nil, fmt.Errorf("%s adapter: %w", name, &RetryableError{Result: result})
	}
	return db, nil
}

// IsNoRows reports whether err means a query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Options configures how an engine adapter connects.
type Options struct {
	// DSN is passed to the driver unchanged.
	DSN string

	// SlowQueryThreshold marks statements logged as slow.
	SlowQueryThreshold time.Duration

	// Logger receives slow-query and error logs.
	Logger zerolog.Logger

	// Retry controls the initial connection attempt.
	Retry RetryConfig
}
