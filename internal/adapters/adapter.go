// Package adapters defines the query port geometa uses to talk to a data
// engine. Each engine package wraps a database/sql driver and describes its SQL
// dialect; everything above this layer is engine-neutral.
//
// Adapters are thin. They never retry statements on their own and never hide
// an error unless the caller has explicitly asked for suppression.
package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrAdapterClosed is returned by every operation on a closed adapter.
var ErrAdapterClosed = errors.New("adapter is closed")

// QueryResult represents the result of a query execution.
type QueryResult struct {
	// Columns are the column names in the result.
	Columns []string

	// Rows are the result rows, each row is a slice of values.
	Rows [][]any

	// RowCount is the number of rows returned.
	RowCount int
}

// Value returns the value at row, column or nil when out of range.
func (r *QueryResult) Value(row, col int) any {
	if r == nil || row < 0 || row >= len(r.Rows) || col < 0 || col >= len(r.Rows[row]) {
		return nil
	}
	return r.Rows[row][col]
}

// EngineAdapter is the interface all engine adapters must implement.
type EngineAdapter interface {
	// Name returns the unique name of this engine.
	Name() string

	// Dialect describes how SQL must be written for this engine.
	Dialect() Dialect

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a query and returns all rows.
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// QueryValue returns the first column of the first row. A query that
	// yields no rows returns sql.ErrNoRows.
	QueryValue(ctx context.Context, query string, args ...any) (any, error)

	// SuppressErrors toggles engine error logging and returns the previous
	// setting. Errors are still returned to the caller.
	SuppressErrors(suppress bool) bool

	// Ping checks if the engine is reachable.
	Ping(ctx context.Context) error

	// CheckHealth verifies the adapter can execute a trivial query.
	CheckHealth(ctx context.Context) error

	// Close releases any resources held by the adapter.
	Close() error
}

// Registry holds the open engine adapters by name. The service registers
// the adapter it opened so that health checks and shutdown go through one
// place.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]EngineAdapter
}

// NewRegistry creates a new adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]EngineAdapter),
	}
}

// Register adds an adapter to the registry, replacing any adapter with the
// same name.
func (r *Registry) Register(adapter EngineAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Name()] = adapter
}

// Available returns the sorted names of all registered adapters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CloseAll closes every adapter and returns the last error seen.
func (r *Registry) CloseAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var lastErr error
	for _, adapter := range r.adapters {
		if err := adapter.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// CheckAllHealth runs CheckHealth on every adapter. A nil value means
// healthy.
func (r *Registry) CheckAllHealth(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	results := make(map[string]error, len(r.adapters))
	for name, adapter := range r.adapters {
		results[name] = adapter.CheckHealth(ctx)
	}
	return results
}

// ScanAll reads every row of rows into a QueryResult.
func ScanAll(ctx context.Context, rows *sql.Rows) (*QueryResult, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	result := &QueryResult{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context error during row iteration: %w", err)
		}

		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}
