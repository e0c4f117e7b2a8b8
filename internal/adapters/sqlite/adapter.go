// Package sqlite provides the SQLite engine adapter. SQLite has no spatial
// types, so shadow geometry is stored as WKT text; the adapter backs local
// development and the integration tests.
package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/canonica-labs/geometa/internal/adapters"

	"modernc.org/sqlite"
)

// Adapter implements adapters.EngineAdapter for SQLite.
type Adapter struct {
	*adapters.SQLAdapter
}

// New opens the database at opts.DSN. An empty DSN opens a private in-memory
// database.
func New(ctx context.Context, opts adapters.Options) (*Adapter, error) {
	dsn := opts.DSN
	if dsn == "" {
		dsn = ":memory:"
	}

	hooks := adapters.NewQueryHooks(opts.Logger, opts.SlowQueryThreshold)
	db, err := adapters.Connect(ctx, adapters.SQLite, func() (*sql.DB, error) {
		return adapters.OpenWithHooks("sqlite", &sqlite.Driver{}, dsn, hooks)
	}, opts.Retry)
	if err != nil {
		return nil, err
	}

	// Every connection to :memory: is a separate database.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	dialect, _ := adapters.DialectFor(adapters.SQLite)
	return &Adapter{SQLAdapter: adapters.NewSQLAdapter(adapters.SQLite, dialect, db, hooks)}, nil
}
