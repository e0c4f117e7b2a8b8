// Package duckdb provides the DuckDB engine adapter. Geometry support comes
// from the spatial extension, which is installed and loaded on connect.
package duckdb

import (
	"context"
	"database/sql"

	"github.com/canonica-labs/geometa/internal/adapters"

	"github.com/marcboeker/go-duckdb"
)

// Adapter implements adapters.EngineAdapter for DuckDB.
type Adapter struct {
	*adapters.SQLAdapter
}

// Config adds DuckDB specifics to adapters.Options.
type Config struct {
	adapters.Options

	// SkipSpatial leaves the spatial extension unloaded. Shadow tables then
	// cannot be created, but settings and probing still work.
	SkipSpatial bool
}

// New opens the DuckDB database at cfg.DSN. Use "" or ":memory:" for an
// in-memory database.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	dsn := cfg.DSN
	if dsn == ":memory:" {
		dsn = ""
	}

	hooks := adapters.NewQueryHooks(cfg.Logger, cfg.SlowQueryThreshold)
	db, err := adapters.Connect(ctx, adapters.DuckDB, func() (*sql.DB, error) {
		return adapters.OpenWithHooks("duckdb", duckdb.Driver{}, dsn, hooks)
	}, cfg.Retry)
	if err != nil {
		return nil, err
	}
	// Each sql.Open of an in-memory DSN is its own database instance, and
	// extensions are loaded per instance.
	db.SetMaxOpenConns(1)

	dialect, _ := adapters.DialectFor(adapters.DuckDB)
	a := &Adapter{SQLAdapter: adapters.NewSQLAdapter(adapters.DuckDB, dialect, db, hooks)}

	if !cfg.SkipSpatial {
		for _, stmt := range []string{"INSTALL spatial", "LOAD spatial"} {
			if _, err := a.Exec(ctx, stmt); err != nil {
				_ = a.Close()
				return nil, err
			}
		}
	}
	return a, nil
}
