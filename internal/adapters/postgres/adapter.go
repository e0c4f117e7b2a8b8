// Package postgres provides the PostgreSQL/PostGIS engine adapter.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/canonica-labs/geometa/internal/adapters"

	"github.com/lib/pq"
)

// Adapter implements adapters.EngineAdapter for PostgreSQL with PostGIS.
type Adapter struct {
	*adapters.SQLAdapter
}

// New connects to opts.DSN and makes sure the postgis extension exists.
func New(ctx context.Context, opts adapters.Options) (*Adapter, error) {
	hooks := adapters.NewQueryHooks(opts.Logger, opts.SlowQueryThreshold)
	db, err := adapters.Connect(ctx, adapters.Postgres, func() (*sql.DB, error) {
		return adapters.OpenWithHooks("postgres", &pq.Driver{}, opts.DSN, hooks)
	}, opts.Retry)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(50)
	db.SetConnMaxLifetime(time.Hour)

	dialect, _ := adapters.DialectFor(adapters.Postgres)
	a := &Adapter{SQLAdapter: adapters.NewSQLAdapter(adapters.Postgres, dialect, db, hooks)}
	if _, err := a.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Functions returns the names of every function in the given schemas.
// It backs catalog inspection for the capabilities command.
func (a *Adapter) Functions(ctx context.Context, schemas ...string) ([]string, error) {
	if len(schemas) == 0 {
		schemas = []string{"public"}
	}
	result, err := a.Query(ctx,
		`SELECT DISTINCT p.proname FROM pg_proc p JOIN pg_namespace n ON n.oid = p.pronamespace
		 WHERE n.nspname = ANY($1) ORDER BY p.proname`, pq.Array(schemas))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, result.RowCount)
	for _, row := range result.Rows {
		switch v := row[0].(type) {
		case string:
			names = append(names, v)
		case []byte:
			names = append(names, string(v))
		}
	}
	return names, nil
}
