package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/metastore"
	"github.com/canonica-labs/geometa/migrations"
)

// SpatialIndexName is the spatial index on every shadow table's meta_value.
const SpatialIndexName = "meta_val_spatial_idx"

// SchemaManager creates, drops and truncates the shadow tables.
type SchemaManager struct {
	adapter adapters.EngineAdapter
	prefix  string
	srid    int
	logger  zerolog.Logger
	files   fs.FS
}

// NewSchemaManager creates a schema manager for tables named with prefix.
func NewSchemaManager(adapter adapters.EngineAdapter, prefix string, srid int, logger zerolog.Logger) *SchemaManager {
	return &SchemaManager{
		adapter: adapter,
		prefix:  prefix,
		srid:    srid,
		logger:  logger,
		files:   migrations.FS,
	}
}

// CreateShadowTables creates every missing shadow table and its spatial
// index.
func (m *SchemaManager) CreateShadowTables(ctx context.Context) error {
	for _, t := range metastore.ObjectTypes() {
		name := "shadow_table:" + t.ShadowTable(m.prefix)
		stmts, err := m.render("shadow_table.sql", t.ShadowTable(m.prefix), t)
		if err != nil {
			return errors.NewMigrationFailed(name, err)
		}
		for _, stmt := range stmts {
			if _, err := m.adapter.Exec(ctx, stmt); err != nil {
				return errors.NewMigrationFailed(name, err)
			}
		}
		if err := m.ensureSpatialIndex(ctx, t); err != nil {
			return errors.NewMigrationFailed(name, err)
		}
		m.logger.Debug().Str("table", t.ShadowTable(m.prefix)).Msg("shadow table ready")
	}
	return nil
}

// CreateMetaTables creates the primary meta tables when they do not exist.
// Hosts normally own these tables; this supports local engines and tests.
func (m *SchemaManager) CreateMetaTables(ctx context.Context) error {
	for _, t := range metastore.ObjectTypes() {
		stmts, err := m.render("meta_table.sql", t.MetaTable(m.prefix), t)
		if err != nil {
			return errors.NewMigrationFailed("meta_table:"+t.MetaTable(m.prefix), err)
		}
		for _, stmt := range stmts {
			if _, err := m.adapter.Exec(ctx, stmt); err != nil {
				return errors.NewMigrationFailed("meta_table:"+t.MetaTable(m.prefix), err)
			}
		}
	}
	return nil
}

// DropShadowTables drops every shadow table. Failures are logged and the
// first one is returned after all tables were attempted.
func (m *SchemaManager) DropShadowTables(ctx context.Context) error {
	var firstErr error
	for _, t := range metastore.ObjectTypes() {
		table := t.ShadowTable(m.prefix)
		stmts := []string{"DROP TABLE IF EXISTS " + table}
		if m.adapter.Dialect().Name == adapters.DuckDB {
			stmts = append(stmts, fmt.Sprintf("DROP SEQUENCE IF EXISTS %s_seq", table))
		}
		for _, stmt := range stmts {
			if _, err := m.adapter.Exec(ctx, stmt); err != nil {
				m.logger.Warn().Err(err).Str("table", table).Msg("drop failed")
				if firstErr == nil {
					firstErr = errors.NewEngineQueryFailed(m.adapter.Name(), "drop "+table, err)
				}
			}
		}
	}
	return firstErr
}

// TruncateShadowTables removes every shadow row.
func (m *SchemaManager) TruncateShadowTables(ctx context.Context) error {
	var firstErr error
	for _, t := range metastore.ObjectTypes() {
		table := t.ShadowTable(m.prefix)
		stmt := "TRUNCATE TABLE " + table
		if m.adapter.Dialect().Name == adapters.SQLite {
			stmt = "DELETE FROM " + table
		}
		if _, err := m.adapter.Exec(ctx, stmt); err != nil {
			m.logger.Warn().Err(err).Str("table", table).Msg("truncate failed")
			if firstErr == nil {
				firstErr = errors.NewEngineQueryFailed(m.adapter.Name(), "truncate "+table, err)
			}
		}
	}
	return firstErr
}

func (m *SchemaManager) render(file, table string, t metastore.ObjectType) ([]string, error) {
	content, err := fs.ReadFile(m.files, path.Join(m.adapter.Dialect().Name, file))
	if err != nil {
		return nil, err
	}
	r := strings.NewReplacer(
		"{{table}}", table,
		"{{id}}", t.IDColumn(),
		"{{object}}", t.ObjectColumn(),
		"{{srid}}", strconv.Itoa(m.srid),
	)
	return SplitStatements(r.Replace(string(content))), nil
}

// ensureSpatialIndex checks for the index before creating it, since MySQL
// has no CREATE SPATIAL INDEX IF NOT EXISTS.
func (m *SchemaManager) ensureSpatialIndex(ctx context.Context, t metastore.ObjectType) error {
	table := t.ShadowTable(m.prefix)
	d := m.adapter.Dialect()
	switch d.Name {
	case adapters.MySQL:
		v, err := m.adapter.QueryValue(ctx,
			"SELECT COUNT(*) FROM INFORMATION_SCHEMA.STATISTICS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME = ?",
			table, SpatialIndexName)
		if err != nil {
			return err
		}
		if n, _ := adapters.AsInt64(v); n > 0 {
			return nil
		}
		_, err = m.adapter.Exec(ctx, fmt.Sprintf("CREATE SPATIAL INDEX %s ON %s (meta_value)", SpatialIndexName, table))
		return err
	case adapters.Postgres:
		_, err := m.adapter.Exec(ctx,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s ON %s USING GIST (meta_value)", table, SpatialIndexName, table))
		return err
	case adapters.DuckDB:
		_, err := m.adapter.Exec(ctx,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_%s ON %s USING RTREE (meta_value)", table, SpatialIndexName, table))
		return err
	}
	return nil
}
