package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/migrations"
)

// MigrationRunner applies the embedded migrations for the adapter's dialect.
// Migration files may contain several statements separated by semicolons at
// the end of a line, and refer to the table prefix as {{prefix}}.
type MigrationRunner struct {
	adapter adapters.EngineAdapter
	prefix  string
	files   fs.FS
}

// NewMigrationRunner creates a new migration runner.
func NewMigrationRunner(adapter adapters.EngineAdapter, prefix string) *MigrationRunner {
	return &MigrationRunner{adapter: adapter, prefix: prefix, files: migrations.FS}
}

// Run executes all pending migrations and returns the versions it applied.
func (r *MigrationRunner) Run(ctx context.Context) ([]string, error) {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	migrationList, err := r.getMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	var ran []string
	for _, m := range migrationList {
		if applied[m.version] {
			continue
		}
		if err := r.applyMigration(ctx, m); err != nil {
			return ran, errors.NewMigrationFailed(m.name, err)
		}
		ran = append(ran, m.version)
	}
	return ran, nil
}

type migration struct {
	version  string
	name     string
	filename string
	content  string
}

func (r *MigrationRunner) table() string {
	return r.prefix + "geometa_migrations"
}

func (r *MigrationRunner) ensureMigrationsTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(191) NOT NULL PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`, r.table())
	_, err := r.adapter.Exec(ctx, query)
	return err
}

func (r *MigrationRunner) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	result, err := r.adapter.Query(ctx, fmt.Sprintf("SELECT version FROM %s", r.table()))
	if err != nil {
		return nil, err
	}

	applied := make(map[string]bool, result.RowCount)
	for _, row := range result.Rows {
		if version, ok := adapters.AsString(row[0]); ok {
			applied[version] = true
		}
	}
	return applied, nil
}

func (r *MigrationRunner) getMigrationFiles() ([]migration, error) {
	var migrationList []migration

	dir := r.adapter.Dialect().Name
	entries, err := fs.ReadDir(r.files, dir)
	if err != nil {
		// No migrations for this dialect.
		return migrationList, nil
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		// Only process .up.sql files
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		// Parse version from filename (e.g., "000001_settings.up.sql")
		parts := strings.SplitN(name, "_", 2)
		if len(parts) < 2 {
			continue
		}

		content, err := fs.ReadFile(r.files, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		migrationList = append(migrationList, migration{
			version:  parts[0],
			name:     strings.TrimSuffix(name, ".up.sql"),
			filename: name,
			content:  strings.ReplaceAll(string(content), "{{prefix}}", r.prefix),
		})
	}

	sort.Slice(migrationList, func(i, j int) bool {
		return migrationList[i].version < migrationList[j].version
	})

	return migrationList, nil
}

// applyMigration runs each statement then records the version. MySQL commits
// DDL implicitly, so statements are not wrapped in a transaction; every
// migration uses IF NOT EXISTS and can be re-run.
func (r *MigrationRunner) applyMigration(ctx context.Context, m migration) error {
	for _, stmt := range SplitStatements(m.content) {
		if _, err := r.adapter.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	d := r.adapter.Dialect()
	if _, err := r.adapter.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (version, applied_at) VALUES (%s)", r.table(), d.Params(1, 2)),
		m.version, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return nil
}

// SplitStatements splits a script on semicolons that end a line and drops
// empty statements and comment-only lines.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(trimmed, ";"))
			flush()
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return stmts
}
