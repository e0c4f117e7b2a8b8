// Package storage owns everything geometa persists in the engine besides the
// shadow rows themselves: the settings table, schema migrations, the shadow
// table DDL and the bundled SQL functions.
package storage

import (
	"context"
	"fmt"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
)

// Settings keys.
const (
	KeyDBVersion          = "geometa_db_version"
	KeyVersion            = "geometa_version"
	KeyCapabilities       = "geometa_capabilities"
	KeyCatalogFingerprint = "geometa_catalog_fingerprint"
)

// SettingsStore persists named string settings. Writes overwrite; the last
// writer wins.
type SettingsStore interface {
	// Get returns the value for key. found is false when the key has never
	// been set.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// CheckConnectivity verifies the settings table is reachable.
	CheckConnectivity(ctx context.Context) error
}

// SettingsTable returns the settings table name for a table prefix.
func SettingsTable(prefix string) string {
	return prefix + "geometa_settings"
}

// SQLSettings implements SettingsStore over the settings table.
type SQLSettings struct {
	adapter adapters.EngineAdapter
	table   string
}

// NewSQLSettings creates a settings store. The table is created by the
// migration runner.
func NewSQLSettings(adapter adapters.EngineAdapter, prefix string) *SQLSettings {
	return &SQLSettings{adapter: adapter, table: SettingsTable(prefix)}
}

// Get returns the value stored under key.
func (s *SQLSettings) Get(ctx context.Context, key string) (string, bool, error) {
	d := s.adapter.Dialect()
	v, err := s.adapter.QueryValue(ctx,
		fmt.Sprintf("SELECT setting_value FROM %s WHERE setting_key = %s", s.table, d.Param(1)), key)
	if adapters.IsNoRows(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewSettingsUnavailable(key, err)
	}
	value, _ := adapters.AsString(v)
	return value, true, nil
}

// Set stores value under key.
func (s *SQLSettings) Set(ctx context.Context, key, value string) error {
	d := s.adapter.Dialect()
	query := fmt.Sprintf("INSERT INTO %s (setting_key, setting_value) VALUES (%s) %s",
		s.table, d.Params(1, 2), d.OnConflictUpdate("setting_key", "setting_value", d.Param(3)))
	args := []any{key, value}
	if d.UpsertRebindsValue() {
		args = append(args, value)
	}
	if _, err := s.adapter.Exec(ctx, query, args...); err != nil {
		return errors.NewSettingsUnavailable(key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLSettings) Delete(ctx context.Context, key string) error {
	d := s.adapter.Dialect()
	if _, err := s.adapter.Exec(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE setting_key = %s", s.table, d.Param(1)), key); err != nil {
		return errors.NewSettingsUnavailable(key, err)
	}
	return nil
}

// CheckConnectivity verifies the settings table can be read.
func (s *SQLSettings) CheckConnectivity(ctx context.Context) error {
	if _, err := s.adapter.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)); err != nil {
		return errors.NewDatabaseUnavailable(err.Error())
	}
	return nil
}
