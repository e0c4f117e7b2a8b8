package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/adapters/sqlite"
	"github.com/canonica-labs/geometa/internal/errors"
)

// newTestAdapter opens a private in-memory SQLite database with geometa's
// migrations applied.
func newTestAdapter(t *testing.T) adapters.EngineAdapter {
	t.Helper()
	ctx := context.Background()
	a, err := sqlite.New(ctx, adapters.Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if _, err := NewMigrationRunner(a, "wp_").Run(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return a
}

// TestSQLSettings_RoundTrip verifies set, overwrite and delete.
func TestSQLSettings_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSQLSettings(newTestAdapter(t), "wp_")

	if _, found, err := store.Get(ctx, KeyCapabilities); err != nil || found {
		t.Fatalf("expected missing key, got found=%v err=%v", found, err)
	}

	if err := store.Set(ctx, KeyCapabilities, `["st_buffer"]`); err != nil {
		t.Fatalf("failed to set: %v", err)
	}
	if err := store.Set(ctx, KeyCapabilities, `["st_buffer","st_area"]`); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}

	value, found, err := store.Get(ctx, KeyCapabilities)
	if err != nil || !found {
		t.Fatalf("expected stored key, got found=%v err=%v", found, err)
	}
	if value != `["st_buffer","st_area"]` {
		t.Errorf("expected last write to win, got %q", value)
	}

	if err := store.Delete(ctx, KeyCapabilities); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := store.Delete(ctx, KeyCapabilities); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
	if _, found, _ := store.Get(ctx, KeyCapabilities); found {
		t.Errorf("expected key to be gone after delete")
	}

	if err := store.CheckConnectivity(ctx); err != nil {
		t.Errorf("expected connectivity, got %v", err)
	}
}

// TestSQLSettings_MissingTable verifies errors carry the settings key.
func TestSQLSettings_MissingTable(t *testing.T) {
	ctx := context.Background()
	store := NewSQLSettings(newTestAdapter(t), "other_")

	_, _, err := store.Get(ctx, KeyVersion)
	if err == nil {
		t.Fatalf("expected error for missing table")
	}
	if errors.CodeOf(err) != errors.CodeEngine {
		t.Errorf("expected engine error code, got %d", errors.CodeOf(err))
	}
	if store.CheckConnectivity(ctx) == nil {
		t.Errorf("expected connectivity check to fail")
	}
}

// TestMockSettings_Failures verifies the failure toggles.
func TestMockSettings_Failures(t *testing.T) {
	ctx := context.Background()
	m := NewMockSettings()

	if err := m.Set(ctx, KeyVersion, "1.0.0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Writes(KeyVersion) != 1 {
		t.Errorf("expected 1 write, got %d", m.Writes(KeyVersion))
	}

	m.SetPersistenceFailure(true)
	if err := m.Set(ctx, KeyVersion, "2.0.0"); err == nil {
		t.Errorf("expected simulated persistence failure")
	}
	if v, _, _ := m.Get(ctx, KeyVersion); v != "1.0.0" {
		t.Errorf("expected value to be unchanged, got %q", v)
	}

	m.SetConnectivityFailure(true)
	if _, _, err := m.Get(ctx, KeyVersion); err == nil {
		t.Errorf("expected simulated connectivity failure")
	}
	if err := m.CheckConnectivity(ctx); err == nil {
		t.Errorf("expected connectivity check to fail")
	}
	if !m.ConnectivityCheckCalled() {
		t.Errorf("expected connectivity check to be recorded")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := NewMockSettings().Get(cancelled, KeyVersion); err == nil {
		t.Errorf("expected context error")
	}
}
