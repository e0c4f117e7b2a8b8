package geometa

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/bootstrap"
	"github.com/canonica-labs/geometa/internal/config"
	"github.com/canonica-labs/geometa/internal/dispatch"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/metastore"
	"github.com/canonica-labs/geometa/internal/shadow"
	"github.com/canonica-labs/geometa/internal/storage"
)

func newTestService(t *testing.T, ext *bootstrap.Extensions) *Service {
	t.Helper()
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = true
	s, err := New(ctx, cfg, ext, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.schema.CreateMetaTables(ctx); err != nil {
		t.Fatalf("failed to create meta tables: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func insertMeta(t *testing.T, s *Service, id, objectID int64, key, value string) {
	t.Helper()
	if _, err := s.adapter.Exec(context.Background(),
		"INSERT INTO wp_postmeta (meta_id, post_id, meta_key, meta_value) VALUES (?, ?, ?, ?)",
		id, objectID, key, value); err != nil {
		t.Fatalf("failed to insert meta row: %v", err)
	}
}

func TestOlder(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"0.9.0", "1.0.0", true},
		{"1.0.0", "1.0.0", false},
		{"v1.2.0", "1.10.0", true},
		{"1.10.0", "1.2.0", false},
		{"", "1.0.0", true},
		{"garbage", "1.0.0", true},
	}
	for _, tt := range tests {
		if got := Older(tt.a, tt.b); got != tt.want {
			t.Errorf("Older(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Engine.Driver = "oracle"
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	if err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
	if errors.CodeOf(err) != errors.CodeConfig {
		t.Errorf("expected a config error, got %v", err)
	}
}

func TestService_InitInstalls(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	for key, want := range map[string]string{
		storage.KeyDBVersion: DBVersion,
		storage.KeyVersion:   Version,
	} {
		got, found, err := s.settings.Get(ctx, key)
		if err != nil || !found || got != want {
			t.Errorf("expected %s=%s, got %q found=%v err=%v", key, want, got, found, err)
		}
	}
	if fp, found, _ := s.settings.Get(ctx, storage.KeyCatalogFingerprint); !found || fp != s.prober.Fingerprint() {
		t.Errorf("expected the catalog fingerprint to be stored, got %q", fp)
	}
	for _, ot := range metastore.ObjectTypes() {
		if _, err := s.store.Count(ctx, ot); err != nil {
			t.Errorf("expected shadow table for %s, got %v", ot, err)
		}
	}
}

func TestService_InitUpgradesOlderSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	if err := s.settings.Set(ctx, storage.KeyDBVersion, "0.1.0"); err != nil {
		t.Fatalf("failed to set db version: %v", err)
	}
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if v, _, _ := s.settings.Get(ctx, storage.KeyDBVersion); v != DBVersion {
		t.Errorf("expected db version %s after upgrade, got %s", DBVersion, v)
	}
}

func TestService_CapabilitiesAndCall(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, &bootstrap.Extensions{KnownFunctions: []string{"abs"}})

	names, err := s.Capabilities(ctx, false)
	if err != nil {
		t.Fatalf("Capabilities failed: %v", err)
	}
	found := false
	for _, n := range names {
		if n == "abs" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected abs among %v", names)
	}

	res, err := s.Call(ctx, "abs", -3)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if v, ok := res.Value.(int64); !ok || v != 3 {
		t.Errorf("expected 3, got %#v", res.Value)
	}

	if _, err := s.Call(ctx, "ST_Buffer", `{"type":"Point","coordinates":[1,2]}`, 1); !stderrors.Is(err, dispatch.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable on sqlite, got %v", err)
	}
}

func TestService_MutationAndReader(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	insertMeta(t, s, 1, 10, "geo_latitude", "45.5")
	insertMeta(t, s, 2, 10, "geo_longitude", "-122.6")

	out, err := s.OnMutation(ctx, shadow.Mutation{
		Action: shadow.Added, ObjectType: metastore.Post, MetaIDs: []int64{2},
		ObjectID: 10, Key: "geo_longitude", Value: "-122.6",
	})
	if err != nil {
		t.Fatalf("OnMutation failed: %v", err)
	}
	if out.Result != shadow.ResultUpserted || out.Key != "geo_" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	features, err := s.Geometries(ctx, metastore.Post, 10)
	if err != nil {
		t.Fatalf("Geometries failed: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(features))
	}
	if s.Summary().Upserted != 1 {
		t.Errorf("expected 1 upsert in the summary, got %+v", s.Summary())
	}
	if s.Metrics() == nil {
		t.Error("expected metrics to be enabled")
	}
}

func TestService_PopulateTruncateUninstall(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	insertMeta(t, s, 1, 10, "shape", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`)
	insertMeta(t, s, 2, 11, "geo_latitude", "1")
	insertMeta(t, s, 3, 11, "geo_longitude", "2")

	report, err := s.Populate(ctx)
	if err != nil {
		t.Fatalf("Populate failed: %v", err)
	}
	if report.Total().Mirrored != 1 || report.LatLngPairs != 1 {
		t.Errorf("unexpected report %+v", report.Total())
	}
	if n, _ := s.store.Count(ctx, metastore.Post); n != 2 {
		t.Fatalf("expected 2 shadow rows, got %d", n)
	}

	if err := s.Truncate(ctx); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	if n, _ := s.store.Count(ctx, metastore.Post); n != 0 {
		t.Errorf("expected no shadow rows after truncate, got %d", n)
	}

	if err := s.Uninstall(ctx); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if _, err := s.store.Count(ctx, metastore.Post); err == nil {
		t.Error("expected the shadow table to be gone")
	}
	for _, key := range []string{storage.KeyDBVersion, storage.KeyCapabilities, storage.KeyCatalogFingerprint} {
		if _, found, _ := s.settings.Get(ctx, key); found {
			t.Errorf("expected %s to be deleted", key)
		}
	}
}

func TestService_StatusReportsRegisteredEngines(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(st.Engines) != 1 || st.Engines[0] != "sqlite" {
		t.Errorf("expected [sqlite], got %v", st.Engines)
	}
	if !st.Installed || !st.Current {
		t.Errorf("expected a current install, got %+v", st)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.Status(ctx); !stderrors.As(err, new(*errors.ErrDatabaseUnavailable)) {
		t.Errorf("expected the closed engine to be unavailable, got %v", err)
	}
}
