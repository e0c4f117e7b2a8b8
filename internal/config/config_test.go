package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/canonica-labs/geometa/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "geometa.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "engine:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := DefaultConfig()
	if cfg.Schema != want.Schema {
		t.Errorf("expected schema %+v, got %+v", want.Schema, cfg.Schema)
	}
	if cfg.Backfill != want.Backfill {
		t.Errorf("expected backfill %+v, got %+v", want.Backfill, cfg.Backfill)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected 5m cache ttl, got %v", cfg.Cache.TTL)
	}
	if cfg.Engine.SlowQueryThreshold != 500*time.Millisecond {
		t.Errorf("expected 500ms slow query threshold, got %v", cfg.Engine.SlowQueryThreshold)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoad_FileValues(t *testing.T) {
	p := writeConfig(t, `
engine:
  driver: MySQL
  dsn: geo:geo@tcp(localhost:3306)/wordpress
  slow_query_threshold: 2s
schema:
  table_prefix: site2_
  srid: 3857
backfill:
  page_size: 500
  pages_per_second: 2.5
cache:
  ttl: 30s
logging:
  level: debug
  format: console
metrics:
  enabled: true
extensions: ext.yaml
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.Driver != "mysql" {
		t.Errorf("expected driver to be folded to mysql, got %q", cfg.Engine.Driver)
	}
	if cfg.Engine.SlowQueryThreshold != 2*time.Second {
		t.Errorf("expected 2s, got %v", cfg.Engine.SlowQueryThreshold)
	}
	if cfg.Schema.TablePrefix != "site2_" || cfg.Schema.SRID != 3857 {
		t.Errorf("unexpected schema %+v", cfg.Schema)
	}
	if cfg.Backfill.PageSize != 500 || cfg.Backfill.PagesPerSecond != 2.5 {
		t.Errorf("unexpected backfill %+v", cfg.Backfill)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("expected 30s ttl, got %v", cfg.Cache.TTL)
	}
	if !cfg.Metrics.Enabled || cfg.Extensions != "ext.yaml" {
		t.Errorf("unexpected metrics/extensions: %+v %q", cfg.Metrics, cfg.Extensions)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("GEOMETA_ENGINE_DSN", "file:test.db")
	t.Setenv("GEOMETA_SCHEMA_TABLE_PREFIX", "env_")

	cfg, err := Load(writeConfig(t, "engine:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.DSN != "file:test.db" {
		t.Errorf("expected dsn from environment, got %q", cfg.Engine.DSN)
	}
	if cfg.Schema.TablePrefix != "env_" {
		t.Errorf("expected prefix from environment, got %q", cfg.Schema.TablePrefix)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "engine:\n  driver: oracle\n"},
		{"zero srid", "schema:\n  srid: 0\n"},
		{"zero page size", "backfill:\n  page_size: 0\n"},
		{"negative rate", "backfill:\n  pages_per_second: -1\n"},
		{"bad log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected an error")
			}
			if errors.CodeOf(err) != errors.CodeConfig {
				t.Errorf("expected a config error, got %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for an explicit missing file")
	}
}
