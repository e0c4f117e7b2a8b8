package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/adapters/sqlite"
	"github.com/canonica-labs/geometa/internal/dispatch"
	"github.com/canonica-labs/geometa/internal/errors"
)

type testEnv struct {
	dir        string
	dbPath     string
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		dbPath:     filepath.Join(dir, "geometa.db"),
		configPath: filepath.Join(dir, "geometa.yaml"),
	}
	config := "engine:\n  driver: sqlite\n  dsn: " + env.dbPath + "\n" +
		"logging:\n  level: error\n" +
		"metrics:\n  enabled: true\n" +
		"extensions: ext.yaml\n"
	if err := os.WriteFile(env.configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	ext := "known_functions:\n  - abs\n"
	if err := os.WriteFile(filepath.Join(dir, "ext.yaml"), []byte(ext), 0o644); err != nil {
		t.Fatalf("failed to write extensions: %v", err)
	}
	return env
}

// run executes one command with a fresh CLI, as a separate process would.
func (e *testEnv) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := New()
	c.SetOutput(&out, &errOut)
	code := c.Run(append([]string{"--config", e.configPath}, args...))
	return code, out.String(), errOut.String()
}

func (e *testEnv) insertMeta(t *testing.T, id, objectID int64, key, value string) {
	t.Helper()
	ctx := context.Background()
	a, err := sqlite.New(ctx, adapters.Options{DSN: e.dbPath, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer a.Close()
	if _, err := a.Exec(ctx,
		"INSERT INTO wp_postmeta (meta_id, post_id, meta_key, meta_value) VALUES (?, ?, ?, ?)",
		id, objectID, key, value); err != nil {
		t.Fatalf("failed to insert meta row: %v", err)
	}
}

func TestVersion_JSON(t *testing.T) {
	env := newTestEnv(t)
	code, out, _ := env.run(t, "version", "--json")
	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var info VersionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if info.Version == "" || info.DBVersion == "" {
		t.Errorf("expected versions, got %+v", info)
	}
}

func TestInit_WritesExample(t *testing.T) {
	env := newTestEnv(t)
	target := t.TempDir()

	code, _, errOut := env.run(t, "init", "-o", target)
	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d: %s", code, errOut)
	}
	for _, name := range []string{"geometa.yaml", "geometa-extensions.yaml"} {
		if _, err := os.Stat(filepath.Join(target, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}

	if code, _, _ := env.run(t, "init", "-o", target); code == ExitSuccess {
		t.Error("expected a second init to fail")
	}
}

func TestLifecycle(t *testing.T) {
	env := newTestEnv(t)

	if code, _, errOut := env.run(t, "install"); code != ExitSuccess {
		t.Fatalf("install failed with %d: %s", code, errOut)
	}

	code, out, errOut := env.run(t, "capabilities", "--json")
	if code != ExitSuccess {
		t.Fatalf("capabilities failed with %d: %s", code, errOut)
	}
	var caps struct {
		Engine    string   `json:"engine"`
		Available []string `json:"available"`
	}
	if err := json.Unmarshal([]byte(out), &caps); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if caps.Engine != "sqlite" {
		t.Errorf("expected sqlite engine, got %q", caps.Engine)
	}
	found := false
	for _, n := range caps.Available {
		if n == "abs" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected abs among %v", caps.Available)
	}

	code, out, errOut = env.run(t, "call", "abs", "-3")
	if code != ExitSuccess {
		t.Fatalf("call failed with %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != "3" {
		t.Errorf("expected 3, got %q", out)
	}

	if code, _, _ := env.run(t, "call", "ST_Buffer", "POINT(1 2)", "1"); code != ExitValidation {
		t.Errorf("expected an unavailable function to exit %d, got %d", ExitValidation, code)
	}

	env.insertMeta(t, 1, 10, "shape", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`)
	env.insertMeta(t, 2, 11, "geo_latitude", "45.5")
	env.insertMeta(t, 3, 11, "geo_longitude", "-122.6")

	code, out, errOut = env.run(t, "populate")
	if code != ExitSuccess {
		t.Fatalf("populate failed with %d: %s", code, errOut)
	}
	if !strings.Contains(out, "lat/lng pairs: 1") {
		t.Errorf("expected one lat/lng pair in %q", out)
	}
	if !strings.Contains(out, "geometa_backfill_rows_total") {
		t.Errorf("expected metrics in %q", out)
	}

	code, out, _ = env.run(t, "doctor", "--json")
	if code != ExitSuccess {
		t.Fatalf("doctor failed with %d", code)
	}
	if !strings.Contains(out, "2 rows") {
		t.Errorf("expected 2 shadow rows reported, got %q", out)
	}

	if code, _, _ := env.run(t, "truncate"); code != ExitValidation {
		t.Errorf("expected truncate without --confirm to exit %d, got %d", ExitValidation, code)
	}
	if code, _, errOut := env.run(t, "truncate", "--confirm"); code != ExitSuccess {
		t.Errorf("truncate failed with %d: %s", code, errOut)
	}
	if code, _, errOut := env.run(t, "uninstall", "--confirm"); code != ExitSuccess {
		t.Errorf("uninstall failed with %d: %s", code, errOut)
	}

	_, out, _ = env.run(t, "doctor", "--json")
	if !strings.Contains(out, "Not installed") {
		t.Errorf("expected doctor to report no install, got %q", out)
	}
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "geometa.yaml")
	if err := os.WriteFile(p, []byte("engine:\n  driver: oracle\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var out, errOut bytes.Buffer
	c := New()
	c.SetOutput(&out, &errOut)
	if code := c.Run([]string{"version", "--config", p}); code != ExitConfig {
		t.Errorf("expected exit %d, got %d", ExitConfig, code)
	}
	if !strings.Contains(errOut.String(), "oracle") {
		t.Errorf("expected the driver in the error, got %q", errOut.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"unavailable", dispatch.ErrUnavailable, ExitValidation},
		{"arity", dispatch.ErrArity, ExitValidation},
		{"config", errors.NewConfigInvalid("schema.srid", "must be positive"), ExitConfig},
		{"engine", errors.NewEngineQueryFailed("mysql", "select", context.Canceled), ExitEngine},
		{"other", context.Canceled, ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParseArg(t *testing.T) {
	if v, ok := parseArg("42").(int64); !ok || v != 42 {
		t.Errorf("expected int64 42, got %#v", parseArg("42"))
	}
	if v, ok := parseArg("0.5").(float64); !ok || v != 0.5 {
		t.Errorf("expected float64 0.5, got %#v", parseArg("0.5"))
	}
	if v, ok := parseArg("POINT(1 2)").(string); !ok || v != "POINT(1 2)" {
		t.Errorf("expected text, got %#v", parseArg("POINT(1 2)"))
	}
}
