// Package bootstrap loads the declarative extensions file and writes example
// configuration.
//
// The extensions file is the file-based form of the extension points:
// additional lat/lng pairs, additional known function names and additional
// SQL function files. Unknown keys fail the load.
package bootstrap

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/geometa/internal/capabilities"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/shadow"
	"github.com/canonica-labs/geometa/internal/storage"
)

// Extensions is the content of an extensions file.
type Extensions struct {
	// LatLngPairs are registered next to the default geo_latitude and
	// geo_longitude pair.
	LatLngPairs []shadow.Pair `yaml:"latlng_pairs,omitempty"`

	// KnownFunctions are added to the capability catalog.
	KnownFunctions []string `yaml:"known_functions,omitempty"`

	// SQLFiles are installed after the bundled SQL functions. Relative paths
	// are resolved against the extensions file's directory.
	SQLFiles []string `yaml:"sql_files,omitempty"`

	// dir is the directory relative SQL file paths are resolved against
	dir string
}

// LoadExtensions loads and validates an extensions file. An empty path
// returns empty extensions.
func LoadExtensions(path string) (*Extensions, error) {
	if path == "" {
		return &Extensions{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extensions file: %w", err)
	}
	ext, err := ParseExtensions(data)
	if err != nil {
		return nil, err
	}
	ext.dir = filepath.Dir(path)
	return ext, nil
}

// ParseExtensions decodes and validates an extensions document.
func ParseExtensions(data []byte) (*Extensions, error) {
	var ext Extensions
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ext); err != nil && err != io.EOF {
		return nil, errors.NewConfigInvalid("extensions", err.Error())
	}
	if err := ext.Validate(); err != nil {
		return nil, err
	}
	return &ext, nil
}

// Validate checks pairs and function names. Conflicting pairs are caught
// again when they are registered.
func (e *Extensions) Validate() error {
	for i, p := range e.LatLngPairs {
		if strings.TrimSpace(p.Lat) == "" || strings.TrimSpace(p.Lng) == "" || strings.TrimSpace(p.Geo) == "" {
			return errors.NewConfigInvalid(fmt.Sprintf("latlng_pairs[%d]", i), "lat, lng and geo are required")
		}
		if p.Lat == p.Lng {
			return errors.NewConfigInvalid(fmt.Sprintf("latlng_pairs[%d]", i), "lat and lng must differ")
		}
	}
	for _, name := range e.KnownFunctions {
		if !capabilities.ValidIdentifier(name) {
			return errors.NewConfigInvalid("known_functions", fmt.Sprintf("%q is not a valid function name", name))
		}
	}
	for _, p := range e.SQLFiles {
		if strings.TrimSpace(p) == "" {
			return errors.NewConfigInvalid("sql_files", "empty path")
		}
	}
	return nil
}

// RegisterPairs adds the extension pairs to r.
func (e *Extensions) RegisterPairs(r *shadow.Registry) error {
	for _, p := range e.LatLngPairs {
		if err := r.Register(p); err != nil {
			return errors.NewConfigInvalid("latlng_pairs", err.Error())
		}
	}
	return nil
}

// CatalogFilter appends the extension function names to the catalog.
func (e *Extensions) CatalogFilter() capabilities.CatalogFilter {
	extra := append([]string(nil), e.KnownFunctions...)
	return func(names []string) []string {
		return append(names, extra...)
	}
}

// SQLFileFilter loads the extension SQL files and returns a filter that
// appends them to the bundled ones.
func (e *Extensions) SQLFileFilter() (storage.SQLFileFilter, error) {
	var loaded []storage.SQLFile
	for _, p := range e.SQLFiles {
		if !filepath.IsAbs(p) && e.dir != "" {
			p = filepath.Join(e.dir, p)
		}
		f, err := storage.LoadSQLFile(p)
		if err != nil {
			return nil, errors.NewConfigInvalid("sql_files", err.Error())
		}
		if _, err := storage.InstallStatements(f.Content); err != nil {
			return nil, errors.NewConfigInvalid("sql_files", fmt.Sprintf("%s: %v", f.Name, err))
		}
		loaded = append(loaded, f)
	}
	return func(files []storage.SQLFile) []storage.SQLFile {
		return append(files, loaded...)
	}, nil
}

// WriteExample writes an example geometa.yaml and extensions file into dir
// and returns their paths. Existing files are not overwritten.
func WriteExample(dir string) (configPath, extensionsPath string, err error) {
	configPath = filepath.Join(dir, "geometa.yaml")
	extensionsPath = filepath.Join(dir, "geometa-extensions.yaml")

	for _, p := range []string{configPath, extensionsPath} {
		if _, err := os.Stat(p); err == nil {
			return "", "", fmt.Errorf("%s already exists", p)
		}
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.WriteFile(extensionsPath, []byte(exampleExtensions), 0644); err != nil {
		return "", "", fmt.Errorf("failed to write extensions file: %w", err)
	}
	return configPath, extensionsPath, nil
}

const exampleConfig = `# geometa configuration
# Generated by 'geometa init'

engine:
  driver: mysql
  dsn: geometa:geometa@tcp(localhost:3306)/wordpress
  slow_query_threshold: 500ms

schema:
  table_prefix: wp_
  srid: 4326

backfill:
  page_size: 100
  pages_per_second: 0

cache:
  ttl: 5m

logging:
  level: info
  format: console

metrics:
  enabled: false

extensions: geometa-extensions.yaml
`

const exampleExtensions = `# geometa extensions

# Scalar field pairs mirrored as a point. geo_latitude/geo_longitude is
# always registered.
latlng_pairs:
  - lat: venue_lat
    lng: venue_lng
    geo: venue_location

# Additional functions to probe for.
known_functions:
  - GM_venue_radius

# Additional stored function files, installed on MySQL.
sql_files: []
`
