// Package geometa wires the engine adapter, storage, prober, dispatcher,
// synchronizer and backfill job into one service, and owns the install,
// upgrade, uninstall and truncate lifecycle.
package geometa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/adapters/duckdb"
	"github.com/canonica-labs/geometa/internal/adapters/mysql"
	"github.com/canonica-labs/geometa/internal/adapters/postgres"
	"github.com/canonica-labs/geometa/internal/adapters/sqlite"
	"github.com/canonica-labs/geometa/internal/backfill"
	"github.com/canonica-labs/geometa/internal/bootstrap"
	"github.com/canonica-labs/geometa/internal/cache"
	"github.com/canonica-labs/geometa/internal/capabilities"
	"github.com/canonica-labs/geometa/internal/config"
	"github.com/canonica-labs/geometa/internal/dispatch"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/metastore"
	"github.com/canonica-labs/geometa/internal/observability"
	"github.com/canonica-labs/geometa/internal/shadow"
	"github.com/canonica-labs/geometa/internal/storage"
)

// Version is the release version recorded under geometa_version.
const Version = "1.0.0"

// DBVersion is the shadow schema version. Bump it when the shadow tables or
// the bundled SQL functions change, so Init upgrades existing installs.
const DBVersion = "1.0.0"

// Service is a fully wired geometa instance.
type Service struct {
	cfg     *config.Config
	adapter adapters.EngineAdapter
	logger  zerolog.Logger

	settings   storage.SettingsStore
	migrations *storage.MigrationRunner
	schema     *storage.SchemaManager
	functions  *storage.FunctionInstaller

	prober     *capabilities.Prober
	dispatcher *dispatch.Dispatcher

	meta     *metastore.SQLStore
	registry *shadow.Registry
	store    *shadow.Store
	cache    *cache.Cache
	reader   *shadow.Reader
	sync     *shadow.Synchronizer
	job      *backfill.Job
	engines  *adapters.Registry

	events  *observability.ZerologEventLogger
	metrics *observability.Metrics
}

// Open connects the adapter named by cfg.Engine.Driver.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (adapters.EngineAdapter, error) {
	opts := adapters.Options{
		DSN:                cfg.Engine.DSN,
		SlowQueryThreshold: cfg.Engine.SlowQueryThreshold,
		Logger:             observability.Component(logger, "engine"),
		Retry:              adapters.DefaultRetryConfig(),
	}

	switch strings.ToLower(cfg.Engine.Driver) {
	case adapters.MySQL:
		return mysql.New(ctx, mysql.Config{Options: opts, CreateDatabase: cfg.Engine.CreateDatabase})
	case adapters.Postgres:
		return postgres.New(ctx, opts)
	case adapters.SQLite:
		return sqlite.New(ctx, opts)
	case adapters.DuckDB:
		return duckdb.New(ctx, duckdb.Config{Options: opts})
	}
	return nil, errors.NewUnsupportedDriver(cfg.Engine.Driver)
}

// New opens the configured engine and wires a service over it.
func New(ctx context.Context, cfg *config.Config, ext *bootstrap.Extensions, logger zerolog.Logger) (*Service, error) {
	adapter, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewWithAdapter(cfg, ext, adapter, logger)
	if err != nil {
		_ = adapter.Close()
		return nil, err
	}
	return s, nil
}

// NewWithAdapter wires a service over an open adapter. The service owns the
// adapter from here on.
func NewWithAdapter(cfg *config.Config, ext *bootstrap.Extensions, adapter adapters.EngineAdapter, logger zerolog.Logger) (*Service, error) {
	if ext == nil {
		ext = &bootstrap.Extensions{}
	}
	prefix := cfg.Schema.TablePrefix
	srid := cfg.Schema.SRID
	if srid <= 0 {
		srid = shadow.DefaultSRID
	}

	s := &Service{
		cfg:     cfg,
		adapter: adapter,
		logger:  logger,
		events:  observability.NewEventLogger(observability.Component(logger, "shadow")),
		engines: adapters.NewRegistry(),
	}
	s.engines.Register(adapter)
	if cfg.Metrics.Enabled {
		s.metrics = observability.NewMetrics(nil)
	}

	s.settings = storage.NewSQLSettings(adapter, prefix)
	s.migrations = storage.NewMigrationRunner(adapter, prefix)
	s.schema = storage.NewSchemaManager(adapter, prefix, srid, observability.Component(logger, "schema"))

	bundled, err := storage.BundledSQLFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled sql functions: %w", err)
	}
	sqlFilter, err := ext.SQLFileFilter()
	if err != nil {
		return nil, err
	}
	s.functions = storage.NewFunctionInstaller(adapter, bundled, sqlFilter, observability.Component(logger, "functions"))

	// Installed stored functions are part of the catalog.
	installed := storage.FunctionNames(s.functions.Files())
	catalog := capabilities.BuildCatalog(ext.CatalogFilter(), func(names []string) []string {
		return append(names, installed...)
	})

	s.prober = capabilities.NewProber(capabilities.Config{
		Adapter:  adapter,
		Settings: s.settings,
		Catalog:  catalog,
		Logger:   observability.Component(logger, "capabilities"),
		Events:   s.events,
		Metrics:  s.metrics,
	})
	s.dispatcher = dispatch.New(dispatch.Config{
		Adapter:      adapter,
		Capabilities: s.prober,
		Table:        dispatch.NewTable(catalog),
		Logger:       observability.Component(logger, "dispatch"),
		Metrics:      s.metrics,
	})

	s.registry = shadow.NewRegistry()
	if err := ext.RegisterPairs(s.registry); err != nil {
		return nil, err
	}
	s.meta = metastore.NewSQLStore(adapter, prefix)
	s.store = shadow.NewStore(adapter, prefix, srid)
	s.cache = cache.New(cfg.Cache.TTL, 0)
	s.reader = shadow.NewReader(s.store, s.cache, observability.Component(logger, "reader"))
	s.sync = shadow.NewSynchronizer(shadow.Config{
		Store:       s.store,
		Fields:      s.meta,
		LatLng:      s.registry,
		Invalidator: s.reader,
		Logger:      observability.Component(logger, "shadow"),
		Events:      s.events,
		Metrics:     s.metrics,
	})
	s.job = backfill.NewJob(backfill.Config{
		Scanner:        s.meta,
		Sync:           s.sync,
		LatLng:         s.registry,
		PageSize:       cfg.Backfill.PageSize,
		PagesPerSecond: cfg.Backfill.PagesPerSecond,
		Logger:         observability.Component(logger, "backfill"),
		Metrics:        s.metrics,
	})
	return s, nil
}

// Init brings an existing install up to date: a stored schema version older
// than DBVersion runs Upgrade, and a changed function catalog retests the
// capabilities.
func (s *Service) Init(ctx context.Context) error {
	if _, err := s.migrations.Run(ctx); err != nil {
		return err
	}

	stored, found, err := s.settings.Get(ctx, storage.KeyDBVersion)
	if err != nil {
		return errors.NewSettingsUnavailable(storage.KeyDBVersion, err)
	}
	if !found || Older(stored, DBVersion) {
		s.logger.Info().Str("from", stored).Str("to", DBVersion).Msg("upgrading shadow schema")
		if err := s.Upgrade(ctx); err != nil {
			return err
		}
	}
	return s.prober.Init(ctx)
}

// Older reports whether version a precedes b. Versions may omit the leading
// v; an invalid a counts as older than any valid b.
func Older(a, b string) bool {
	return semver.Compare(canonical(a), canonical(b)) < 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Install creates the settings and shadow tables, installs the stored
// functions and records the versions. On SQLite and DuckDB it also creates
// the meta tables. Running it again is harmless.
func (s *Service) Install(ctx context.Context) error {
	if _, err := s.migrations.Run(ctx); err != nil {
		return err
	}
	// Local engines have no host application creating the meta tables.
	switch s.adapter.Dialect().Name {
	case adapters.SQLite, adapters.DuckDB:
		if err := s.schema.CreateMetaTables(ctx); err != nil {
			return err
		}
	}
	if err := s.schema.CreateShadowTables(ctx); err != nil {
		return err
	}
	n, err := s.functions.Install(ctx)
	if err != nil {
		return err
	}
	for key, value := range map[string]string{
		storage.KeyDBVersion: DBVersion,
		storage.KeyVersion:   Version,
	} {
		if err := s.settings.Set(ctx, key, value); err != nil {
			return errors.NewSettingsUnavailable(key, err)
		}
	}
	s.logger.Info().Str("db_version", DBVersion).Int("functions", n).Msg("geometa installed")
	return nil
}

// Upgrade reruns Install and retests the capabilities, since new functions
// may now exist.
func (s *Service) Upgrade(ctx context.Context) error {
	if err := s.Install(ctx); err != nil {
		return err
	}
	_, err := s.prober.GetCapabilities(ctx, capabilities.Options{Retest: true, Lower: true, Cache: true})
	return err
}

// Uninstall removes the stored functions, the shadow tables and the stored
// settings. The primary meta tables are left alone.
func (s *Service) Uninstall(ctx context.Context) error {
	if _, err := s.functions.Uninstall(ctx); err != nil {
		return err
	}
	if err := s.schema.DropShadowTables(ctx); err != nil {
		return err
	}
	for _, key := range []string{
		storage.KeyDBVersion, storage.KeyVersion,
		storage.KeyCapabilities, storage.KeyCatalogFingerprint,
	} {
		if err := s.settings.Delete(ctx, key); err != nil {
			return errors.NewSettingsUnavailable(key, err)
		}
	}
	s.prober.Invalidate()
	return s.cache.Clear(ctx)
}

// Truncate empties the shadow tables and the geometry cache.
func (s *Service) Truncate(ctx context.Context) error {
	if err := s.schema.TruncateShadowTables(ctx); err != nil {
		return err
	}
	return s.cache.Clear(ctx)
}

// Status describes the install in the engine.
type Status struct {
	Engine       string                         `json:"engine"`
	Engines      []string                       `json:"engines"`
	DBVersion    string                         `json:"db_version"`
	Installed    bool                           `json:"installed"`
	Current      bool                           `json:"current"`
	ShadowRows   map[metastore.ObjectType]int64 `json:"shadow_rows"`
	Capabilities int                            `json:"capabilities"`
}

// Status reads the stored versions and counts the shadow rows. It does not
// probe the engine; Capabilities is zero until a probe result is stored.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	for name, err := range s.engines.CheckAllHealth(ctx) {
		if err != nil {
			return nil, errors.NewDatabaseUnavailable(name + ": " + err.Error())
		}
	}
	st := &Status{
		Engine:     s.adapter.Name(),
		Engines:    s.engines.Available(),
		ShadowRows: make(map[metastore.ObjectType]int64),
	}

	prev := s.adapter.SuppressErrors(true)
	err := s.settings.CheckConnectivity(ctx)
	s.adapter.SuppressErrors(prev)
	if err != nil {
		// Nothing is installed yet.
		return st, nil
	}
	v, found, err := s.settings.Get(ctx, storage.KeyDBVersion)
	if err != nil {
		return nil, errors.NewSettingsUnavailable(storage.KeyDBVersion, err)
	}
	st.DBVersion = v
	st.Installed = found
	st.Current = found && !Older(v, DBVersion)

	if st.Installed {
		for _, t := range metastore.ObjectTypes() {
			n, err := s.store.Count(ctx, t)
			if err != nil {
				return nil, err
			}
			st.ShadowRows[t] = n
		}
	}

	if raw, found, err := s.settings.Get(ctx, storage.KeyCapabilities); err == nil && found {
		var names []string
		if json.Unmarshal([]byte(raw), &names) == nil {
			st.Capabilities = len(names)
		}
	}
	return st, nil
}

// Populate runs the backfill job.
func (s *Service) Populate(ctx context.Context) (*backfill.Report, error) {
	return s.job.Populate(ctx)
}

// Capabilities returns the engine's available functions in catalog spelling.
func (s *Service) Capabilities(ctx context.Context, retest bool) ([]string, error) {
	set, err := s.prober.GetCapabilities(ctx, capabilities.Options{Retest: retest, Cache: true})
	if err != nil {
		return nil, err
	}
	return set.Names(false), nil
}

// Call invokes a spatial function through the dispatcher.
func (s *Service) Call(ctx context.Context, name string, args ...any) (dispatch.Result, error) {
	return s.dispatcher.Invoke(ctx, name, args...)
}

// OnMutation hands a metadata mutation to the synchronizer.
func (s *Service) OnMutation(ctx context.Context, m shadow.Mutation) (shadow.Outcome, error) {
	return s.sync.OnMutation(ctx, m)
}

// Geometries returns an object's mirrored geometries.
func (s *Service) Geometries(ctx context.Context, t metastore.ObjectType, objectID int64) ([]*geojson.Feature, error) {
	return s.reader.Geometries(ctx, t, objectID)
}

// Hooks returns the synchronizer's extension points.
func (s *Service) Hooks() *shadow.Hooks {
	return s.sync.Hooks()
}

// Adapter returns the engine adapter.
func (s *Service) Adapter() adapters.EngineAdapter {
	return s.adapter
}

// Summary returns the mutation statistics since the service started.
func (s *Service) Summary() *observability.SyncSummary {
	return s.events.Summary()
}

// Metrics returns the service metrics, or nil when metrics are disabled.
func (s *Service) Metrics() *observability.Metrics {
	return s.metrics
}

// Close releases every registered adapter.
func (s *Service) Close() error {
	return s.engines.CloseAll()
}
