package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/observability"
	"github.com/canonica-labs/geometa/internal/storage"
)

// Options controls a GetCapabilities call.
type Options struct {
	// Retest discards every cached answer and probes the engine again.
	Retest bool

	// Lower returns folded names instead of the catalog spelling.
	Lower bool

	// Cache persists a fresh probe to the settings store.
	Cache bool
}

// DefaultOptions returns lower-cased, cached, non-retest options.
func DefaultOptions() Options {
	return Options{Lower: true, Cache: true}
}

// FunctionLister is implemented by adapters that can list every function the
// engine knows in one query. The prober uses it instead of a per-name routine
// lookup.
type FunctionLister interface {
	Functions(ctx context.Context, schemas ...string) ([]string, error)
}

// Config holds prober dependencies.
type Config struct {
	Adapter  adapters.EngineAdapter
	Settings storage.SettingsStore
	Catalog  []string
	Logger   zerolog.Logger
	Events   observability.EventLogger
	Metrics  *observability.Metrics
}

// Prober determines which catalog functions the engine supports.
type Prober struct {
	adapter  adapters.EngineAdapter
	settings storage.SettingsStore
	catalog  []string
	logger   zerolog.Logger
	events   observability.EventLogger
	metrics  *observability.Metrics

	mu    sync.RWMutex
	found Set
}

// NewProber creates a prober. An empty catalog means BuildCatalog().
func NewProber(cfg Config) *Prober {
	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = BuildCatalog()
	}
	events := cfg.Events
	if events == nil {
		events = observability.NewNoopLogger()
	}
	return &Prober{
		adapter:  cfg.Adapter,
		settings: cfg.Settings,
		catalog:  catalog,
		logger:   cfg.Logger,
		events:   events,
		metrics:  cfg.Metrics,
		found:    Set{},
	}
}

// Catalog returns the names the prober tests.
func (p *Prober) Catalog() []string {
	out := make([]string, len(p.catalog))
	copy(out, p.catalog)
	return out
}

// Fingerprint identifies the catalog together with the engine's probe
// signature version.
func (p *Prober) Fingerprint() string {
	names := append(p.Catalog(), fmt.Sprintf("signatures:%s:v%d",
		p.adapter.Dialect().Name, SignatureVersion(p.adapter.Dialect().Name)))
	return Fingerprint(names)
}

// Init force-retests once when the catalog differs from the one the stored
// capabilities were probed with.
func (p *Prober) Init(ctx context.Context) error {
	fp := p.Fingerprint()
	stored, found, err := p.settings.Get(ctx, storage.KeyCatalogFingerprint)
	if err != nil {
		return err
	}
	if found && stored == fp {
		return nil
	}

	p.logger.Info().Bool("first_run", !found).Msg("function catalog changed, retesting capabilities")
	if _, err := p.GetCapabilities(ctx, Options{Retest: true, Lower: true, Cache: true}); err != nil {
		return err
	}
	return p.settings.Set(ctx, storage.KeyCatalogFingerprint, fp)
}

// Invalidate drops the in-process set. The next call reads the settings
// store.
func (p *Prober) Invalidate() {
	p.mu.Lock()
	p.found = Set{}
	p.mu.Unlock()
}

// Has reports whether name is available, probing lazily on first use.
func (p *Prober) Has(ctx context.Context, name string) (bool, error) {
	set, err := p.GetCapabilities(ctx, DefaultOptions())
	if err != nil {
		return false, err
	}
	return set.Has(name), nil
}

// GetCapabilities returns the set of available functions. Without Retest the
// in-process set answers first, then the settings store; the engine is only
// probed when neither has an answer.
func (p *Prober) GetCapabilities(ctx context.Context, opts Options) (Set, error) {
	if !opts.Retest {
		set, err := p.cached(ctx)
		if err != nil {
			return nil, err
		}
		if set.Len() > 0 {
			return view(set, opts.Lower), nil
		}
	}

	set, err := p.probe(ctx, opts.Retest)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.found = set
	p.mu.Unlock()

	if opts.Cache {
		data, err := json.Marshal(set.Names(false))
		if err != nil {
			return nil, errors.NewSettingsUnavailable(storage.KeyCapabilities, err)
		}
		if err := p.settings.Set(ctx, storage.KeyCapabilities, string(data)); err != nil {
			return nil, err
		}
	}
	return view(set, opts.Lower), nil
}

func (p *Prober) cached(ctx context.Context) (Set, error) {
	p.mu.RLock()
	set := p.found
	p.mu.RUnlock()
	if set.Len() > 0 {
		return set, nil
	}

	raw, found, err := p.settings.Get(ctx, storage.KeyCapabilities)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return Set{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		p.logger.Warn().Err(err).Msg("stored capabilities unreadable, probing again")
		return Set{}, nil
	}

	set = NewSet(names)
	p.mu.Lock()
	p.found = set
	p.mu.Unlock()
	return set, nil
}

// probe tests every catalog name against the engine. Engine errors are
// expected here, so error surfacing is suppressed for the duration.
func (p *Prober) probe(ctx context.Context, forced bool) (Set, error) {
	start := time.Now()
	d := p.adapter.Dialect()

	prev := p.adapter.SuppressErrors(true)
	defer p.adapter.SuppressErrors(prev)

	var listed Set
	if lister, ok := p.adapter.(FunctionLister); ok {
		names, err := lister.Functions(ctx, "public", "pg_catalog")
		if err != nil {
			p.logger.Warn().Err(err).Msg("function listing failed, probing one by one")
		} else {
			listed = NewSet(names)
		}
	}

	set := Set{}
	for _, name := range p.catalog {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ValidIdentifier(name) {
			p.logger.Warn().Str("function", name).Msg("skipping invalid function name")
			continue
		}

		result := p.probeOne(ctx, d, listed, name)
		if p.metrics != nil {
			p.metrics.ProbesTotal.WithLabelValues(result).Inc()
		}
		if result != probeAbsent {
			set.Add(name)
		}
	}

	if p.metrics != nil {
		p.metrics.CapabilitiesActive.Set(float64(set.Len()))
	}
	if err := p.events.LogProbe(ctx, observability.ProbeLogEntry{
		Engine:    p.adapter.Name(),
		Catalog:   len(p.catalog),
		Available: set.Len(),
		Forced:    forced,
		Duration:  time.Since(start),
	}); err != nil {
		p.logger.Warn().Err(err).Msg("failed to log probe")
	}
	return set, nil
}

// Probe results, used as metric labels.
const (
	probeRoutine   = "routine"
	probeSignature = "signature"
	probeAbsent    = "absent"
)

func (p *Prober) probeOne(ctx context.Context, d adapters.Dialect, listed Set, name string) string {
	if listed != nil {
		if listed.Has(name) {
			return probeRoutine
		}
	} else if d.RoutineQuery != "" {
		v, err := p.adapter.QueryValue(ctx, d.RoutineQuery, name)
		if err == nil {
			if n, ok := adapters.AsInt64(v); ok && n > 0 {
				return probeRoutine
			}
		}
	}

	_, err := p.adapter.Query(ctx, fmt.Sprintf("SELECT %s()", name))
	if Classify(d.Name, err) {
		return probeSignature
	}
	return probeAbsent
}

func view(set Set, lower bool) Set {
	if !lower {
		return set.Clone()
	}
	return NewSet(set.Names(true))
}
