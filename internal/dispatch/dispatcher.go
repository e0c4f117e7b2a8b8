// Package dispatch calls spatial SQL functions on the engine with GeoJSON or
// geometry text arguments and decodes geometry results back into GeoJSON.
package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/capabilities"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/geo"
	"github.com/canonica-labs/geometa/internal/observability"
)

var (
	// ErrUnavailable is returned for a function the engine does not support.
	ErrUnavailable = stderrors.New("dispatch: function not available")

	// ErrNoArguments is returned when a function is called without arguments.
	ErrNoArguments = stderrors.New("dispatch: no arguments")

	// ErrArity is returned when the argument count is outside the
	// function's bounds.
	ErrArity = stderrors.New("dispatch: wrong number of arguments")
)

// Dispatch outcomes, used as metric labels.
const (
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeRejected    = "rejected"
	outcomeFailed      = "failed"
)

// CapabilitySource answers whether the engine supports a function.
type CapabilitySource interface {
	Has(ctx context.Context, name string) (bool, error)
}

// Result is the outcome of a function call. Feature is set when the engine
// returned a geometry; otherwise Value holds the scalar or raw text.
type Result struct {
	Value   any
	Feature *geojson.Feature
}

// IsGeometry reports whether the call produced a geometry.
func (r Result) IsGeometry() bool {
	return r.Feature != nil
}

// Config holds dispatcher dependencies.
type Config struct {
	Adapter      adapters.EngineAdapter
	Capabilities CapabilitySource
	Table        Table
	Logger       zerolog.Logger
	Metrics      *observability.Metrics
}

// Dispatcher invokes spatial functions the engine is known to support.
type Dispatcher struct {
	adapter adapters.EngineAdapter
	caps    CapabilitySource
	table   Table
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// New creates a dispatcher. A nil table means the default catalog.
func New(cfg Config) *Dispatcher {
	table := cfg.Table
	if table == nil {
		table = NewTable(capabilities.BuildCatalog())
	}
	return &Dispatcher{
		adapter: cfg.Adapter,
		caps:    cfg.Capabilities,
		table:   table,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Invoke calls name with args. GeoJSON and geometry text arguments are passed
// as geometries, anything else is bound as a scalar. Unavailable functions and
// empty argument lists never reach the engine.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args ...any) (Result, error) {
	if !capabilities.ValidIdentifier(name) {
		d.count(outcomeRejected)
		return Result{}, errors.NewInvalidFunctionName(name)
	}

	ok, err := d.caps.Has(ctx, name)
	if err != nil {
		d.count(outcomeFailed)
		return Result{}, err
	}
	if !ok {
		d.count(outcomeUnavailable)
		return Result{}, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	if len(args) == 0 {
		d.count(outcomeRejected)
		return Result{}, ErrNoArguments
	}

	desc := d.table.Lookup(name)
	if !desc.Accepts(len(args)) {
		d.count(outcomeRejected)
		return Result{}, fmt.Errorf("%w: %s takes %s, got %d", ErrArity, name, arityText(desc), len(args))
	}

	query, bound := d.build(name, desc, args)
	raw, err := d.adapter.QueryValue(ctx, query, bound...)
	if err != nil {
		if adapters.IsNoRows(err) {
			d.count(outcomeOK)
			return Result{}, nil
		}
		d.count(outcomeFailed)
		d.logger.Warn().Err(err).Str("function", name).Msg("spatial function failed")
		return Result{}, errors.NewEngineQueryFailed(d.adapter.Name(), "call "+name, err)
	}

	d.count(outcomeOK)
	return d.decode(raw), nil
}

// build renders SELECT name(args) for the engine and returns the values to
// bind.
func (d *Dispatcher) build(name string, desc Descriptor, args []any) (string, []any) {
	dialect := d.adapter.Dialect()
	exprs := make([]string, len(args))
	bound := make([]any, len(args))
	for i, arg := range args {
		param := dialect.Param(i + 1)
		if geo.IsGeometryText(arg) || geo.IsGeoJSON(arg, false) {
			if text, err := geo.GeoJSONToWKT(arg, false); err == nil {
				exprs[i] = dialect.GeometryArg(param)
				bound[i] = text
				continue
			}
		}
		exprs[i] = param
		bound[i] = arg
	}

	call := fmt.Sprintf("%s(%s)", name, strings.Join(exprs, ", "))
	if desc.ReturnsGeometry && !dialect.SRIDPrefixedWKB {
		call = dialect.GeometryAsText(call)
	}
	return "SELECT " + call, bound
}

// decode turns an engine value into a Feature when it is a geometry.
func (d *Dispatcher) decode(raw any) Result {
	if b, ok := raw.([]byte); ok && d.adapter.Dialect().SRIDPrefixedWKB {
		if geom, ok := geo.DecodeEngineGeometry(b); ok {
			if f, err := geo.WKTToGeoJSON(wkt.MarshalString(geom)); err == nil {
				return Result{Value: wkt.MarshalString(geom), Feature: f}
			}
		}
	}

	var text string
	switch v := raw.(type) {
	case []byte:
		text = string(v)
	case string:
		text = v
	default:
		return Result{Value: raw}
	}

	f, err := geo.WKTToGeoJSON(text)
	if err != nil {
		return Result{Value: text}
	}
	return Result{Value: text, Feature: f}
}

func (d *Dispatcher) count(outcome string) {
	if d.metrics != nil {
		d.metrics.DispatchTotal.WithLabelValues(outcome).Inc()
	}
}

func arityText(desc Descriptor) string {
	switch {
	case desc.MaxArity == Variadic:
		return fmt.Sprintf("at least %d arguments", desc.MinArity)
	case desc.MinArity == desc.MaxArity:
		return fmt.Sprintf("%d arguments", desc.MinArity)
	}
	return fmt.Sprintf("%d to %d arguments", desc.MinArity, desc.MaxArity)
}
