// Package shadow mirrors geometry-valued metadata into per-type shadow tables
// with native spatial columns, so spatial queries can use a spatial index.
//
// The Synchronizer consumes mutation events from the primary metadata store.
// Added and updated values are normalized to canonical geometry text and
// upserted keyed by the source row id; deleted rows have their shadow rows
// removed. Values that are not geometries are ignored.
package shadow

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/geo"
	"github.com/canonica-labs/geometa/internal/metastore"
	"github.com/canonica-labs/geometa/internal/observability"
)

// Invalidator drops cached geometries of an object.
type Invalidator interface {
	Invalidate(ctx context.Context, t metastore.ObjectType, objectID int64)
}

// Config holds synchronizer dependencies. Fields and LatLng enable lat/lng
// pairing; Hooks, Invalidator, Events and Metrics are optional.
type Config struct {
	Store       *Store
	Fields      metastore.FieldReader
	LatLng      *Registry
	Hooks       *Hooks
	Invalidator Invalidator
	Logger      zerolog.Logger
	Events      observability.EventLogger
	Metrics     *observability.Metrics
}

// Synchronizer keeps the shadow tables in step with the primary store.
type Synchronizer struct {
	store       *Store
	hooks       *Hooks
	invalidator Invalidator
	logger      zerolog.Logger
	events      observability.EventLogger
	metrics     *observability.Metrics

	// lat/lng pairing runs before any registered hook.
	pairMutation MutationFilter
	pairPurge    PurgeFilter
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(cfg Config) *Synchronizer {
	s := &Synchronizer{
		store:       cfg.Store,
		hooks:       cfg.Hooks,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
	}
	if s.hooks == nil {
		s.hooks = NewHooks()
	}
	if s.events == nil {
		s.events = observability.NewNoopLogger()
	}
	if cfg.LatLng != nil && cfg.Fields != nil {
		s.pairMutation = LatLngMutationFilter(cfg.LatLng, cfg.Fields, cfg.Logger)
		s.pairPurge = LatLngPurgeFilter(cfg.LatLng, cfg.Fields, cfg.Logger)
	}
	return s
}

// Hooks returns the synchronizer's extension points.
func (s *Synchronizer) Hooks() *Hooks {
	return s.hooks
}

// OnMutation mirrors one mutation. Engine failures are reported in the
// Outcome and returned; values that are not geometries yield a skipped
// Outcome and no error.
func (s *Synchronizer) OnMutation(ctx context.Context, m Mutation) (Outcome, error) {
	if !m.ObjectType.IsValid() {
		err := errors.NewUnknownObjectType(string(m.ObjectType))
		return Outcome{Result: ResultFailed, Key: m.Key, Err: err}, err
	}

	start := time.Now()
	var out Outcome
	if err := m.Validate(); err != nil {
		out = Outcome{Result: ResultSkipped, Key: m.Key, Reason: err.Error()}
	} else if m.Action == Deleted {
		out = s.purge(ctx, m)
	} else {
		out = s.mirror(ctx, m)
	}

	s.record(ctx, m, out, time.Since(start))
	return out, out.Err
}

func (s *Synchronizer) mirror(ctx context.Context, m Mutation) Outcome {
	if s.pairMutation != nil {
		m = s.pairMutation(ctx, m, m.ObjectType)
	}
	return s.upsert(ctx, s.hooks.RewriteMutation(ctx, m))
}

// UpsertValue mirrors an added or updated mutation without running mutation
// filters. The backfill job uses it for rows already in the primary store.
func (s *Synchronizer) UpsertValue(ctx context.Context, m Mutation) (Outcome, error) {
	if !m.ObjectType.IsValid() {
		err := errors.NewUnknownObjectType(string(m.ObjectType))
		return Outcome{Result: ResultFailed, Key: m.Key, Err: err}, err
	}

	start := time.Now()
	var out Outcome
	if err := m.Validate(); err != nil {
		out = Outcome{Result: ResultSkipped, Key: m.Key, Reason: err.Error()}
	} else if m.Action == Deleted {
		out = Outcome{Result: ResultSkipped, Key: m.Key, Reason: "deleted mutations are not upserted"}
	} else {
		out = s.upsert(ctx, m)
	}
	s.record(ctx, m, out, time.Since(start))
	return out, out.Err
}

func (s *Synchronizer) upsert(ctx context.Context, m Mutation) Outcome {
	out := Outcome{Key: m.Key}
	if m.Key == "" {
		out.Result, out.Reason = ResultSkipped, "meta key removed by filter"
		return out
	}
	if len(m.MetaIDs) == 0 || m.MetaIDs[0] <= 0 {
		out.Result, out.Reason = ResultSkipped, "no source row id"
		return out
	}

	text, err := geo.GeoJSONToWKT(m.Value, true)
	if err != nil {
		out.Result, out.Reason = ResultSkipped, "not a geometry"
		return out
	}

	metaID := m.MetaIDs[0]
	out.WKT = text
	out.MetaIDs = []int64{metaID}
	n, err := s.store.Upsert(ctx, m.ObjectType, m.ObjectID, metaID, m.Key, text)
	if err != nil {
		out.Result, out.Err = ResultFailed, err
		return out
	}
	s.invalidate(ctx, m)

	out.Result, out.Affected = ResultUpserted, n
	return out
}

func (s *Synchronizer) purge(ctx context.Context, m Mutation) Outcome {
	ids := positiveIDs(m.MetaIDs)
	if s.pairPurge != nil {
		ids = s.pairPurge(ctx, ids, m.ObjectType, m.ObjectID, m.Key, m.Value)
	}
	ids = uniqueIDs(positiveIDs(s.hooks.RewritePurgeSet(ctx, ids, m)))

	out := Outcome{Key: m.Key, MetaIDs: ids}
	if len(ids) == 0 {
		out.Result, out.Reason = ResultSkipped, "no source row ids"
		return out
	}

	n, err := s.store.Delete(ctx, m.ObjectType, ids)
	if err != nil {
		out.Result, out.Err = ResultFailed, err
		return out
	}
	s.invalidate(ctx, m)

	out.Result, out.Affected = ResultDeleted, n
	return out
}

func (s *Synchronizer) invalidate(ctx context.Context, m Mutation) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, m.ObjectType, m.ObjectID)
	}
}

func (s *Synchronizer) record(ctx context.Context, m Mutation, out Outcome, elapsed time.Duration) {
	entry := observability.MutationLogEntry{
		Action:     string(m.Action),
		ObjectType: string(m.ObjectType),
		ObjectID:   m.ObjectID,
		MetaIDs:    out.MetaIDs,
		Key:        out.Key,
		Reason:     out.Reason,
		Duration:   elapsed,
	}
	switch out.Result {
	case ResultUpserted:
		entry.Outcome = observability.OutcomeUpserted
	case ResultDeleted:
		entry.Outcome = observability.OutcomeDeleted
	case ResultSkipped:
		entry.Outcome = observability.OutcomeSkipped
	default:
		entry.Outcome = observability.OutcomeFailed
		if out.Err != nil {
			entry.Error = out.Err.Error()
		}
	}
	if entry.Action == "" {
		entry.Action = "unknown"
	}
	if err := s.events.LogMutation(ctx, entry); err != nil {
		s.logger.Debug().Err(err).Msg("failed to log mutation")
	}

	if s.metrics != nil {
		s.metrics.MutationsTotal.WithLabelValues(string(m.ObjectType), string(out.Result)).Inc()
		if out.Mirrored() || out.Result == ResultFailed {
			s.metrics.MutationSeconds.WithLabelValues(string(m.Action)).Observe(elapsed.Seconds())
		}
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
