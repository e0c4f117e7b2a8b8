// Package backfill mirrors geometry values that were stored before geometa
// was installed, or while it was inactive.
package backfill

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/canonica-labs/geometa/internal/metastore"
	"github.com/canonica-labs/geometa/internal/observability"
	"github.com/canonica-labs/geometa/internal/shadow"
)

// DefaultPageSize is the number of candidate rows read per query.
const DefaultPageSize = 100

// Config holds job dependencies.
type Config struct {
	Scanner metastore.Scanner
	Sync    *shadow.Synchronizer
	LatLng  *shadow.Registry

	// PageSize defaults to DefaultPageSize.
	PageSize int

	// PagesPerSecond limits how fast pages are read. Zero means no limit.
	PagesPerSecond float64

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// TypeReport counts the rows of one object type.
type TypeReport struct {
	Scanned  int `json:"scanned"`
	Mirrored int `json:"mirrored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Report summarizes a Populate run.
type Report struct {
	Types       map[metastore.ObjectType]*TypeReport `json:"types"`
	LatLngPairs int                                  `json:"latlng_pairs"`
	Duration    time.Duration                        `json:"duration"`
}

// Total sums the per-type counts.
func (r *Report) Total() TypeReport {
	var total TypeReport
	for _, t := range r.Types {
		total.Scanned += t.Scanned
		total.Mirrored += t.Mirrored
		total.Skipped += t.Skipped
		total.Failed += t.Failed
	}
	return total
}

// Job scans the primary store for unmirrored geometry values.
type Job struct {
	scanner  metastore.Scanner
	sync     *shadow.Synchronizer
	latlng   *shadow.Registry
	pageSize int
	limiter  *rate.Limiter
	logger   zerolog.Logger
	metrics  *observability.Metrics

	// mu serializes Populate runs; report belongs to the running one.
	mu     sync.Mutex
	report *Report
}

// NewJob creates a job and registers the lat/lng pass as a post-backfill
// hook on the synchronizer.
func NewJob(cfg Config) *Job {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	limit := rate.Inf
	if cfg.PagesPerSecond > 0 {
		limit = rate.Limit(cfg.PagesPerSecond)
	}

	j := &Job{
		scanner:  cfg.Scanner,
		sync:     cfg.Sync,
		latlng:   cfg.LatLng,
		pageSize: pageSize,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if j.latlng != nil {
		j.sync.Hooks().AddPostBackfillHook(j.populateLatLng)
	}
	return j
}

// Populate mirrors every candidate row of every object type, then runs the
// post-backfill hooks. Rows whose value does not convert are left alone; the
// cursor moves past them.
func (j *Job) Populate(ctx context.Context) (*Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	j.report = &Report{Types: make(map[metastore.ObjectType]*TypeReport)}
	report := j.report
	defer func() { report.Duration = time.Since(start) }()

	for _, t := range metastore.ObjectTypes() {
		tr := &TypeReport{}
		report.Types[t] = tr
		if err := j.populateType(ctx, t, tr); err != nil {
			return report, err
		}
		j.logger.Info().
			Str("object_type", string(t)).
			Int("scanned", tr.Scanned).
			Int("mirrored", tr.Mirrored).
			Int("failed", tr.Failed).
			Msg("backfill table done")
	}

	if err := j.sync.Hooks().RunPostBackfill(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (j *Job) populateType(ctx context.Context, t metastore.ObjectType, tr *TypeReport) error {
	var after int64
	for {
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}
		page, err := j.scanner.CandidatePage(ctx, t, after, j.pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		for _, row := range page {
			tr.Scanned++
			out, err := j.sync.UpsertValue(ctx, shadow.Mutation{
				Action:     shadow.Updated,
				ObjectType: t,
				MetaIDs:    []int64{row.MetaID},
				ObjectID:   row.ObjectID,
				Key:        row.Key,
				Value:      row.Value,
			})
			switch {
			case err != nil:
				tr.Failed++
				j.count(t, "failed")
			case out.Mirrored():
				tr.Mirrored++
				j.count(t, "mirrored")
			default:
				tr.Skipped++
				j.count(t, "skipped")
			}
			if row.MetaID > after {
				after = row.MetaID
			}
		}
	}
}

// populateLatLng mirrors every complete lat/lng pair under its geo key,
// keyed by the latitude row.
func (j *Job) populateLatLng(ctx context.Context) error {
	pairs := j.latlng.Pairs()
	for _, t := range metastore.ObjectTypes() {
		for _, pair := range pairs {
			rows, err := j.scanner.LatLngRows(ctx, t, pair.Lat, pair.Lng)
			if err != nil {
				return err
			}
			for _, row := range rows {
				feature, err := shadow.PointFeature(row.Lat, row.Lng)
				if err != nil {
					j.logger.Debug().Err(err).Int64("meta_id", row.MetaID).Msg("skipping lat/lng pair")
					continue
				}
				out, err := j.sync.OnMutation(ctx, shadow.Mutation{
					Action:     shadow.Updated,
					ObjectType: t,
					MetaIDs:    []int64{row.MetaID},
					ObjectID:   row.ObjectID,
					Key:        pair.Geo,
					Value:      feature,
				})
				if err == nil && out.Mirrored() && j.report != nil {
					j.report.LatLngPairs++
				}
			}
		}
	}
	return nil
}

func (j *Job) count(t metastore.ObjectType, result string) {
	if j.metrics != nil {
		j.metrics.BackfillRowsTotal.WithLabelValues(string(t), result).Inc()
	}
}
