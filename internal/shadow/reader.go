package shadow

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/cache"
	"github.com/canonica-labs/geometa/internal/geo"
	"github.com/canonica-labs/geometa/internal/metastore"
)

// Reader returns an object's mirrored geometries as Features, cached per
// object under the type's cache group.
type Reader struct {
	store  *Store
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewReader creates a reader. A nil cache disables caching.
func NewReader(store *Store, c *cache.Cache, logger zerolog.Logger) *Reader {
	return &Reader{store: store, cache: c, logger: logger}
}

// Geometries returns the object's shadow geometries in row order. Each
// Feature carries meta_key and meta_id properties naming its source row.
func (r *Reader) Geometries(ctx context.Context, t metastore.ObjectType, objectID int64) ([]*geojson.Feature, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(ctx, t.CacheGroup(), objectID); ok {
			if features, ok := v.([]*geojson.Feature); ok {
				return features, nil
			}
		}
	}

	rows, err := r.store.Rows(ctx, t, objectID)
	if err != nil {
		return nil, err
	}

	features := make([]*geojson.Feature, 0, len(rows))
	for _, row := range rows {
		f, err := geo.WKTToGeoJSON(row.Geometry)
		if err != nil {
			r.logger.Warn().Err(err).Int64("shadow_id", row.ID).Msg("unreadable shadow geometry")
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["meta_key"] = row.Key
		f.Properties["meta_id"] = row.FKMetaID
		features = append(features, f)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, t.CacheGroup(), objectID, features); err != nil {
			r.logger.Debug().Err(err).Msg("failed to cache geometries")
		}
	}
	return features, nil
}

// Invalidate drops the cached geometries of an object.
func (r *Reader) Invalidate(ctx context.Context, t metastore.ObjectType, objectID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, t.CacheGroup(), objectID); err != nil {
		r.logger.Debug().Err(err).Msg("failed to invalidate cached geometries")
	}
}

var _ Invalidator = (*Reader)(nil)
