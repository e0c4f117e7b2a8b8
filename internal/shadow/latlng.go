package shadow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/canonica-labs/geometa/internal/metastore"
)

// Pair names two scalar fields that together form a point, and the key the
// point is mirrored under.
type Pair struct {
	Lat string `yaml:"lat"`
	Lng string `yaml:"lng"`
	Geo string `yaml:"geo"`
}

// DefaultPair is the Geodata convention, always registered.
var DefaultPair = Pair{Lat: "geo_latitude", Lng: "geo_longitude", Geo: "geo_"}

// Sibling returns the other half of the pair for key and whether key is the
// latitude.
func (p Pair) Sibling(key string) (sibling string, isLat bool) {
	if key == p.Lat {
		return p.Lng, true
	}
	return p.Lat, false
}

// Registry holds lat/lng pairs, indexed by either key. Pairs can only be
// added.
type Registry struct {
	mu    sync.RWMutex
	pairs []Pair
	index map[string]Pair
}

// NewRegistry creates a registry holding DefaultPair.
func NewRegistry() *Registry {
	r := &Registry{index: make(map[string]Pair)}
	_ = r.Register(DefaultPair)
	return r
}

// Register adds a pair. Keys already claimed by another pair are rejected.
func (r *Registry) Register(p Pair) error {
	p.Lat = strings.TrimSpace(p.Lat)
	p.Lng = strings.TrimSpace(p.Lng)
	p.Geo = strings.TrimSpace(p.Geo)
	if p.Lat == "" || p.Lng == "" || p.Geo == "" {
		return fmt.Errorf("lat/lng pair needs lat, lng and geo keys: %+v", p)
	}
	if p.Lat == p.Lng {
		return fmt.Errorf("lat/lng pair uses %q for both halves", p.Lat)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.index[p.Lat]; ok {
		if existing == p {
			return nil
		}
		return fmt.Errorf("key %q already belongs to pair %s/%s", p.Lat, existing.Lat, existing.Lng)
	}
	if existing, ok := r.index[p.Lng]; ok {
		return fmt.Errorf("key %q already belongs to pair %s/%s", p.Lng, existing.Lat, existing.Lng)
	}
	r.pairs = append(r.pairs, p)
	r.index[p.Lat] = p
	r.index[p.Lng] = p
	return nil
}

// Lookup returns the pair key belongs to.
func (r *Registry) Lookup(key string) (Pair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.index[key]
	return p, ok
}

// Pairs returns the pairs in registration order.
func (r *Registry) Pairs() []Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pair, len(r.pairs))
	copy(out, r.pairs)
	return out
}

// PointFeature builds a Point Feature from textual coordinates.
func PointFeature(lat, lng string) (*geojson.Feature, error) {
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", lat, err)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", lng, err)
	}
	return geojson.NewFeature(orb.Point{x, y}), nil
}

// LatLngMutationFilter pairs a saved latitude or longitude with its sibling.
// When the sibling is set, the mutation is rewritten to store a Point under
// the pair's geo key; otherwise it passes through unchanged.
func LatLngMutationFilter(registry *Registry, reader metastore.FieldReader, logger zerolog.Logger) MutationFilter {
	return func(ctx context.Context, m Mutation, t metastore.ObjectType) Mutation {
		pair, ok := registry.Lookup(m.Key)
		if !ok {
			return m
		}
		value, ok := scalarText(m.Value)
		if !ok || value == "" {
			return m
		}

		siblingKey, isLat := pair.Sibling(m.Key)
		sibling, found, err := reader.GetField(ctx, t, m.ObjectID, siblingKey)
		if err != nil {
			logger.Warn().Err(err).Str("meta_key", siblingKey).Int64("object_id", m.ObjectID).Msg("sibling lookup failed")
			return m
		}
		if !found || strings.TrimSpace(sibling) == "" {
			return m
		}

		lat, lng := sibling, value
		if isLat {
			lat, lng = value, sibling
		}
		feature, err := PointFeature(lat, lng)
		if err != nil {
			logger.Debug().Err(err).Str("meta_key", m.Key).Int64("object_id", m.ObjectID).Msg("lat/lng pair not numeric")
			return m
		}

		m.Key = pair.Geo
		m.Value = feature
		return m
	}
}

// LatLngPurgeFilter adds the sibling row of a deleted latitude or longitude,
// since either half may be the row the point was mirrored from. Only the
// first sibling row of the object is found.
func LatLngPurgeFilter(registry *Registry, reader metastore.FieldReader, logger zerolog.Logger) PurgeFilter {
	return func(ctx context.Context, ids []int64, t metastore.ObjectType, objectID int64, key string, value any) []int64 {
		pair, ok := registry.Lookup(key)
		if !ok {
			return ids
		}
		ids = positiveIDs(ids)
		if len(ids) == 0 {
			return ids
		}

		siblingKey, _ := pair.Sibling(key)
		id, found, err := reader.SiblingRowID(ctx, t, objectID, siblingKey)
		if err != nil {
			logger.Warn().Err(err).Str("meta_key", siblingKey).Int64("object_id", objectID).Msg("sibling lookup failed")
			return ids
		}
		if found {
			ids = append(ids, id)
		}
		return ids
	}
}

func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), true
	case []byte:
		return strings.TrimSpace(string(x)), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}

func positiveIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	return out
}
