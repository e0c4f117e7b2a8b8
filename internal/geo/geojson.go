// Package geo converts between GeoJSON documents and canonical geometry text
// (WKT), and recognizes engine-native binary geometry.
//
// Every entry point tolerates strings, raw JSON bytes, decoded maps and slices,
// arbitrary JSON-marshalable values and orb geojson types. Values that are not
// geospatial produce sentinel errors rather than panics; callers treat them as
// "not a geometry" and move on.
package geo

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrNotGeoJSON is returned when a value cannot be interpreted as a
	// Feature or FeatureCollection.
	ErrNotGeoJSON = errors.New("geo: value is not a GeoJSON feature or feature collection")

	// ErrNoFeatures is returned when merging produced an empty collection.
	ErrNoFeatures = errors.New("geo: no features to merge")

	// ErrNotWKT is returned when text is not recognizable geometry text.
	ErrNotWKT = errors.New("geo: value is not geometry text")
)

// Document is a normalized GeoJSON value: exactly one of Feature or
// Collection is set.
type Document struct {
	Feature    *geojson.Feature
	Collection *geojson.FeatureCollection
}

// IsCollection reports whether the document is a FeatureCollection.
func (d Document) IsCollection() bool {
	return d.Collection != nil
}

// Features returns the document's features in order.
func (d Document) Features() []*geojson.Feature {
	if d.Collection != nil {
		return d.Collection.Features
	}
	if d.Feature != nil {
		return []*geojson.Feature{d.Feature}
	}
	return nil
}

// Geometry returns the single geometry the document describes. A collection
// is reduced the same way force-multi reduces merged input.
func (d Document) Geometry() orb.Geometry {
	if d.Feature != nil {
		return d.Feature.Geometry
	}
	return reduce(featureGeometries(d.Features()))
}

// MarshalJSON encodes whichever shape the document holds.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.Collection != nil {
		return json.Marshal(d.Collection)
	}
	if d.Feature != nil {
		return json.Marshal(d.Feature)
	}
	return nil, ErrNotGeoJSON
}

// ValueToGeoJSON interprets value as a Feature or FeatureCollection.
//
// Strings and raw bytes must pass LooksLikeFeatureText before they are
// decoded. Decoded structures are re-serialized and validated again, so a map
// that merely resembles a feature is rejected. A JSON array of features is
// accepted and returned as a merged collection.
func ValueToGeoJSON(value any) (Document, error) {
	switch v := value.(type) {
	case nil:
		return Document{}, ErrNotGeoJSON
	case *geojson.Feature:
		if v == nil {
			return Document{}, ErrNotGeoJSON
		}
		return Document{Feature: v}, nil
	case geojson.Feature:
		return Document{Feature: &v}, nil
	case *geojson.FeatureCollection:
		if v == nil {
			return Document{}, ErrNotGeoJSON
		}
		return Document{Collection: v}, nil
	case geojson.FeatureCollection:
		return Document{Collection: &v}, nil
	case Document:
		if v.Feature == nil && v.Collection == nil {
			return Document{}, ErrNotGeoJSON
		}
		return v, nil
	case string:
		return decodeDocument([]byte(v))
	case []byte:
		return decodeDocument(v)
	case json.RawMessage:
		return decodeDocument(v)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Document{}, ErrNotGeoJSON
	}

	data, err := json.Marshal(value)
	if err != nil {
		return Document{}, ErrNotGeoJSON
	}
	return decodeDocument(data)
}

// IsGeoJSON reports whether value is a Feature or FeatureCollection. With
// stringOnly, non-string values are rejected without inspection.
func IsGeoJSON(value any, stringOnly bool) bool {
	if stringOnly {
		if _, ok := value.(string); !ok {
			return false
		}
	}
	_, err := ValueToGeoJSON(value)
	return err == nil
}

func decodeDocument(data []byte) (Document, error) {
	if !LooksLikeFeatureText(string(data)) {
		return Document{}, ErrNotGeoJSON
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, ErrNotGeoJSON
	}

	switch v := raw.(type) {
	case map[string]any:
		return documentFromMap(v)
	case []any:
		fc, err := MergeGeoJSON(v)
		if err != nil {
			return Document{}, ErrNotGeoJSON
		}
		return Document{Collection: fc}, nil
	default:
		return Document{}, ErrNotGeoJSON
	}
}

func documentFromMap(m map[string]any) (Document, error) {
	canon, ok := canonicalize(m).(map[string]any)
	if !ok {
		return Document{}, ErrNotGeoJSON
	}
	typ, _ := canon["type"].(string)

	data, err := json.Marshal(canon)
	if err != nil {
		return Document{}, ErrNotGeoJSON
	}
	if !validShape(data) {
		return Document{}, ErrNotGeoJSON
	}

	switch typ {
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Document{}, ErrNotGeoJSON
		}
		return Document{Feature: f}, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return Document{}, ErrNotGeoJSON
		}
		return Document{Collection: fc}, nil
	default:
		return Document{}, ErrNotGeoJSON
	}
}

// MergeGeoJSON combines any number of fragments into one FeatureCollection.
//
// Each fragment is decoded independently and its keys are compared without
// regard to case. A FeatureCollection contributes its features; a Feature
// contributes itself; fragments without a type are skipped. A fragment that
// does not decode to an object fails the whole merge. When the only argument
// is a slice whose elements carry no type of their own it is treated as the
// fragment list.
func MergeGeoJSON(fragments ...any) (*geojson.FeatureCollection, error) {
	if len(fragments) == 1 {
		if list, ok := fragments[0].([]any); ok {
			fragments = list
		}
	}

	var features []any
	for _, fragment := range fragments {
		m, err := fragmentToMap(fragment)
		if err != nil {
			return nil, err
		}
		m = lowerKeys(m)

		typ, ok := m["type"].(string)
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(typ, "FeatureCollection"):
			if list, ok := m["features"].([]any); ok {
				features = append(features, list...)
			}
		case strings.EqualFold(typ, "Feature"):
			features = append(features, m)
		}
	}

	if len(features) == 0 {
		return nil, ErrNoFeatures
	}

	fc := geojson.NewFeatureCollection()
	for _, raw := range features {
		fm, ok := raw.(map[string]any)
		if !ok {
			return nil, ErrNotGeoJSON
		}
		doc, err := documentFromMap(fm)
		if err != nil || doc.Feature == nil {
			return nil, ErrNotGeoJSON
		}
		fc.Append(doc.Feature)
	}
	return fc, nil
}

// fragmentToMap decodes one merge fragment into a generic object.
func fragmentToMap(fragment any) (map[string]any, error) {
	var data []byte
	switch v := fragment.(type) {
	case map[string]any:
		return v, nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case nil:
		return nil, ErrNotGeoJSON
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, ErrNotGeoJSON
		}
		data = b
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, ErrNotGeoJSON
	}
	return m, nil
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// geojsonKeys are the structural member names normalized by canonicalize.
// Anything under "properties" is left untouched.
var geojsonKeys = map[string]string{
	"type":        "type",
	"features":    "features",
	"geometry":    "geometry",
	"geometries":  "geometries",
	"coordinates": "coordinates",
	"properties":  "properties",
	"id":          "id",
	"bbox":        "bbox",
}

var geojsonTypes = map[string]string{
	"feature":            "Feature",
	"featurecollection":  "FeatureCollection",
	"point":              "Point",
	"multipoint":         "MultiPoint",
	"linestring":         "LineString",
	"multilinestring":    "MultiLineString",
	"polygon":            "Polygon",
	"multipolygon":       "MultiPolygon",
	"geometrycollection": "GeometryCollection",
}

// canonicalize rewrites structural keys and type names to their GeoJSON
// spelling so that case variants decode with the strict orb decoders.
func canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, known := geojsonKeys[strings.ToLower(k)]
			if !known {
				out[k] = val
				continue
			}
			switch key {
			case "type":
				if s, ok := val.(string); ok {
					if canon, ok := geojsonTypes[strings.ToLower(s)]; ok {
						val = canon
					}
				}
			case "properties", "coordinates", "id", "bbox":
			default:
				val = canonicalize(val)
			}
			out[key] = val
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = canonicalize(t[i])
		}
		return out
	default:
		return v
	}
}

// validShape checks the coordinates of an encoded Feature or
// FeatureCollection before orb decodes them. orb fills missing ordinates with
// zero, so [] and [1] would otherwise decode as real points.
func validShape(data []byte) bool {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}
	if doc["type"] == "FeatureCollection" {
		features, _ := doc["features"].([]any)
		for _, raw := range features {
			f, ok := raw.(map[string]any)
			if !ok || !validGeometry(f["geometry"]) {
				return false
			}
		}
		return true
	}
	return validGeometry(doc["geometry"])
}

// validGeometry accepts a null geometry, which callers treat as no geometry.
func validGeometry(raw any) bool {
	if raw == nil {
		return true
	}
	g, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	coords := g["coordinates"]
	switch g["type"] {
	case "Point":
		return isPosition(coords)
	case "MultiPoint":
		return isPositions(coords, 1)
	case "LineString":
		return isPositions(coords, 2)
	case "MultiLineString":
		return eachOf(coords, func(v any) bool { return isPositions(v, 2) })
	case "Polygon":
		return isRings(coords)
	case "MultiPolygon":
		return eachOf(coords, isRings)
	case "GeometryCollection":
		return eachOf(g["geometries"], func(v any) bool {
			return v != nil && validGeometry(v)
		})
	}
	return false
}

func isPosition(v any) bool {
	pos, ok := v.([]any)
	if !ok || len(pos) < 2 {
		return false
	}
	for _, n := range pos {
		if _, ok := n.(float64); !ok {
			return false
		}
	}
	return true
}

func isPositions(v any, min int) bool {
	list, ok := v.([]any)
	return ok && len(list) >= min && eachOf(list, isPosition)
}

// isRings requires closed-ring length, four positions, for every ring.
func isRings(v any) bool {
	return eachOf(v, func(r any) bool { return isPositions(r, 4) })
}

// eachOf reports whether v is a non-empty list whose elements all satisfy ok.
func eachOf(v any, ok func(any) bool) bool {
	list, isList := v.([]any)
	if !isList || len(list) == 0 {
		return false
	}
	for _, item := range list {
		if !ok(item) {
			return false
		}
	}
	return true
}
