package geo

import (
	"regexp"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONToWKT converts a GeoJSON-shaped value to canonical geometry text.
//
// With forceMulti the input is merged into one collection and reduced to a
// single geometry, then single points, lines and polygons are promoted to
// their MULTI form. The result always starts with MULTI or
// GEOMETRYCOLLECTION. Some storage engines reject a single geometry inside a
// column typed as a geometry collection.
//
// Values that are already geometry text are accepted as is (and promoted when
// forceMulti is set).
func GeoJSONToWKT(value any, forceMulti bool) (string, error) {
	if text, ok := asText(value); ok && IsGeometryText(text) {
		geom, _ := ParseWKT(text)
		if isEmpty(geom) {
			return "", ErrNotGeoJSON
		}
		if !forceMulti {
			return strings.TrimSpace(text), nil
		}
		return wkt.MarshalString(ForceMulti(geom)), nil
	}

	doc, err := ValueToGeoJSON(value)
	if err != nil {
		return "", err
	}

	var geom orb.Geometry
	if forceMulti {
		fc, err := MergeGeoJSON(doc)
		if err != nil {
			return "", err
		}
		geom = reduce(featureGeometries(fc.Features))
		if geom != nil {
			geom = ForceMulti(geom)
		}
	} else {
		geom = doc.Geometry()
	}

	if geom == nil || isEmpty(geom) {
		return "", ErrNotGeoJSON
	}
	text := wkt.MarshalString(geom)
	if _, err := ParseWKT(text); err != nil {
		return "", ErrNotGeoJSON
	}
	return text, nil
}

// isEmpty reports whether geom, or any part of it, has no coordinates.
// orb encodes these as EMPTY or "()", which engines reject in a NOT NULL
// geometry column.
func isEmpty(geom orb.Geometry) bool {
	switch g := geom.(type) {
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.Ring:
		return len(g) == 0
	case orb.MultiLineString:
		if len(g) == 0 {
			return true
		}
		for _, ls := range g {
			if len(ls) == 0 {
				return true
			}
		}
	case orb.Polygon:
		if len(g) == 0 {
			return true
		}
		for _, r := range g {
			if len(r) == 0 {
				return true
			}
		}
	case orb.MultiPolygon:
		if len(g) == 0 {
			return true
		}
		for _, p := range g {
			if isEmpty(p) {
				return true
			}
		}
	case orb.Collection:
		if len(g) == 0 {
			return true
		}
		for _, c := range g {
			if isEmpty(c) {
				return true
			}
		}
	}
	return false
}

// WKTToGeoJSON converts geometry text into a Feature with empty properties.
// Text that is already a GeoJSON Feature is decoded and returned.
func WKTToGeoJSON(text string) (*geojson.Feature, error) {
	if LooksLikeFeatureText(text) {
		if doc, err := ValueToGeoJSON(text); err == nil && doc.Feature != nil {
			return doc.Feature, nil
		}
	}

	geom, err := ParseWKT(text)
	if err != nil {
		return nil, err
	}
	return geojson.NewFeature(geom), nil
}

// ParseWKT parses geometry text whose first token is one of the seven
// geometry keywords, in any letter case.
func ParseWKT(text string) (orb.Geometry, error) {
	text = strings.TrimSpace(text)
	if !HasGeometryKeyword(text) {
		return nil, ErrNotWKT
	}
	geom, err := wkt.Unmarshal(wrapMultiPoints(strings.ToUpper(text)))
	if err != nil || geom == nil {
		return nil, ErrNotWKT
	}
	return geom, nil
}

// bareMultiPoint matches a MULTIPOINT written without parentheses around
// each point, as PostGIS prints it.
var bareMultiPoint = regexp.MustCompile(`MULTIPOINT\s*\(([^()]*)\)`)

func wrapMultiPoints(text string) string {
	return bareMultiPoint.ReplaceAllStringFunc(text, func(m string) string {
		body := bareMultiPoint.FindStringSubmatch(m)[1]
		points := strings.Split(body, ",")
		for i, p := range points {
			points[i] = "(" + strings.TrimSpace(p) + ")"
		}
		return "MULTIPOINT(" + strings.Join(points, ",") + ")"
	})
}

// IsGeometryText reports whether value is a string or byte slice holding
// parseable geometry text.
func IsGeometryText(value any) bool {
	text, ok := asText(value)
	if !ok {
		return false
	}
	_, err := ParseWKT(text)
	return err == nil
}

// ForceMulti promotes single points, lines and polygons to the matching MULTI
// type. Other geometries are returned unchanged.
func ForceMulti(geom orb.Geometry) orb.Geometry {
	switch g := geom.(type) {
	case orb.Point:
		return orb.MultiPoint{g}
	case orb.LineString:
		return orb.MultiLineString{g}
	case orb.Ring:
		return orb.MultiPolygon{orb.Polygon{g}}
	case orb.Polygon:
		return orb.MultiPolygon{g}
	case orb.Bound:
		return orb.MultiPolygon{g.ToPolygon()}
	default:
		return geom
	}
}

func featureGeometries(features []*geojson.Feature) []orb.Geometry {
	geoms := make([]orb.Geometry, 0, len(features))
	for _, f := range features {
		if f != nil && f.Geometry != nil {
			geoms = append(geoms, f.Geometry)
		}
	}
	return geoms
}

// reduce collapses a list of geometries into one. A single geometry is
// returned as is. Otherwise multi geometries and collections are flattened one
// level; a homogeneous list of points, lines or polygons becomes the matching
// MULTI type and anything else becomes a collection.
func reduce(geoms []orb.Geometry) orb.Geometry {
	switch len(geoms) {
	case 0:
		return nil
	case 1:
		return geoms[0]
	}

	var flat []orb.Geometry
	for _, g := range geoms {
		switch t := g.(type) {
		case orb.MultiPoint:
			for _, p := range t {
				flat = append(flat, p)
			}
		case orb.MultiLineString:
			for _, ls := range t {
				flat = append(flat, ls)
			}
		case orb.MultiPolygon:
			for _, p := range t {
				flat = append(flat, p)
			}
		case orb.Collection:
			flat = append(flat, t...)
		default:
			flat = append(flat, g)
		}
	}

	if len(flat) == 1 {
		return flat[0]
	}

	kind := flat[0].GeoJSONType()
	for _, g := range flat[1:] {
		if g.GeoJSONType() != kind {
			return orb.Collection(flat)
		}
	}

	switch kind {
	case "Point":
		mp := make(orb.MultiPoint, 0, len(flat))
		for _, g := range flat {
			mp = append(mp, g.(orb.Point))
		}
		return mp
	case "LineString":
		mls := make(orb.MultiLineString, 0, len(flat))
		for _, g := range flat {
			mls = append(mls, g.(orb.LineString))
		}
		return mls
	case "Polygon":
		mp := make(orb.MultiPolygon, 0, len(flat))
		for _, g := range flat {
			switch p := g.(type) {
			case orb.Polygon:
				mp = append(mp, p)
			case orb.Ring:
				mp = append(mp, orb.Polygon{p})
			case orb.Bound:
				mp = append(mp, p.ToPolygon())
			}
		}
		return mp
	default:
		return orb.Collection(flat)
	}
}

func asText(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
