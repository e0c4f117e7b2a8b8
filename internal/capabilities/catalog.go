package capabilities

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// referenceFunctions are the MySQL spatial functions, legacy and ST_
// spellings, plus the stored functions geometa installs.
var referenceFunctions = []string{
	"Area", "AsBinary", "AsText", "AsWKB", "AsWKT", "Boundary", "Buffer", "Centroid",
	"Contains", "ConvexHull", "Crosses", "Dimension", "Disjoint", "Distance", "EndPoint",
	"Envelope", "Equals", "ExteriorRing", "GeomCollFromText", "GeomCollFromWKB",
	"GeometryCollection", "GeometryCollectionFromText", "GeometryCollectionFromWKB",
	"GeometryFromText", "GeometryFromWKB", "GeometryN", "GeometryType", "GeomFromText",
	"GeomFromWKB", "GLength", "InteriorRingN", "Intersects", "IsClosed", "IsEmpty",
	"IsRing", "IsSimple", "LineFromText", "LineFromWKB", "LineString", "LineStringFromText",
	"LineStringFromWKB", "MBRContains", "MBRCoveredBy", "MBRDisjoint", "MBREqual",
	"MBREquals", "MBRIntersects", "MBROverlaps", "MBRTouches", "MBRWithin", "MLineFromText",
	"MLineFromWKB", "MPointFromText", "MPointFromWKB", "MPolyFromText", "MPolyFromWKB",
	"MultiLineString", "MultiLineStringFromText", "MultiLineStringFromWKB", "MultiPoint",
	"MultiPointFromText", "MultiPointFromWKB", "MultiPolygon", "MultiPolygonFromText",
	"MultiPolygonFromWKB", "NumGeometries", "NumInteriorRings", "NumPoints", "Overlaps",
	"Point", "PointFromText", "PointFromWKB", "PointOnSurface", "PointN", "PolyFromText",
	"PolyFromWKB", "Polygon", "PolygonFromText", "PolygonFromWKB", "SRID", "ST_Area",
	"ST_AsBinary", "ST_AsGeoJSON", "ST_AsText", "ST_AsWKB", "ST_AsWKT", "ST_Boundary",
	"ST_Buffer", "ST_Buffer_Strategy", "ST_Centroid", "ST_Contains", "ST_ConvexHull",
	"ST_Crosses", "ST_Difference", "ST_Dimension", "ST_Disjoint", "ST_Distance",
	"ST_Distance_Sphere", "ST_EndPoint", "ST_Envelope", "ST_Equals", "ST_ExteriorRing",
	"ST_GeoHash", "ST_GeomCollFromText", "ST_GeomCollFromWKB",
	"ST_GeometryCollectionFromText", "ST_GeometryCollectionFromWKB", "ST_GeometryFromText",
	"ST_GeometryFromWKB", "ST_GeometryN", "ST_GeometryType", "ST_GeomFromGeoJSON",
	"ST_GeomFromText", "ST_GeomFromWKB", "ST_InteriorRingN", "ST_Intersection",
	"ST_Intersects", "ST_IsClosed", "ST_IsEmpty", "ST_IsRing", "ST_IsSimple", "ST_IsValid",
	"ST_LatFromGeoHash", "ST_Length", "ST_LineFromText", "ST_LineFromWKB",
	"ST_LineStringFromText", "ST_LineStringFromWKB", "ST_LongFromGeoHash",
	"ST_NumGeometries", "ST_NumInteriorRings", "ST_NumPoints", "ST_Overlaps",
	"ST_PointFromGeoHash", "ST_PointFromText", "ST_PointFromWKB", "ST_PointOnSurface",
	"ST_PointN", "ST_PolyFromText", "ST_PolyFromWKB", "ST_PolygonFromText",
	"ST_PolygonFromWKB", "ST_Relate", "ST_Simplify", "ST_SRID", "ST_StartPoint",
	"ST_SymDifference", "ST_Touches", "ST_Union", "ST_Validate", "ST_Within", "ST_X",
	"ST_Y", "StartPoint", "Touches", "Within", "X", "Y",
	"GM_buffer_point", "GM_distance_point", "GM_first_geometry", "GM_point_bearing_distance",
}

// ReferenceFunctions returns a copy of the built-in catalog.
func ReferenceFunctions() []string {
	out := make([]string, len(referenceFunctions))
	copy(out, referenceFunctions)
	return out
}

// CatalogFilter adds to or rewrites the list of known function names.
type CatalogFilter func(names []string) []string

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be interpolated into SQL as a
// function name.
func ValidIdentifier(name string) bool {
	return identifier.MatchString(name)
}

// BuildCatalog applies filters to the reference list, then drops invalid
// identifiers and case-insensitive duplicates, keeping first spellings in
// order.
func BuildCatalog(filters ...CatalogFilter) []string {
	names := ReferenceFunctions()
	for _, f := range filters {
		if f != nil {
			names = f(names)
		}
	}

	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if !ValidIdentifier(n) {
			continue
		}
		key := Normalize(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// Fingerprint identifies a catalog independently of order and case.
func Fingerprint(names []string) string {
	folded := make([]string, len(names))
	for i, n := range names {
		folded[i] = Normalize(n)
	}
	sort.Strings(folded)
	sum := sha256.Sum256([]byte(strings.Join(folded, "\n")))
	return hex.EncodeToString(sum[:])
}
