package geo

import "strings"

// GeometryKeywords are the leading WKT tokens accepted as canonical geometry text.
var GeometryKeywords = []string{
	"POINT",
	"LINESTRING",
	"POLYGON",
	"MULTIPOINT",
	"MULTILINESTRING",
	"MULTIPOLYGON",
	"GEOMETRYCOLLECTION",
}

// LooksLikeFeatureText is the cheap pre-filter applied to strings before any
// JSON decoding: the text must contain "{", "Feature" and "geometry".
// It is deliberately lossy. A true result says nothing about validity.
func LooksLikeFeatureText(s string) bool {
	return strings.Contains(s, "{") &&
		strings.Contains(s, "Feature") &&
		strings.Contains(s, "geometry")
}

// HasGeometryKeyword reports whether the trimmed text starts with one of the
// seven geometry keywords, ignoring case.
func HasGeometryKeyword(s string) bool {
	s = strings.TrimSpace(s)
	for _, kw := range GeometryKeywords {
		if len(s) >= len(kw) && strings.EqualFold(s[:len(kw)], kw) {
			return true
		}
	}
	return false
}
