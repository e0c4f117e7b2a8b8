package metastore

import (
	"context"
	"strings"
)

// Row is one primary metadata row.
type Row struct {
	MetaID   int64
	ObjectID int64
	Key      string
	Value    string
}

// LatLngRow joins a latitude row with its longitude sibling. MetaID is the
// latitude row's id.
type LatLngRow struct {
	MetaID   int64
	ObjectID int64
	Key      string
	Lat      string
	Lng      string
}

// FieldReader reads single fields of an object's metadata.
type FieldReader interface {
	// GetField returns the first value stored under key for the object.
	GetField(ctx context.Context, t ObjectType, objectID int64, key string) (value string, found bool, err error)

	// SiblingRowID returns the id of the first row stored under key for the
	// object.
	SiblingRowID(ctx context.Context, t ObjectType, objectID int64, key string) (id int64, found bool, err error)
}

// Scanner finds rows the shadow tables are missing.
type Scanner interface {
	// CandidatePage returns up to limit rows with an id above afterID, in id
	// order, whose value matches LikePatterns and which have no shadow row.
	CandidatePage(ctx context.Context, t ObjectType, afterID int64, limit int) ([]Row, error)

	// LatLngRows returns every latitude row under latKey with a non-empty
	// longitude sibling under lngKey on the same object.
	LatLngRows(ctx context.Context, t ObjectType, latKey, lngKey string) ([]LatLngRow, error)
}

// LikePatterns select values that may hold GeoJSON: a bare Feature or
// FeatureCollection object, or a JSON array wrapping one, with the type and
// geometry members in either order.
var LikePatterns = []string{
	"{%Feature%geometry%}%",
	"{%geometry%Feature%}%",
	"[%{%Feature%geometry%}%",
	"[%{%geometry%Feature%}%",
}

// MatchesBackfillPrefilter reports whether value matches any of
// LikePatterns, with the same semantics as SQL LIKE.
func MatchesBackfillPrefilter(value string) bool {
	for _, p := range LikePatterns {
		if likeMatch(p, value) {
			return true
		}
	}
	return false
}

// likeMatch matches s against a LIKE pattern that only uses %.
func likeMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "%")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := len(parts) - 1
	for _, part := range parts[1:last] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, parts[last])
}
