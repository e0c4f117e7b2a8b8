package adapters

import (
	"fmt"
	"strings"
)

// Dialect names.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
	DuckDB   = "duckdb"
)

// Dialect describes the SQL differences between engines that geometa cares
// about: placeholders, geometry construction and extraction, upserts and the
// routine catalog.
type Dialect struct {
	// Name is one of MySQL, Postgres, SQLite or DuckDB.
	Name string

	// NumberedParams is true for engines that use $1, $2 placeholders.
	NumberedParams bool

	// RoutineQuery returns a count of user-defined functions matching one
	// bound name. Empty when the engine has no routine catalog.
	RoutineQuery string

	// SpatialTypes is false for engines that store geometry as text.
	SpatialTypes bool

	// SRIDPrefixedWKB is true when raw geometry results carry a 4-byte SRID
	// header in front of the WKB.
	SRIDPrefixedWKB bool

	// AxisOrderOption is appended to geometry conversions on engines that
	// would otherwise read geographic coordinates as lat-long.
	AxisOrderOption string
}

// Param returns the placeholder for the n-th (1-based) bound argument.
func (d Dialect) Param(n int) string {
	if d.NumberedParams {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Params returns count comma-separated placeholders starting at position
// start.
func (d Dialect) Params(start, count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Param(start + i)
	}
	return strings.Join(parts, ", ")
}

// GeometryFromText wraps a placeholder so the engine builds a geometry with
// the given SRID from WKT. Text-only engines store the WKT as is.
func (d Dialect) GeometryFromText(param string, srid int) string {
	if !d.SpatialTypes {
		return param
	}
	switch d.Name {
	case MySQL:
		return fmt.Sprintf("ST_GeomFromText(%s, %d, '%s')", param, srid, d.AxisOrderOption)
	case Postgres:
		return fmt.Sprintf("ST_GeomFromText(%s, %d)", param, srid)
	default:
		return fmt.Sprintf("ST_GeomFromText(%s)", param)
	}
}

// GeometryArg wraps a placeholder holding a WKT function argument. SRIDs are
// left to the engine default so that function results keep the caller's
// coordinates as given.
func (d Dialect) GeometryArg(param string) string {
	if !d.SpatialTypes {
		return param
	}
	return fmt.Sprintf("ST_GeomFromText(%s)", param)
}

// GeometryAsText extracts WKT from a geometry expression server-side.
func (d Dialect) GeometryAsText(expr string) string {
	if !d.SpatialTypes {
		return expr
	}
	if d.Name == MySQL && d.AxisOrderOption != "" {
		return fmt.Sprintf("ST_AsText(%s, '%s')", expr, d.AxisOrderOption)
	}
	return fmt.Sprintf("ST_AsText(%s)", expr)
}

// OnConflictUpdate returns the clause that turns an INSERT into an upsert on
// the unique conflict column, setting column on conflict. MySQL cannot refer
// to the proposed row, so it receives expr; the caller must bind expr's
// arguments again (see UpsertRebindsValue).
func (d Dialect) OnConflictUpdate(conflict, column, expr string) string {
	if d.Name == MySQL {
		return fmt.Sprintf("ON DUPLICATE KEY UPDATE %s=%s", column, expr)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s=excluded.%s", conflict, column, column)
}

// UpsertRebindsValue reports whether OnConflictUpdate's expr carries its own
// placeholders.
func (d Dialect) UpsertRebindsValue() bool {
	return d.Name == MySQL
}

// DialectFor returns the dialect for a driver name.
func DialectFor(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case MySQL:
		return Dialect{
			Name:            MySQL,
			RoutineQuery:    "SELECT COUNT(*) FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_SCHEMA = DATABASE() AND ROUTINE_TYPE = 'FUNCTION' AND UPPER(ROUTINE_NAME) = UPPER(?)",
			SpatialTypes:    true,
			SRIDPrefixedWKB: true,
			AxisOrderOption: "axis-order=long-lat",
		}, true
	case Postgres, "postgresql":
		return Dialect{
			Name:           Postgres,
			NumberedParams: true,
			RoutineQuery:   "SELECT COUNT(*) FROM pg_proc WHERE LOWER(proname) = LOWER($1)",
			SpatialTypes:   true,
		}, true
	case SQLite, "sqlite3":
		return Dialect{Name: SQLite}, true
	case DuckDB:
		return Dialect{
			Name:         DuckDB,
			RoutineQuery: "SELECT COUNT(*) FROM duckdb_functions() WHERE LOWER(function_name) = LOWER(?)",
			SpatialTypes: true,
		}, true
	}
	return Dialect{}, false
}
