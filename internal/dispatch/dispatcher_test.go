package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/capabilities"
	geoerrors "github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/observability"
)

type staticCaps map[string]bool

func (c staticCaps) Has(ctx context.Context, name string) (bool, error) {
	return c[capabilities.Normalize(name)], nil
}

// recordingAdapter records the last query and answers with a fixed value.
type recordingAdapter struct {
	dialect adapters.Dialect
	result  any
	err     error
	query   string
	args    []any
	calls   int
}

func newRecordingAdapter(t *testing.T, dialect string, result any) *recordingAdapter {
	t.Helper()
	d, ok := adapters.DialectFor(dialect)
	require.True(t, ok)
	return &recordingAdapter{dialect: d, result: result}
}

func (a *recordingAdapter) Name() string               { return a.dialect.Name }
func (a *recordingAdapter) Dialect() adapters.Dialect  { return a.dialect }
func (a *recordingAdapter) SuppressErrors(bool) bool   { return false }
func (a *recordingAdapter) Ping(context.Context) error { return nil }
func (a *recordingAdapter) Close() error               { return nil }

func (a *recordingAdapter) CheckHealth(context.Context) error { return nil }

func (a *recordingAdapter) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, nil
}

func (a *recordingAdapter) Query(ctx context.Context, query string, args ...any) (*adapters.QueryResult, error) {
	return nil, nil
}

func (a *recordingAdapter) QueryValue(ctx context.Context, query string, args ...any) (any, error) {
	a.calls++
	a.query = query
	a.args = args
	return a.result, a.err
}

var _ adapters.EngineAdapter = (*recordingAdapter)(nil)

func newTestDispatcher(a adapters.EngineAdapter, available ...string) *Dispatcher {
	caps := staticCaps{}
	for _, n := range available {
		caps[capabilities.Normalize(n)] = true
	}
	return New(Config{
		Adapter:      a,
		Capabilities: caps,
		Logger:       zerolog.Nop(),
		Metrics:      observability.NewMetrics(nil),
	})
}

// engineValue builds an SRID-prefixed WKB value as MySQL returns it.
func engineValue(t *testing.T, srid uint32, geom orb.Geometry) []byte {
	t.Helper()
	body, err := wkb.Marshal(geom)
	require.NoError(t, err)
	header := []byte{byte(srid), byte(srid >> 8), byte(srid >> 16), byte(srid >> 24)}
	return append(header, body...)
}

func TestInvoke_Preconditions(t *testing.T) {
	ctx := context.Background()
	a := newRecordingAdapter(t, adapters.MySQL, nil)
	d := newTestDispatcher(a, "ST_Buffer")

	_, err := d.Invoke(ctx, "ST_Union", "POINT(1 2)", "POINT(3 4)")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = d.Invoke(ctx, "ST_Buffer")
	assert.ErrorIs(t, err, ErrNoArguments)

	_, err = d.Invoke(ctx, "ST_Buffer", "POINT(1 2)")
	assert.ErrorIs(t, err, ErrArity)

	_, err = d.Invoke(ctx, "ST_Buffer); DROP TABLE x; --", "POINT(1 2)")
	var invalid *geoerrors.ErrInvalidFunctionName
	assert.ErrorAs(t, err, &invalid)

	assert.Zero(t, a.calls, "rejected calls must not reach the engine")
}

func TestInvoke_CaseInsensitiveName(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, []byte("12.5"))
	d := newTestDispatcher(a, "ST_Area")

	res, err := d.Invoke(context.Background(), "st_area", "POLYGON((0 0,1 0,1 1,0 0))")
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.False(t, res.IsGeometry())
	assert.Equal(t, "12.5", res.Value)
}

func TestInvoke_MySQLArguments(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, engineValue(t, 0, orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	d := newTestDispatcher(a, "ST_Buffer")

	feature := `{"type":"Feature","geometry":{"type":"Point","coordinates":[-122.6,45.5]},"properties":{}}`
	res, err := d.Invoke(context.Background(), "ST_Buffer", feature, 10)
	require.NoError(t, err)

	assert.Equal(t, "SELECT ST_Buffer(ST_GeomFromText(?), ?)", a.query)
	require.Len(t, a.args, 2)
	assert.Equal(t, "POINT(-122.6 45.5)", a.args[0])
	assert.Equal(t, 10, a.args[1])

	require.True(t, res.IsGeometry())
	assert.Equal(t, "Polygon", res.Feature.Geometry.GeoJSONType())
}

func TestInvoke_DecodesEngineGeometry(t *testing.T) {
	tests := []struct {
		name string
		srid uint32
		geom orb.Geometry
		want string
	}{
		{"point srid 0", 0, orb.Point{1, 2}, "Point"},
		{"point srid 4326", 4326, orb.Point{-122.6, 45.5}, "Point"},
		{"linestring", 4326, orb.LineString{{0, 0}, {1, 1}}, "LineString"},
		{"multipolygon", 0, orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}}, "MultiPolygon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newRecordingAdapter(t, adapters.MySQL, engineValue(t, tt.srid, tt.geom))
			d := newTestDispatcher(a, "GM_first_geometry")

			res, err := d.Invoke(context.Background(), "GM_first_geometry", "POINT(1 2)")
			require.NoError(t, err)
			require.True(t, res.IsGeometry())
			assert.Equal(t, tt.want, res.Feature.Geometry.GeoJSONType())
		})
	}
}

func TestInvoke_PostgresWrapsGeometryResults(t *testing.T) {
	a := newRecordingAdapter(t, adapters.Postgres, "POLYGON((0 0,1 0,1 1,0 0))")
	d := newTestDispatcher(a, "ST_Buffer", "ST_Distance")

	res, err := d.Invoke(context.Background(), "ST_Buffer", "POINT(1 2)", 1.5)
	require.NoError(t, err)
	assert.Equal(t, "SELECT ST_AsText(ST_Buffer(ST_GeomFromText($1), $2))", a.query)
	assert.True(t, res.IsGeometry())

	a.result = 3.25
	res, err = d.Invoke(context.Background(), "ST_Distance", "POINT(1 2)", "POINT(3 4)")
	require.NoError(t, err)
	assert.Equal(t, "SELECT ST_Distance(ST_GeomFromText($1), ST_GeomFromText($2))", a.query)
	assert.False(t, res.IsGeometry())
	assert.Equal(t, 3.25, res.Value)
}

func TestInvoke_RawTextWhenNotGeometry(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, []byte("Point"))
	d := newTestDispatcher(a, "ST_GeometryType")

	res, err := d.Invoke(context.Background(), "ST_GeometryType", "POINT(1 2)")
	require.NoError(t, err)
	assert.False(t, res.IsGeometry())
	assert.Equal(t, "Point", res.Value)
}

func TestInvoke_NonGeometryArgumentsAreScalars(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, int64(1))
	d := newTestDispatcher(a, "custom_fn")

	_, err := d.Invoke(context.Background(), "custom_fn", "hello world", 42)
	require.NoError(t, err)
	assert.Equal(t, "SELECT custom_fn(?, ?)", a.query)
	assert.Equal(t, []any{"hello world", 42}, a.args)
}

func TestInvoke_MalformedGeometryArgumentIsScalar(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, int64(1))
	d := newTestDispatcher(a, "custom_fn")

	broken := `{"type":"Feature","geometry":{"type":"Point","coordinates":[]},"properties":{}}`
	_, err := d.Invoke(context.Background(), "custom_fn", broken, []byte("LINESTRING(0 0,1 1)"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT custom_fn(?, ST_GeomFromText(?))", a.query)
	assert.Equal(t, []any{broken, "LINESTRING(0 0,1 1)"}, a.args)
}

func TestInvoke_EngineFailure(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, nil)
	a.err = errors.New("Error 3037 (22023): Invalid GIS data")
	d := newTestDispatcher(a, "ST_Area")

	_, err := d.Invoke(context.Background(), "ST_Area", "POINT(1 2)")
	require.Error(t, err)
	assert.Equal(t, geoerrors.CodeEngine, geoerrors.CodeOf(err))
}

func TestInvoke_NoRows(t *testing.T) {
	a := newRecordingAdapter(t, adapters.MySQL, nil)
	a.err = sql.ErrNoRows
	d := newTestDispatcher(a, "ST_Area")

	res, err := d.Invoke(context.Background(), "ST_Area", "POINT(1 2)")
	require.NoError(t, err)
	assert.Nil(t, res.Value)
}

func TestTable(t *testing.T) {
	table := NewTable([]string{"ST_Buffer", "my_func"})

	assert.True(t, table.Lookup("st_buffer").ReturnsGeometry)
	assert.False(t, table.Lookup("ST_Buffer").Accepts(1))
	assert.True(t, table.Lookup("ST_Buffer").Accepts(2))

	custom := table.Lookup("MY_FUNC")
	assert.Equal(t, Variadic, custom.MaxArity)
	assert.True(t, custom.Accepts(7))
	assert.False(t, custom.Accepts(0))

	table.Register(Descriptor{Name: "my_func", MinArity: 2, MaxArity: 2, ReturnsGeometry: true})
	assert.False(t, table.Lookup("my_func").Accepts(1))
}
