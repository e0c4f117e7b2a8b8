package metastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
)

// SQLStore reads the meta tables through an engine adapter.
type SQLStore struct {
	adapter adapters.EngineAdapter
	prefix  string
}

// NewSQLStore creates a store over tables named with prefix.
func NewSQLStore(adapter adapters.EngineAdapter, prefix string) *SQLStore {
	return &SQLStore{adapter: adapter, prefix: prefix}
}

// GetField returns the first value stored under key for the object.
func (s *SQLStore) GetField(ctx context.Context, t ObjectType, objectID int64, key string) (string, bool, error) {
	d := s.adapter.Dialect()
	v, err := s.adapter.QueryValue(ctx, fmt.Sprintf(
		"SELECT meta_value FROM %s WHERE %s = %s AND meta_key = %s ORDER BY %s LIMIT 1",
		t.MetaTable(s.prefix), t.ObjectColumn(), d.Param(1), d.Param(2), t.IDColumn()),
		objectID, key)
	if err != nil {
		if adapters.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, errors.NewEngineQueryFailed(s.adapter.Name(), "read "+key, err)
	}
	value, ok := adapters.AsString(v)
	return value, ok, nil
}

// SiblingRowID returns the id of the first row stored under key for the
// object.
func (s *SQLStore) SiblingRowID(ctx context.Context, t ObjectType, objectID int64, key string) (int64, bool, error) {
	d := s.adapter.Dialect()
	v, err := s.adapter.QueryValue(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = %s AND meta_key = %s ORDER BY %s LIMIT 1",
		t.IDColumn(), t.MetaTable(s.prefix), t.ObjectColumn(), d.Param(1), d.Param(2), t.IDColumn()),
		objectID, key)
	if err != nil {
		if adapters.IsNoRows(err) {
			return 0, false, nil
		}
		return 0, false, errors.NewEngineQueryFailed(s.adapter.Name(), "find "+key, err)
	}
	id, ok := adapters.AsInt64(v)
	return id, ok, nil
}

// CandidatePage returns the next page of unmirrored GeoJSON-looking rows.
func (s *SQLStore) CandidatePage(ctx context.Context, t ObjectType, afterID int64, limit int) ([]Row, error) {
	d := s.adapter.Dialect()
	id := t.IDColumn()

	likes := make([]string, len(LikePatterns))
	args := make([]any, 0, len(LikePatterns)+1)
	for i, p := range LikePatterns {
		likes[i] = "m.meta_value LIKE " + d.Param(i+1)
		args = append(args, p)
	}
	args = append(args, afterID)

	query := fmt.Sprintf(`SELECT m.%[1]s, m.%[2]s, m.meta_key, m.meta_value
FROM %[3]s m
LEFT JOIN %[4]s g ON g.fk_meta_id = m.%[1]s
WHERE (%[5]s) AND g.fk_meta_id IS NULL AND m.%[1]s > %[6]s
ORDER BY m.%[1]s
LIMIT %[7]d`,
		id, t.ObjectColumn(), t.MetaTable(s.prefix), t.ShadowTable(s.prefix),
		strings.Join(likes, " OR "), d.Param(len(LikePatterns)+1), limit)

	result, err := s.adapter.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewEngineQueryFailed(s.adapter.Name(), "scan "+t.MetaTable(s.prefix), err)
	}

	rows := make([]Row, 0, result.RowCount)
	for _, r := range result.Rows {
		metaID, _ := adapters.AsInt64(r[0])
		objectID, _ := adapters.AsInt64(r[1])
		key, _ := adapters.AsString(r[2])
		value, _ := adapters.AsString(r[3])
		rows = append(rows, Row{MetaID: metaID, ObjectID: objectID, Key: key, Value: value})
	}
	return rows, nil
}

// LatLngRows joins latitude rows with their longitude siblings.
func (s *SQLStore) LatLngRows(ctx context.Context, t ObjectType, latKey, lngKey string) ([]LatLngRow, error) {
	d := s.adapter.Dialect()
	table := t.MetaTable(s.prefix)
	obj := t.ObjectColumn()

	query := fmt.Sprintf(`SELECT lat.%[1]s, lat.%[2]s, lat.meta_value, lng.meta_value
FROM %[3]s lat
JOIN %[3]s lng ON lng.%[2]s = lat.%[2]s AND lng.meta_key = %[4]s
WHERE lat.meta_key = %[5]s AND COALESCE(lat.meta_value, '') <> '' AND COALESCE(lng.meta_value, '') <> ''
ORDER BY lat.%[1]s`,
		t.IDColumn(), obj, table, d.Param(1), d.Param(2))

	result, err := s.adapter.Query(ctx, query, lngKey, latKey)
	if err != nil {
		return nil, errors.NewEngineQueryFailed(s.adapter.Name(), "join "+latKey+"/"+lngKey, err)
	}

	rows := make([]LatLngRow, 0, result.RowCount)
	for _, r := range result.Rows {
		metaID, _ := adapters.AsInt64(r[0])
		objectID, _ := adapters.AsInt64(r[1])
		lat, _ := adapters.AsString(r[2])
		lng, _ := adapters.AsString(r[3])
		rows = append(rows, LatLngRow{MetaID: metaID, ObjectID: objectID, Key: latKey, Lat: lat, Lng: lng})
	}
	return rows, nil
}

var (
	_ FieldReader = (*SQLStore)(nil)
	_ Scanner     = (*SQLStore)(nil)
)
