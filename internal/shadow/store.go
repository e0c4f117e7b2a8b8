package shadow

import (
	"context"
	"fmt"
	"strings"

	"github.com/canonica-labs/geometa/internal/adapters"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/metastore"
)

// DefaultSRID is the spatial reference of stored geometries.
const DefaultSRID = 4326

// Row is one shadow row with its geometry as text.
type Row struct {
	ID       int64
	ObjectID int64
	FKMetaID int64
	Key      string
	Geometry string
}

// Store writes and reads the shadow tables.
type Store struct {
	adapter adapters.EngineAdapter
	prefix  string
	srid    int
}

// NewStore creates a store for tables named with prefix. A zero srid means
// DefaultSRID.
func NewStore(adapter adapters.EngineAdapter, prefix string, srid int) *Store {
	if srid == 0 {
		srid = DefaultSRID
	}
	return &Store{adapter: adapter, prefix: prefix, srid: srid}
}

// Prefix returns the table prefix.
func (s *Store) Prefix() string {
	return s.prefix
}

// Upsert writes the geometry mirrored from source row metaID. There is at
// most one shadow row per source row.
func (s *Store) Upsert(ctx context.Context, t metastore.ObjectType, objectID, metaID int64, key, wkt string) (int64, error) {
	d := s.adapter.Dialect()
	geom := d.GeometryFromText(d.Param(4), s.srid)
	query := fmt.Sprintf("INSERT INTO %s (%s, fk_meta_id, meta_key, meta_value) VALUES (%s, %s) %s",
		t.ShadowTable(s.prefix), t.ObjectColumn(), d.Params(1, 3), geom,
		d.OnConflictUpdate("fk_meta_id", "meta_value", d.GeometryFromText(d.Param(5), s.srid)))

	args := []any{objectID, metaID, key, wkt}
	if d.UpsertRebindsValue() {
		args = append(args, wkt)
	}
	n, err := s.adapter.Exec(ctx, query, args...)
	if err != nil {
		return 0, errors.NewEngineQueryFailed(s.adapter.Name(), "upsert "+t.ShadowTable(s.prefix), err)
	}
	return n, nil
}

// Delete removes the shadow rows mirrored from ids.
func (s *Store) Delete(ctx context.Context, t metastore.ObjectType, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	d := s.adapter.Dialect()
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE fk_meta_id IN (%s)", t.ShadowTable(s.prefix), d.Params(1, len(ids)))
	n, err := s.adapter.Exec(ctx, query, args...)
	if err != nil {
		return 0, errors.NewEngineQueryFailed(s.adapter.Name(), "delete "+t.ShadowTable(s.prefix), err)
	}
	return n, nil
}

// Rows returns an object's shadow rows in id order.
func (s *Store) Rows(ctx context.Context, t metastore.ObjectType, objectID int64) ([]Row, error) {
	d := s.adapter.Dialect()
	id := t.IDColumn()
	query := fmt.Sprintf("SELECT %s, %s, fk_meta_id, meta_key, %s FROM %s WHERE %s = %s ORDER BY %s",
		id, t.ObjectColumn(), d.GeometryAsText("meta_value"), t.ShadowTable(s.prefix),
		t.ObjectColumn(), d.Param(1), id)

	result, err := s.adapter.Query(ctx, query, objectID)
	if err != nil {
		return nil, errors.NewEngineQueryFailed(s.adapter.Name(), "read "+t.ShadowTable(s.prefix), err)
	}
	rows := make([]Row, 0, result.RowCount)
	for _, r := range result.Rows {
		var row Row
		row.ID, _ = adapters.AsInt64(r[0])
		row.ObjectID, _ = adapters.AsInt64(r[1])
		row.FKMetaID, _ = adapters.AsInt64(r[2])
		row.Key, _ = adapters.AsString(r[3])
		text, _ := adapters.AsString(r[4])
		row.Geometry = strings.TrimSpace(text)
		rows = append(rows, row)
	}
	return rows, nil
}

// Count returns the number of shadow rows for an object type.
func (s *Store) Count(ctx context.Context, t metastore.ObjectType) (int64, error) {
	v, err := s.adapter.QueryValue(ctx, "SELECT COUNT(*) FROM "+t.ShadowTable(s.prefix))
	if err != nil {
		return 0, errors.NewEngineQueryFailed(s.adapter.Name(), "count "+t.ShadowTable(s.prefix), err)
	}
	n, _ := adapters.AsInt64(v)
	return n, nil
}
