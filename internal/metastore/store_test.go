package metastore

import (
	"context"
	"testing"
)

func TestMatchesBackfillPrefilter(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]}}`, true},
		{`{"geometry":{"type":"Point","coordinates":[1,2]},"type":"Feature"}`, true},
		{`[{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]}}]`, true},
		{`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null}]}`, true},
		{`hello world`, false},
		{`42`, false},
		{` {"type":"Feature","geometry":{}}`, false},
		{`{"type":"Feature"}`, false},
		{`POINT(1 2)`, false},
		{``, false},
	}

	for _, tt := range tests {
		if got := MatchesBackfillPrefilter(tt.value); got != tt.want {
			t.Errorf("MatchesBackfillPrefilter(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestObjectType_Tables(t *testing.T) {
	if got := Post.MetaTable("wp_"); got != "wp_postmeta" {
		t.Errorf("expected wp_postmeta, got %s", got)
	}
	if got := User.ShadowTable("wp_"); got != "wp_usermeta_geo" {
		t.Errorf("expected wp_usermeta_geo, got %s", got)
	}
	if User.IDColumn() != "umeta_id" || Term.IDColumn() != "meta_id" {
		t.Error("unexpected id columns")
	}
	if Comment.ObjectColumn() != "comment_id" {
		t.Errorf("expected comment_id, got %s", Comment.ObjectColumn())
	}
	if Post.CacheGroup() != "post_metageo" {
		t.Errorf("expected post_metageo, got %s", Post.CacheGroup())
	}
}

func TestParseObjectType(t *testing.T) {
	got, err := ParseObjectType(" POST ")
	if err != nil || got != Post {
		t.Fatalf("expected post, got %q, %v", got, err)
	}
	if _, err := ParseObjectType("widget"); err == nil {
		t.Fatal("expected error for unknown object type")
	}
}

func TestMockReader(t *testing.T) {
	ctx := context.Background()
	m := NewMockReader()
	lat := m.Add(Post, 10, "geo_latitude", "45.5")
	m.Add(Post, 10, "geo_longitude", "-122.6")
	feature := m.Add(Post, 11, "area", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]}}`)
	m.Add(Post, 12, "title", "hello world")

	v, found, err := m.GetField(ctx, Post, 10, "geo_longitude")
	if err != nil || !found || v != "-122.6" {
		t.Fatalf("expected -122.6, got %q found=%v err=%v", v, found, err)
	}
	id, found, _ := m.SiblingRowID(ctx, Post, 10, "geo_latitude")
	if !found || id != lat {
		t.Errorf("expected sibling %d, got %d", lat, id)
	}

	page, _ := m.CandidatePage(ctx, Post, 0, 10)
	if len(page) != 1 || page[0].MetaID != feature {
		t.Fatalf("expected only the feature row, got %+v", page)
	}
	m.MarkMirrored(Post, feature)
	if page, _ := m.CandidatePage(ctx, Post, 0, 10); len(page) != 0 {
		t.Errorf("expected mirrored rows to be hidden, got %+v", page)
	}

	rows, _ := m.LatLngRows(ctx, Post, "geo_latitude", "geo_longitude")
	if len(rows) != 1 || rows[0].MetaID != lat || rows[0].Lng != "-122.6" {
		t.Errorf("unexpected lat/lng rows %+v", rows)
	}

	m.SetFailure(true)
	if _, _, err := m.GetField(ctx, Post, 10, "geo_latitude"); err == nil {
		t.Error("expected failure")
	}
}
