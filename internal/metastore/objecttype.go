// Package metastore is the port to the primary key/value metadata store:
// one meta table per object type holding (row id, object id, key, value)
// rows. geometa only reads it; mutations arrive as events.
package metastore

import (
	"strings"

	"github.com/canonica-labs/geometa/internal/errors"
)

// ObjectType names a kind of object that owns metadata rows.
type ObjectType string

const (
	Comment ObjectType = "comment"
	Post    ObjectType = "post"
	Term    ObjectType = "term"
	User    ObjectType = "user"
)

// ObjectTypes returns every object type in processing order.
func ObjectTypes() []ObjectType {
	return []ObjectType{Comment, Post, Term, User}
}

// IsValid checks if the object type is known.
func (t ObjectType) IsValid() bool {
	for _, valid := range ObjectTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// ParseObjectType parses a case-insensitive object type name.
func ParseObjectType(s string) (ObjectType, error) {
	t := ObjectType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", errors.NewUnknownObjectType(s)
	}
	return t, nil
}

// String returns the string representation of the object type.
func (t ObjectType) String() string {
	return string(t)
}

// MetaTable returns the primary meta table, e.g. wp_postmeta.
func (t ObjectType) MetaTable(prefix string) string {
	return prefix + string(t) + "meta"
}

// ShadowTable returns the spatial shadow table, e.g. wp_postmeta_geo.
func (t ObjectType) ShadowTable(prefix string) string {
	return t.MetaTable(prefix) + "_geo"
}

// IDColumn is the primary key of both the meta and the shadow table.
func (t ObjectType) IDColumn() string {
	if t == User {
		return "umeta_id"
	}
	return "meta_id"
}

// ObjectColumn is the column holding the owning object's id.
func (t ObjectType) ObjectColumn() string {
	return string(t) + "_id"
}

// CacheGroup is the cache namespace for an object's decoded geometries.
func (t ObjectType) CacheGroup() string {
	return string(t) + "_metageo"
}
