package dispatch

import (
	"github.com/canonica-labs/geometa/internal/capabilities"
)

// Variadic marks a descriptor without an upper arity bound.
const Variadic = -1

// Descriptor describes how a spatial function is called.
type Descriptor struct {
	Name            string
	MinArity        int
	MaxArity        int
	ReturnsGeometry bool
}

// Accepts reports whether n arguments are within the descriptor's bounds.
func (d Descriptor) Accepts(n int) bool {
	if n < d.MinArity {
		return false
	}
	return d.MaxArity == Variadic || n <= d.MaxArity
}

func geometryFn(name string, minArity, maxArity int) Descriptor {
	return Descriptor{Name: name, MinArity: minArity, MaxArity: maxArity, ReturnsGeometry: true}
}

func scalarFn(name string, minArity, maxArity int) Descriptor {
	return Descriptor{Name: name, MinArity: minArity, MaxArity: maxArity}
}

var knownDescriptors = []Descriptor{
	scalarFn("ST_Area", 1, 1),
	scalarFn("ST_AsGeoJSON", 1, 3),
	scalarFn("ST_AsText", 1, 2),
	geometryFn("ST_Buffer", 2, 5),
	geometryFn("ST_Centroid", 1, 1),
	scalarFn("ST_Contains", 2, 2),
	geometryFn("ST_ConvexHull", 1, 1),
	scalarFn("ST_Crosses", 2, 2),
	geometryFn("ST_Difference", 2, 2),
	scalarFn("ST_Dimension", 1, 1),
	scalarFn("ST_Disjoint", 2, 2),
	scalarFn("ST_Distance", 2, 3),
	scalarFn("ST_Distance_Sphere", 2, 3),
	geometryFn("ST_EndPoint", 1, 1),
	geometryFn("ST_Envelope", 1, 1),
	scalarFn("ST_Equals", 2, 2),
	geometryFn("ST_GeometryN", 2, 2),
	scalarFn("ST_GeometryType", 1, 1),
	geometryFn("ST_Intersection", 2, 2),
	scalarFn("ST_Intersects", 2, 2),
	scalarFn("ST_IsEmpty", 1, 1),
	scalarFn("ST_IsValid", 1, 1),
	scalarFn("ST_Length", 1, 2),
	scalarFn("ST_NumGeometries", 1, 1),
	scalarFn("ST_NumPoints", 1, 1),
	scalarFn("ST_Overlaps", 2, 2),
	geometryFn("ST_PointN", 2, 2),
	geometryFn("ST_Simplify", 2, 2),
	scalarFn("ST_SRID", 1, 2),
	geometryFn("ST_StartPoint", 1, 1),
	geometryFn("ST_SymDifference", 2, 2),
	scalarFn("ST_Touches", 2, 2),
	geometryFn("ST_Union", 2, 2),
	scalarFn("ST_Within", 2, 2),
	scalarFn("ST_X", 1, 2),
	scalarFn("ST_Y", 1, 2),
	geometryFn("GM_buffer_point", 3, 3),
	scalarFn("GM_distance_point", 2, 2),
	geometryFn("GM_first_geometry", 1, 1),
	geometryFn("GM_point_bearing_distance", 3, 3),
}

// Table maps function names, case-insensitively, to descriptors.
type Table map[string]Descriptor

// NewTable builds a table for catalog. Names with a known signature get
// their descriptor; every other name gets a permissive one.
func NewTable(catalog []string) Table {
	known := make(map[string]Descriptor, len(knownDescriptors))
	for _, d := range knownDescriptors {
		known[capabilities.Normalize(d.Name)] = d
	}

	t := make(Table, len(catalog))
	for _, name := range catalog {
		key := capabilities.Normalize(name)
		if d, ok := known[key]; ok {
			t[key] = d
			continue
		}
		t[key] = permissive(name)
	}
	return t
}

// Register adds or replaces a descriptor.
func (t Table) Register(d Descriptor) {
	t[capabilities.Normalize(d.Name)] = d
}

// Lookup returns the descriptor for name, or a permissive one when the
// table does not know it.
func (t Table) Lookup(name string) Descriptor {
	if d, ok := t[capabilities.Normalize(name)]; ok {
		return d
	}
	return permissive(name)
}

func permissive(name string) Descriptor {
	return Descriptor{Name: name, MinArity: 1, MaxArity: Variadic}
}
