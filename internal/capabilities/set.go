// Package capabilities discovers which spatial SQL functions the engine
// actually supports. Availability is established by experiment, cached in
// process and persisted in the settings store.
package capabilities

import (
	"sort"

	"golang.org/x/text/cases"
)

// Normalize folds a function name for case-insensitive comparison.
func Normalize(name string) string {
	return cases.Fold().String(name)
}

// Set is a set of function names keyed case-insensitively. It keeps the
// spelling each name was added with.
type Set map[string]string

// NewSet creates a new Set from a slice of names.
func NewSet(names []string) Set {
	set := make(Set, len(names))
	for _, n := range names {
		set.Add(n)
	}
	return set
}

// Has checks if the set contains name, ignoring case.
func (s Set) Has(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

// Add adds a name to the set. The first spelling added wins.
func (s Set) Add(name string) {
	key := Normalize(name)
	if _, ok := s[key]; !ok {
		s[key] = name
	}
}

// Len returns the number of names.
func (s Set) Len() int {
	return len(s)
}

// Names returns the sorted names, lowered when lower is true.
func (s Set) Names(lower bool) []string {
	result := make([]string, 0, len(s))
	for key, name := range s {
		if lower {
			result = append(result, key)
		} else {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}
