// Package change detects which watched fields differ between two snapshots
// of the same entity.
package change

import (
	"slices"

	"github.com/roach88/pxflux/internal/tree"
)

// Changed reports whether field differs between before and after.
//
// A field present on only one side always counts as changed. A field present
// on both sides is changed when the values are not deeply equal. Absent
// snapshots (nil) are treated as empty.
func Changed(field string, before, after tree.Node) bool {
	bv, inBefore := before[field]
	av, inAfter := after[field]
	switch {
	case !inBefore && !inAfter:
		return false
	case inBefore != inAfter:
		return true
	default:
		return !tree.Equal(bv, av)
	}
}

// Set is the changed-fields view of one event, computed once and queried by
// name.
type Set struct {
	fields []string
}

// Detect evaluates Changed for every watched field.
func Detect(before, after tree.Node, watched ...string) Set {
	var s Set
	for _, f := range watched {
		if Changed(f, before, after) {
			s.fields = append(s.fields, f)
		}
	}
	return s
}

// Has reports whether the named field changed.
func (s Set) Has(field string) bool {
	return slices.Contains(s.fields, field)
}

// HasAny reports whether any of the named fields changed.
func (s Set) HasAny(fields ...string) bool {
	for _, f := range fields {
		if s.Has(f) {
			return true
		}
	}
	return false
}

// Any reports whether at least one watched field changed.
func (s Set) Any() bool {
	return len(s.fields) > 0
}

// Fields returns the changed fields in watch order.
func (s Set) Fields() []string {
	return slices.Clone(s.fields)
}

// Keys splits the keys of a relation map into those added and removed
// between before and after, plus the keys present after the change.
// added and removed are disjoint.
type Keys struct {
	Added   []string
	Removed []string
	Current []string
}

// DiffKeys compares the map-valued field of two snapshots.
func DiffKeys(field string, before, after tree.Node) Keys {
	prev := tree.Keys(before, field)
	cur := tree.Keys(after, field)

	var k Keys
	k.Current = cur
	for _, id := range cur {
		if !slices.Contains(prev, id) {
			k.Added = append(k.Added, id)
		}
	}
	for _, id := range prev {
		if !slices.Contains(cur, id) {
			k.Removed = append(k.Removed, id)
		}
	}
	return k
}
