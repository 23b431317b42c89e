package tree

import (
	"errors"
	"slices"
	"unicode/utf16"
)

// ErrNotFound is wrapped by stores when a record that must exist is absent.
var ErrNotFound = errors.New("not found")

// Node is an interior tree value.
type Node = map[string]any

// Child is one entry returned when enumerating the children of a path.
type Child struct {
	Key   string
	Value any
}

// AsNode returns v as a Node, or nil when v is not an interior value.
func AsNode(v any) Node {
	n, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return n
}

// Has reports whether n carries a present (non-nil, non-empty) field.
func Has(n Node, field string) bool {
	v, ok := n[field]
	return ok && !IsAbsent(v)
}

// IsAbsent reports whether v is the tree's notion of "nothing here".
func IsAbsent(v any) bool {
	if v == nil {
		return true
	}
	if m, ok := v.(map[string]any); ok {
		return len(m) == 0
	}
	return false
}

// String returns the string field of n, or "" when missing or not a string.
func String(n Node, field string) string {
	s, _ := n[field].(string)
	return s
}

// Bool returns the boolean field of n. Missing and non-bool values are false.
func Bool(n Node, field string) bool {
	b, _ := n[field].(bool)
	return b
}

// Keys returns the sorted keys of the map stored under field.
// A missing or scalar field yields no keys.
func Keys(n Node, field string) []string {
	return SortedKeys(AsNode(n[field]))
}

// SortedKeys returns the keys of n in canonical (UTF-16 code unit) order.
func SortedKeys(n Node) []string {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Without returns a shallow copy of n with the given fields dropped.
func Without(n Node, fields ...string) Node {
	out := make(Node, len(n))
	for k, v := range n {
		if slices.Contains(fields, k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of v. Scalars are returned unchanged.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	default:
		return v
	}
}

// Lookup walks n along the given path and returns the value found there.
func Lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range Split(path) {
		n := AsNode(cur)
		if n == nil {
			return nil, false
		}
		next, ok := n[seg]
		if !ok {
			return nil, false
		}
		cur = next
	}
	if IsAbsent(cur) {
		return nil, false
	}
	return cur, true
}

// compareKeys orders strings by UTF-16 code units, matching RFC 8785.
// Go's native string comparison orders by UTF-8 bytes, which disagrees
// for characters outside the BMP.
func compareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
