// Package tree holds the value model shared by every pxflux package.
//
// The store is a single hierarchical key-value tree. Interior nodes are
// map[string]any, leaves are JSON scalars (string, bool, number). A nil
// value and an empty map both mean "absent": the tree never stores either.
//
// Paths are slash-separated keys without leading or trailing slashes
// ("accounts/a1/artworks/w1"). The empty path addresses the root.
//
// # Equality
//
// Two values are equal when their canonical JSON encodings are byte-identical
// (see MarshalCanonical). Canonical JSON sorts object keys by UTF-16 code
// units, NFC-normalizes strings and prints integral numbers without a
// fraction, so a value read back from the store compares equal to the value
// that was written regardless of how the numbers were decoded.
package tree
