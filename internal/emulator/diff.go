package emulator

import (
	"sort"

	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

// Diff lists one event per trigger node whose value differs between
// before and after, ordered by path.
func Diff(before, after tree.Node, patterns []string) []handlers.Event {
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range patterns {
		segs := tree.Split(pattern)
		for _, root := range []tree.Node{before, after} {
			expand(root, segs, "", func(p string) {
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			})
		}
	}
	sort.Strings(paths)

	var events []handlers.Event
	for _, p := range paths {
		b, _ := tree.Lookup(before, p)
		a, _ := tree.Lookup(after, p)
		if tree.Equal(b, a) {
			continue
		}
		events = append(events, handlers.Event{Path: p, Before: b, After: a})
	}
	return events
}

// expand calls fn with every path under n matching segs, "*" matching any
// key.
func expand(n tree.Node, segs []string, prefix string, fn func(string)) {
	if len(segs) == 0 {
		fn(prefix)
		return
	}
	if segs[0] != "*" {
		v, ok := n[segs[0]]
		switch {
		case !ok:
		case len(segs) == 1:
			fn(tree.Join(prefix, segs[0]))
		default:
			expand(tree.AsNode(v), segs[1:], tree.Join(prefix, segs[0]), fn)
		}
		return
	}
	for k, v := range n {
		if len(segs) == 1 {
			fn(tree.Join(prefix, k))
			continue
		}
		if child := tree.AsNode(v); child != nil {
			expand(child, segs[1:], tree.Join(prefix, k), fn)
		}
	}
}
