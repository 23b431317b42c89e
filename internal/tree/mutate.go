package tree

// Normalize returns a deep copy of v with nil leaves and empty maps
// dropped. The result is nil when nothing remains.
func Normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			if n := Normalize(elem); n != nil {
				out[k] = n
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Normalize(elem)
		}
		return out
	default:
		return v
	}
}

// SetIn places value at path inside root and returns the new root.
// An absent value removes the path. Ancestors left empty are pruned, and
// scalar ancestors are replaced by interior nodes. The root itself is
// mutated when it is non-nil.
func SetIn(root Node, path string, value any) Node {
	value = Normalize(value)
	segs := Split(path)
	if len(segs) == 0 {
		return AsNode(value)
	}
	if root == nil {
		if value == nil {
			return nil
		}
		root = Node{}
	}
	setIn(root, segs, value)
	if len(root) == 0 {
		return nil
	}
	return root
}

func setIn(n Node, segs []string, value any) {
	key := segs[0]
	if len(segs) == 1 {
		if value == nil {
			delete(n, key)
		} else {
			n[key] = value
		}
		return
	}
	child := AsNode(n[key])
	if child == nil {
		if value == nil {
			delete(n, key)
			return
		}
		child = Node{}
		n[key] = child
	}
	setIn(child, segs[1:], value)
	if len(child) == 0 {
		delete(n, key)
	}
}

// MergeIn sets each field of fields relative to path. Field names may
// themselves be multi-segment paths.
func MergeIn(root Node, path string, fields map[string]any) Node {
	for _, k := range SortedKeys(fields) {
		root = SetIn(root, Join(path, k), fields[k])
	}
	return root
}

// Flatten lists every leaf under v keyed by its path relative to prefix.
func Flatten(prefix string, v any) map[string]any {
	out := make(map[string]any)
	flatten(out, prefix, Normalize(v))
	return out
}

func flatten(out map[string]any, prefix string, v any) {
	n := AsNode(v)
	if n == nil {
		if v != nil {
			out[prefix] = v
		}
		return
	}
	for k, child := range n {
		flatten(out, Join(prefix, k), child)
	}
}
