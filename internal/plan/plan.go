package plan

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/pxflux/internal/tree"
)

// Kind is the store mutation an Operation performs.
type Kind int

const (
	// Set replaces the value at Path with Payload.
	Set Kind = iota
	// Update merges the fields of Payload into the node at Path.
	Update
	// Remove deletes Path. Removing an absent path succeeds.
	Remove
	// DeleteBlob deletes the stored object named by URI.
	DeleteBlob
)

func (k Kind) String() string {
	switch k {
	case Set:
		return "set"
	case Update:
		return "update"
	case Remove:
		return "remove"
	case DeleteBlob:
		return "delete-blob"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operation is one abstract write in a Plan.
type Operation struct {
	Kind    Kind
	Path    string
	Payload any
	URI     string

	// Critical operations abort the whole plan on failure. Everything else
	// is best-effort and self-heals on the next relevant write.
	Critical bool
}

// Target identifies what the operation touches. Two operations in one plan
// never share a target.
func (op Operation) Target() string {
	if op.Kind == DeleteBlob {
		return "blob:" + op.URI
	}
	return op.Path
}

func (op Operation) String() string {
	if op.Kind == DeleteBlob {
		return fmt.Sprintf("%s %s", op.Kind, op.URI)
	}
	return fmt.Sprintf("%s %s", op.Kind, op.Path)
}

// SetOp replaces path with payload.
func SetOp(path string, payload any) Operation {
	return Operation{Kind: Set, Path: path, Payload: payload}
}

// UpdateOp merges fields into path.
func UpdateOp(path string, fields tree.Node) Operation {
	return Operation{Kind: Update, Path: path, Payload: fields}
}

// RemoveOp deletes path.
func RemoveOp(path string) Operation {
	return Operation{Kind: Remove, Path: path}
}

// DeleteBlobOp deletes the object at uri.
func DeleteBlobOp(uri string) Operation {
	return Operation{Kind: DeleteBlob, URI: uri}
}

// Plan is the set of operations computed for one change event.
type Plan struct {
	Ops []Operation
}

// Add appends operations. A later operation on a target already in the
// plan replaces the earlier one, so a plan never holds two writes to the
// same location.
func (p *Plan) Add(ops ...Operation) {
	for _, op := range ops {
		if i := p.index(op.Target()); i >= 0 {
			p.Ops[i] = op
			continue
		}
		p.Ops = append(p.Ops, op)
	}
}

// Critical marks every operation in the plan as critical.
func (p *Plan) Critical() *Plan {
	for i := range p.Ops {
		p.Ops[i].Critical = true
	}
	return p
}

// Len returns the number of operations.
func (p Plan) Len() int {
	return len(p.Ops)
}

// Empty reports whether the plan has nothing to do.
func (p Plan) Empty() bool {
	return len(p.Ops) == 0
}

// Find returns the operation targeting path, if any.
func (p Plan) Find(path string) (Operation, bool) {
	if i := p.index(path); i >= 0 {
		return p.Ops[i], true
	}
	return Operation{}, false
}

func (p Plan) index(target string) int {
	return slices.IndexFunc(p.Ops, func(op Operation) bool { return op.Target() == target })
}

// Validate checks that targets are unique and that no tree operation sits
// inside the subtree of another. Overlapping writes would make the result
// depend on execution order.
func (p Plan) Validate() error {
	seen := make(map[string]struct{}, len(p.Ops))
	var paths []string
	for _, op := range p.Ops {
		t := op.Target()
		if _, dup := seen[t]; dup {
			return fmt.Errorf("duplicate target %q", t)
		}
		seen[t] = struct{}{}
		if op.Kind == DeleteBlob {
			if op.URI == "" {
				return fmt.Errorf("delete-blob without uri")
			}
			continue
		}
		if op.Path == "" {
			return fmt.Errorf("%s on root path", op.Kind)
		}
		for _, other := range paths {
			if tree.Overlaps(other, op.Path) {
				return fmt.Errorf("overlapping targets %q and %q", other, op.Path)
			}
		}
		paths = append(paths, op.Path)
	}
	return nil
}

// Sorted returns the operations ordered by target, for stable display.
func (p Plan) Sorted() []Operation {
	out := slices.Clone(p.Ops)
	slices.SortFunc(out, func(a, b Operation) int {
		return strings.Compare(a.Target(), b.Target())
	})
	return out
}

// Merge combines plans into one. Later plans win on shared targets.
func Merge(plans ...Plan) Plan {
	var out Plan
	for _, p := range plans {
		out.Add(p.Ops...)
	}
	return out
}
