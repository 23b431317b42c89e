package plan

import (
	"github.com/roach88/pxflux/internal/change"
	"github.com/roach88/pxflux/internal/tree"
)

// Refresh decides which related ids receive a back-reference update when
// the owning entity changes.
type Refresh int

const (
	// RefreshAll re-sends the display field to every current id on any
	// watched change.
	RefreshAll Refresh = iota
	// RefreshIncremental only touches added ids, unless the display field
	// itself changed.
	RefreshIncremental
)

// Relation is a map-valued field whose keys name entities of another
// collection in the same account. Each related entity carries a
// back-reference to the owner at
// accounts/{account}/{Field}/{relatedID}/{owner collection}/{ownerID}.
type Relation struct {
	Field   string
	Refresh Refresh
}

// Rule is the fixed synchronization rule set of one publishable entity kind.
type Rule struct {
	// Collection is both the account-scoped collection name and the
	// top-level public mirror collection.
	Collection string
	// Display is the field copied into back-references.
	Display string
	// Watched fields; a write touching none of them plans nothing.
	Watched   []string
	Relations []Relation
}

// Rules for the publishable kinds.
var (
	Artwork = Rule{
		Collection: "artworks",
		Display:    "title",
		Watched:    []string{"published", "url", "title", "description", "year", "vimeoId", "artists", "shows", "controls"},
		Relations: []Relation{
			{Field: "artists", Refresh: RefreshAll},
			{Field: "shows", Refresh: RefreshAll},
		},
	}
	Artist = Rule{
		Collection: "artists",
		Display:    "fullName",
		Watched:    []string{"published", "fullName", "image", "artworks"},
		Relations: []Relation{
			{Field: "artworks", Refresh: RefreshAll},
		},
	}
	Show = Rule{
		Collection: "shows",
		Display:    "title",
		Watched:    []string{"published", "title", "image", "places"},
		Relations: []Relation{
			{Field: "artworks", Refresh: RefreshIncremental},
			{Field: "places", Refresh: RefreshIncremental},
		},
	}
	Place = Rule{
		Collection: "places",
		Display:    "title",
		Watched:    []string{"published", "title", "image"},
		Relations: []Relation{
			{Field: "shows", Refresh: RefreshAll},
		},
	}
)

// Rules lists every publishable kind.
var Rules = []Rule{Artwork, Artist, Show, Place}

// RuleFor returns the rule for an account-scoped collection name.
func RuleFor(collection string) (Rule, bool) {
	for _, r := range Rules {
		if r.Collection == collection {
			return r, true
		}
	}
	return Rule{}, false
}

// Scope carries the path parameters of an entity event.
type Scope struct {
	AccountID string
	ID        string
}

// SourcePath is where the entity itself lives.
func (r Rule) SourcePath(s Scope) string {
	return tree.Join("accounts", s.AccountID, r.Collection, s.ID)
}

// MirrorPath is the public copy of the entity.
func (r Rule) MirrorPath(s Scope) string {
	return tree.Join(r.Collection, s.ID)
}

// BackrefPath is the owner's entry inside a related entity.
func (r Rule) BackrefPath(s Scope, rel Relation, relatedID string) string {
	return tree.Join("accounts", s.AccountID, rel.Field, relatedID, r.Collection, s.ID)
}

// Mirror is the payload of the public copy: the entity without its
// publication flag.
func Mirror(entity tree.Node) tree.Node {
	return tree.Without(entity, "published")
}

// EntityWritten plans the fan-out of a create or update. A nil after means
// the entity is gone; use EntityDeleted for that.
func EntityWritten(r Rule, s Scope, before, after tree.Node) Plan {
	var p Plan
	if after == nil {
		return p
	}
	changed := change.Detect(before, after, r.Watched...)
	if !changed.Any() {
		return p
	}

	switch {
	case tree.Bool(after, "published"):
		p.Add(SetOp(r.MirrorPath(s), Mirror(after)))
	case tree.Bool(before, "published"):
		p.Add(RemoveOp(r.MirrorPath(s)))
	}

	displayChanged := change.Changed(r.Display, before, after)
	backref := Backref(r, after)
	for _, rel := range r.Relations {
		keys := change.DiffKeys(rel.Field, before, after)
		refresh := keys.Added
		if rel.Refresh == RefreshAll || displayChanged {
			refresh = keys.Current
		}
		for _, id := range refresh {
			p.Add(UpdateOp(r.BackrefPath(s, rel, id), backref))
		}
		for _, id := range keys.Removed {
			p.Add(RemoveOp(r.BackrefPath(s, rel, id)))
		}
	}
	return p
}

// EntityDeleted plans the cascade after an entity is removed.
func EntityDeleted(r Rule, s Scope, before tree.Node) Plan {
	var p Plan
	if uri := StorageURI(before); uri != "" {
		p.Add(DeleteBlobOp(uri))
	}
	if tree.Bool(before, "published") {
		p.Add(RemoveOp(r.MirrorPath(s)))
	}
	for _, rel := range r.Relations {
		for _, id := range tree.Keys(before, rel.Field) {
			p.Add(RemoveOp(r.BackrefPath(s, rel, id)))
		}
	}
	return p
}

// Backref is the cached display payload stored in related entities. A
// missing display field is sent as "" so the back-reference still exists.
func Backref(r Rule, entity tree.Node) tree.Node {
	v, ok := entity[r.Display]
	if !ok || v == nil {
		v = ""
	}
	return tree.Node{r.Display: v}
}

// StorageURI returns the attached image location, if any.
func StorageURI(entity tree.Node) string {
	return tree.String(tree.AsNode(entity["image"]), "storageUri")
}
