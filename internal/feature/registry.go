package feature

import (
	"fmt"
	"strings"
)

// Category scopes a declaration to nodes, edges or tracks.
type Category int

// Declaration categories, in document order.
const (
	Node Category = iota
	Edge
	Track
)

// Categories lists every category in document order.
var Categories = []Category{Node, Edge, Track}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Node:
		return "node"
	case Edge:
		return "edge"
	case Track:
		return "track"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Element returns the document element holding declarations of c.
func (c Category) Element() string {
	switch c {
	case Node:
		return "SpotFeatures"
	case Edge:
		return "EdgeFeatures"
	case Track:
		return "TrackFeatures"
	default:
		return ""
	}
}

// CategoryForElement maps a declaration block element to its category.
func CategoryForElement(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Element() == name {
			return c, true
		}
	}
	return 0, false
}

// Declaration describes one known attribute.
type Declaration struct {
	Feature   string
	Name      string
	ShortName string
	Dimension string
	// IsInt is the raw integer flag text; see Integer.
	IsInt string
}

// Integer parses the integer flag. Anything but a case-insensitive
// true or false is an ErrIntFlag.
func (d Declaration) Integer() (bool, error) {
	switch strings.ToLower(d.IsInt) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: feature %s has isint %q", ErrIntFlag, d.Feature, d.IsInt)
	}
}

// Registry holds feature declarations per category, in declaration order.
// One registry belongs to one forest; graphs of that forest share it.
type Registry struct {
	order [3][]string
	decls [3]map[string]Declaration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.decls {
		r.decls[i] = make(map[string]Declaration)
	}
	return r
}

// Declare adds d under c, replacing an existing declaration with the same
// identifier in place.
func (r *Registry) Declare(c Category, d Declaration) {
	if _, ok := r.decls[c][d.Feature]; !ok {
		r.order[c] = append(r.order[c], d.Feature)
	}
	r.decls[c][d.Feature] = d
}

// Lookup returns the declaration of feature under c.
func (r *Registry) Lookup(c Category, feature string) (Declaration, bool) {
	if r == nil {
		return Declaration{}, false
	}
	d, ok := r.decls[c][feature]
	return d, ok
}

// Declarations returns the declarations of c in declaration order.
func (r *Registry) Declarations(c Category) []Declaration {
	if r == nil {
		return nil
	}
	out := make([]Declaration, 0, len(r.order[c]))
	for _, f := range r.order[c] {
		out = append(out, r.decls[c][f])
	}
	return out
}

// Len returns the number of declarations across categories.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, o := range r.order {
		n += len(o)
	}
	return n
}

// Clone returns a deep copy of r.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for _, cat := range Categories {
		for _, d := range r.Declarations(cat) {
			c.Declare(cat, d)
		}
	}
	return c
}

// Equal reports whether both registries hold the same declarations in the
// same order for every category.
func (r *Registry) Equal(o *Registry) bool {
	if r == o {
		return true
	}
	for _, c := range Categories {
		a, b := r.Declarations(c), o.Declarations(c)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
	}
	return true
}
