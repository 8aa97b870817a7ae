// Package topology segments lineage trees into generations and derives
// per-node features from the tree structure alone.
//
// A generation is the chain of spots of one cell between two boundaries:
// the root, a division or a leaf. Divisions close the generation they end
// and do not belong to the daughter generations that follow them.
package topology

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// Root lookup errors.
var (
	ErrNoRoot    = errors.New("graph has no root")
	ErrManyRoots = errors.New("graph has several roots")
)

// IsRoot reports whether n starts a lineage: no predecessor and at least one
// successor, or the only node of the graph.
func IsRoot(g *lineage.Graph, n lineage.NodeID) bool {
	if !g.HasNode(n) {
		return false
	}
	if g.NodeCount() == 1 {
		return true
	}
	return g.InDegree(n) == 0 && g.OutDegree(n) > 0
}

// IsLeaf reports whether n has a predecessor and no successor.
func IsLeaf(g *lineage.Graph, n lineage.NodeID) bool {
	return g.InDegree(n) > 0 && g.OutDegree(n) == 0
}

// IsDivision reports whether n splits into several daughters.
func IsDivision(g *lineage.Graph, n lineage.NodeID) bool {
	return g.InDegree(n) <= 1 && g.OutDegree(n) > 1
}

// Roots returns the roots of g in insertion order.
func Roots(g *lineage.Graph) []lineage.NodeID {
	return filter(g, IsRoot)
}

// Leaves returns the leaves of g in insertion order.
func Leaves(g *lineage.Graph) []lineage.NodeID {
	return filter(g, IsLeaf)
}

// Divisions returns the divisions of g in insertion order.
func Divisions(g *lineage.Graph) []lineage.NodeID {
	return filter(g, IsDivision)
}

// Root returns the unique root of a per-track graph.
func Root(g *lineage.Graph) (lineage.NodeID, error) {
	roots := Roots(g)
	switch len(roots) {
	case 0:
		return 0, ErrNoRoot
	case 1:
		return roots[0], nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrManyRoots, roots)
	}
}

func filter(g *lineage.Graph, pred func(*lineage.Graph, lineage.NodeID) bool) []lineage.NodeID {
	var out []lineage.NodeID
	for _, id := range g.NodeIDs() {
		if pred(g, id) {
			out = append(out, id)
		}
	}
	return out
}
