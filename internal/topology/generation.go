package topology

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// Generation returns the chain of nodes of the cell that n belongs to,
// ordered from the root side to the leaf side.
//
// Walking back stops at the previous division, which is excluded, or at the
// root, which is included unless it divides. Walking forward stops at the
// next division or leaf, which is included. Any node met on the walk with
// more than one predecessor or successor is a structural violation.
// A node without predecessor starts its own generation and a node without
// successor ends it.
func Generation(g *lineage.Graph, n lineage.NodeID) ([]lineage.NodeID, error) {
	if !g.HasNode(n) {
		return nil, fmt.Errorf("node %d is not in graph", n)
	}

	var back []lineage.NodeID
	if !IsRoot(g, n) && g.InDegree(n) > 0 {
		pred, err := onlyParent(g, n)
		if err != nil {
			return nil, err
		}
		for !IsDivision(g, pred) && !IsRoot(g, pred) {
			back = append(back, pred)
			if pred, err = onlyParent(g, pred); err != nil {
				return nil, err
			}
		}
		if IsRoot(g, pred) && !IsDivision(g, pred) {
			back = append(back, pred)
		}
	}
	slices.Reverse(back)
	gen := append(back, n)

	if !IsDivision(g, n) && !IsLeaf(g, n) && g.OutDegree(n) > 0 {
		succ, err := onlyChild(g, n)
		if err != nil {
			return nil, err
		}
		for !IsDivision(g, succ) && !IsLeaf(g, succ) {
			gen = append(gen, succ)
			if succ, err = onlyChild(g, succ); err != nil {
				return nil, err
			}
		}
		gen = append(gen, succ)
	}
	return gen, nil
}

// Generations returns one generation per division of g, plus one per leaf
// when keepIncomplete is set. Generations starting at the root are dropped
// unless keepIncomplete is set, so by default only generations bounded by
// a division at both ends remain.
func Generations(g *lineage.Graph, keepIncomplete bool) ([][]lineage.NodeID, error) {
	var anchors []lineage.NodeID
	for _, id := range g.NodeIDs() {
		if IsDivision(g, id) || (keepIncomplete && IsLeaf(g, id)) {
			anchors = append(anchors, id)
		}
	}

	var out [][]lineage.NodeID
	for _, a := range anchors {
		gen, err := Generation(g, a)
		if err != nil {
			return nil, err
		}
		if !keepIncomplete && IsRoot(g, gen[0]) {
			continue
		}
		out = append(out, gen)
	}
	return out, nil
}

func onlyParent(g *lineage.Graph, n lineage.NodeID) (lineage.NodeID, error) {
	parents := g.Parents(n)
	if len(parents) != 1 {
		return 0, lineage.NewStructureError(g.Name(), n, "expected one predecessor, found %d", len(parents))
	}
	return parents[0], nil
}

func onlyChild(g *lineage.Graph, n lineage.NodeID) (lineage.NodeID, error) {
	children := g.Children(n)
	if len(children) != 1 {
		return 0, lineage.NewStructureError(g.Name(), n, "expected one successor, found %d", len(children))
	}
	return children[0], nil
}

// generationCache memoizes generations for a full pass over a graph.
type generationCache struct {
	g     *lineage.Graph
	gens  map[lineage.NodeID][]lineage.NodeID
	index map[lineage.NodeID]int
}

func newGenerationCache(g *lineage.Graph) *generationCache {
	return &generationCache{
		g:     g,
		gens:  make(map[lineage.NodeID][]lineage.NodeID),
		index: make(map[lineage.NodeID]int),
	}
}

// get returns the generation of n and the position of n in it.
// Members reached only by the forward walk are checked for merges before the
// generation is shared with them.
func (c *generationCache) get(n lineage.NodeID) ([]lineage.NodeID, int, error) {
	if gen, ok := c.gens[n]; ok {
		return gen, c.index[n], nil
	}
	gen, err := Generation(c.g, n)
	if err != nil {
		return nil, 0, err
	}
	for _, m := range gen {
		if d := c.g.InDegree(m); d > 1 {
			return nil, 0, lineage.NewStructureError(c.g.Name(), m, "expected one predecessor, found %d", d)
		}
	}
	for i, m := range gen {
		if _, ok := c.gens[m]; !ok {
			c.gens[m] = gen
			c.index[m] = i
		}
	}
	if _, ok := c.gens[n]; !ok {
		c.gens[n] = gen
		c.index[n] = slices.Index(gen, n)
	}
	return c.gens[n], c.index[n], nil
}
