package lineage

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/tmlineage/internal/feature"
)

// NodeID identifies a spot. IDs are unique within a forest.
type NodeID int64

// Node is one spot: a cell observed in one frame.
type Node struct {
	ID NodeID
	// Frame is the time index of the spot.
	Frame int64
	Attrs *feature.Attributes

	track    int64
	hasTrack bool
}

// Track returns the track the node was linked into, if any.
func (n *Node) Track() (int64, bool) {
	return n.track, n.hasTrack
}

// SetTrack records track membership. Only edge construction calls it.
func (n *Node) SetTrack(id int64) {
	n.track = id
	n.hasTrack = true
}

// Edge links a source spot to a target spot in a later frame.
type Edge struct {
	Source NodeID
	Target NodeID
	Attrs  *feature.Attributes
}

type edgeKey struct {
	source, target NodeID
}

// Graph is a directed lineage graph. Nodes and edges keep insertion order.
type Graph struct {
	Model *Model
	// Merged marks a graph holding every track of its document. It is named
	// by its document alone, even with a single track.
	Merged bool

	tracks    []*Track
	nodes     map[NodeID]*Node
	order     []NodeID
	edges     []*Edge
	edgeIndex map[edgeKey]int
	children  map[NodeID][]NodeID // parent -> children
	parents   map[NodeID][]NodeID // child -> parents
}

// NewGraph creates an empty graph bound to model. A nil model gets a fresh one.
func NewGraph(model *Model) *Graph {
	if model == nil {
		model = NewModel()
	}
	return &Graph{
		Model:     model,
		nodes:     make(map[NodeID]*Node),
		edgeIndex: make(map[edgeKey]int),
		children:  make(map[NodeID][]NodeID),
		parents:   make(map[NodeID][]NodeID),
	}
}

// AddNode inserts a node, or replaces the frame and attributes of an
// existing one. Track membership of an existing node is kept.
func (g *Graph) AddNode(id NodeID, frame int64, attrs *feature.Attributes) *Node {
	if attrs == nil {
		attrs = feature.NewAttributes()
	}
	if n, exists := g.nodes[id]; exists {
		n.Frame = frame
		n.Attrs = attrs
		return n
	}
	n := &Node{ID: id, Frame: frame, Attrs: attrs}
	g.insert(n)
	return n
}

func (g *Graph) insert(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	g.children[n.ID] = []NodeID{}
	g.parents[n.ID] = []NodeID{}
}

// AddEdge links source to target. Re-adding an existing link replaces its
// attributes and keeps its position.
func (g *Graph) AddEdge(source, target NodeID, attrs *feature.Attributes) error {
	if _, exists := g.nodes[source]; !exists {
		return fmt.Errorf("source node %d does not exist", source)
	}
	if _, exists := g.nodes[target]; !exists {
		return fmt.Errorf("target node %d does not exist", target)
	}
	if source == target {
		return fmt.Errorf("self-loop detected: %d", source)
	}
	if attrs == nil {
		attrs = feature.NewAttributes()
	}

	key := edgeKey{source, target}
	if i, exists := g.edgeIndex[key]; exists {
		g.edges[i].Attrs = attrs
		return nil
	}
	g.edgeIndex[key] = len(g.edges)
	g.edges = append(g.edges, &Edge{Source: source, Target: target, Attrs: attrs})
	g.children[source] = append(g.children[source], target)
	g.parents[target] = append(g.parents[target], source)
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, exists := g.nodes[id]
	return n, exists
}

// HasNode reports whether id is in the graph.
func (g *Graph) HasNode(id NodeID) bool {
	_, exists := g.nodes[id]
	return exists
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeIDs returns all node IDs in insertion order.
func (g *Graph) NodeIDs() []NodeID {
	out := make([]NodeID, len(g.order))
	copy(out, g.order)
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Edge returns the edge from source to target.
func (g *Graph) Edge(source, target NodeID) (*Edge, bool) {
	i, exists := g.edgeIndex[edgeKey{source, target}]
	if !exists {
		return nil, false
	}
	return g.edges[i], true
}

// Parents returns the predecessors of a node.
func (g *Graph) Parents(id NodeID) []NodeID {
	return g.parents[id]
}

// Children returns the successors of a node.
func (g *Graph) Children(id NodeID) []NodeID {
	return g.children[id]
}

// InDegree returns the number of predecessors of a node.
func (g *Graph) InDegree(id NodeID) int { return len(g.parents[id]) }

// OutDegree returns the number of successors of a node.
func (g *Graph) OutDegree(id NodeID) int { return len(g.children[id]) }

// Degree returns the total degree of a node.
func (g *Graph) Degree(id NodeID) int { return g.InDegree(id) + g.OutDegree(id) }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Ancestors returns every strict ancestor of a node, nearest first.
func (g *Graph) Ancestors(id NodeID) []NodeID {
	seen := map[NodeID]bool{id: true}
	var out []NodeID
	queue := append([]NodeID(nil), g.parents[id]...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		queue = append(queue, g.parents[p]...)
	}
	return out
}

// RemoveNodes deletes nodes and their incident edges. Unknown IDs are ignored.
func (g *Graph) RemoveNodes(ids []NodeID) {
	drop := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			drop[id] = true
		}
	}
	if len(drop) == 0 {
		return
	}

	order := g.order[:0]
	for _, id := range g.order {
		if drop[id] {
			delete(g.nodes, id)
			delete(g.children, id)
			delete(g.parents, id)
			continue
		}
		order = append(order, id)
	}
	g.order = order

	edges := g.edges[:0]
	g.edgeIndex = make(map[edgeKey]int, len(g.edges))
	for _, e := range g.edges {
		if drop[e.Source] || drop[e.Target] {
			continue
		}
		g.edgeIndex[edgeKey{e.Source, e.Target}] = len(edges)
		edges = append(edges, e)
	}
	g.edges = edges

	for id := range g.nodes {
		g.children[id] = without(g.children[id], drop)
		g.parents[id] = without(g.parents[id], drop)
	}
}

// WeaklyConnectedComponents groups nodes linked by edges in either direction.
// Components are ordered by their first node in insertion order and list
// their members in insertion order.
func (g *Graph) WeaklyConnectedComponents() [][]NodeID {
	comp := make(map[NodeID]int, len(g.nodes))
	var sizes []int
	for _, start := range g.order {
		if _, done := comp[start]; done {
			continue
		}
		c := len(sizes)
		sizes = append(sizes, 0)
		stack := []NodeID{start}
		comp[start] = c
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			sizes[c]++
			for _, next := range g.children[id] {
				if _, done := comp[next]; !done {
					comp[next] = c
					stack = append(stack, next)
				}
			}
			for _, next := range g.parents[id] {
				if _, done := comp[next]; !done {
					comp[next] = c
					stack = append(stack, next)
				}
			}
		}
	}

	out := make([][]NodeID, len(sizes))
	for i, n := range sizes {
		out[i] = make([]NodeID, 0, n)
	}
	for _, id := range g.order {
		out[comp[id]] = append(out[comp[id]], id)
	}
	return out
}

// Subgraph returns a graph with the given nodes and the edges between them.
// Nodes are shared with g, edge order is preserved and the model is shared.
func (g *Graph) Subgraph(nodeIDs []NodeID) *Graph {
	sub := NewGraph(g.Model)
	nodeSet := make(map[NodeID]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		if n, exists := g.nodes[id]; exists && !nodeSet[id] {
			nodeSet[id] = true
			sub.insert(n)
		}
	}
	for _, e := range g.edges {
		if nodeSet[e.Source] && nodeSet[e.Target] {
			_ = sub.AddEdge(e.Source, e.Target, e.Attrs)
		}
	}
	return sub
}

// AddTrack attaches track metadata to the graph.
func (g *Graph) AddTrack(t *Track) {
	g.tracks = append(g.tracks, t)
}

// Tracks returns the tracks carried by the graph in attachment order.
func (g *Graph) Tracks() []*Track {
	return g.tracks
}

// Track returns the track of a per-track graph.
func (g *Graph) Track() (*Track, bool) {
	if g.Merged || len(g.tracks) != 1 {
		return nil, false
	}
	return g.tracks[0], true
}

// Name identifies the graph in messages: its track name for a per-track
// graph, the node ID for a single node, empty otherwise. A merged graph has
// no name.
func (g *Graph) Name() string {
	if g.Merged {
		return ""
	}
	if t, ok := g.Track(); ok {
		return t.Name()
	}
	if len(g.order) == 1 {
		return strconv.FormatInt(int64(g.order[0]), 10)
	}
	return ""
}

func without(ids []NodeID, drop map[NodeID]bool) []NodeID {
	out := ids[:0]
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
