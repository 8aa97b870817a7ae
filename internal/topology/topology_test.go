package topology

import (
	"math"
	"testing"

	"github.com/leapstack-labs/tmlineage/internal/feature"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
	"github.com/leapstack-labs/tmlineage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	A lineage.NodeID = iota + 1
	B
	C
	D
	E
	F
	G
	H
)

// build creates a graph from parent -> child links. Every node joins track 0.
func build(t *testing.T, nodes []lineage.NodeID, links [][2]lineage.NodeID) *lineage.Graph {
	t.Helper()
	g := lineage.NewGraph(nil)
	for i, id := range nodes {
		n := g.AddNode(id, int64(i), nil)
		n.SetTrack(0)
	}
	for _, l := range links {
		require.NoError(t, g.AddEdge(l[0], l[1], nil))
	}
	return g
}

// divided is A->B->C, C->D->E, C->F.
func divided(t *testing.T) *lineage.Graph {
	return build(t, []lineage.NodeID{A, B, C, D, E, F},
		[][2]lineage.NodeID{{A, B}, {B, C}, {C, D}, {D, E}, {C, F}})
}

// twice is divided plus a second division at D: D->G, D->H replacing D->E.
func twice(t *testing.T) *lineage.Graph {
	return build(t, []lineage.NodeID{A, B, C, D, F, G, H},
		[][2]lineage.NodeID{{A, B}, {B, C}, {C, D}, {C, F}, {D, G}, {D, H}})
}

func linear(t *testing.T) *lineage.Graph {
	return build(t, []lineage.NodeID{A, B, C, D, E},
		[][2]lineage.NodeID{{A, B}, {B, C}, {C, D}, {D, E}})
}

func TestPredicates(t *testing.T) {
	g := divided(t)

	tests := []struct {
		node     lineage.NodeID
		root     bool
		leaf     bool
		division bool
	}{
		{A, true, false, false},
		{B, false, false, false},
		{C, false, false, true},
		{D, false, false, false},
		{E, false, true, false},
		{F, false, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.root, IsRoot(g, tt.node), "root %d", tt.node)
		assert.Equal(t, tt.leaf, IsLeaf(g, tt.node), "leaf %d", tt.node)
		assert.Equal(t, tt.division, IsDivision(g, tt.node), "division %d", tt.node)
		assert.Equal(t, g.OutDegree(tt.node) > 1 && g.InDegree(tt.node) <= 1, IsDivision(g, tt.node))
	}

	root, err := Root(g)
	require.NoError(t, err)
	assert.Equal(t, A, root)
	assert.Equal(t, []lineage.NodeID{E, F}, Leaves(g))
	assert.Equal(t, []lineage.NodeID{C}, Divisions(g))
}

func TestRoot_SingleNode(t *testing.T) {
	g := build(t, []lineage.NodeID{A}, nil)
	root, err := Root(g)
	require.NoError(t, err)
	assert.Equal(t, A, root)
	assert.False(t, IsLeaf(g, A))
}

func TestRoot_Errors(t *testing.T) {
	g := build(t, []lineage.NodeID{A, B, C, D}, [][2]lineage.NodeID{{A, B}, {C, D}})
	_, err := Root(g)
	assert.ErrorIs(t, err, ErrManyRoots)

	empty := lineage.NewGraph(nil)
	_, err = Root(empty)
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestGeneration(t *testing.T) {
	g := divided(t)

	tests := []struct {
		node lineage.NodeID
		want []lineage.NodeID
	}{
		{A, []lineage.NodeID{A, B, C}},
		{B, []lineage.NodeID{A, B, C}},
		{C, []lineage.NodeID{A, B, C}},
		{D, []lineage.NodeID{D, E}},
		{E, []lineage.NodeID{D, E}},
		{F, []lineage.NodeID{F}},
	}
	for _, tt := range tests {
		got, err := Generation(g, tt.node)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "generation of %d", tt.node)
	}
}

func TestGeneration_IsContiguousPath(t *testing.T) {
	g := twice(t)
	for _, id := range g.NodeIDs() {
		gen, err := Generation(g, id)
		require.NoError(t, err)
		assert.Contains(t, gen, id)
		for i := 1; i < len(gen); i++ {
			assert.Equal(t, []lineage.NodeID{gen[i-1]}, g.Parents(gen[i]))
		}
		first, last := gen[0], gen[len(gen)-1]
		if !IsRoot(g, first) {
			require.Len(t, g.Parents(first), 1)
			assert.True(t, IsDivision(g, g.Parents(first)[0]))
		}
		assert.True(t, IsDivision(g, last) || IsLeaf(g, last))
	}
}

func TestGeneration_RootDivision(t *testing.T) {
	g := build(t, []lineage.NodeID{A, B, C}, [][2]lineage.NodeID{{A, B}, {A, C}})

	gen, err := Generation(g, A)
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeID{A}, gen)

	gen, err = Generation(g, B)
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeID{B}, gen)
}

func TestGeneration_IsolatedNode(t *testing.T) {
	g := build(t, []lineage.NodeID{A, B, C}, [][2]lineage.NodeID{{A, B}})
	gen, err := Generation(g, C)
	require.NoError(t, err)
	assert.Equal(t, []lineage.NodeID{C}, gen)
}

func TestGeneration_TwoPredecessors(t *testing.T) {
	// C has two parents: a merge event
	g := build(t, []lineage.NodeID{A, B, C, D},
		[][2]lineage.NodeID{{A, C}, {B, C}, {C, D}})

	_, err := Generation(g, D)
	assert.ErrorIs(t, err, lineage.ErrStructure)
}

func TestGenerations(t *testing.T) {
	t.Run("linear chain", func(t *testing.T) {
		g := linear(t)
		gens, err := Generations(g, false)
		require.NoError(t, err)
		assert.Empty(t, gens)

		gens, err = Generations(g, true)
		require.NoError(t, err)
		assert.Equal(t, [][]lineage.NodeID{{A, B, C, D, E}}, gens)
	})

	t.Run("one division", func(t *testing.T) {
		g := divided(t)
		gens, err := Generations(g, false)
		require.NoError(t, err)
		assert.Empty(t, gens, "the only division generation touches the root")

		gens, err = Generations(g, true)
		require.NoError(t, err)
		assert.Equal(t, [][]lineage.NodeID{{A, B, C}, {D, E}, {F}}, gens)
	})

	t.Run("two divisions", func(t *testing.T) {
		g := twice(t)
		gens, err := Generations(g, false)
		require.NoError(t, err)
		assert.Equal(t, [][]lineage.NodeID{{D}}, gens)
	})
}

func value(t *testing.T, g *lineage.Graph, id lineage.NodeID, name string) feature.Value {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok)
	v, ok := n.Attrs.Get(name)
	require.True(t, ok, "node %d has no %s", id, name)
	return v
}

func TestAnnotate(t *testing.T) {
	g := divided(t)
	a := NewAnnotator(testutil.NewTestLogger(t))
	require.NoError(t, a.Annotate(g,
		GenerationLevel, GenerationComplete, DivisionTime, RelativeAge, AbsoluteAge, Phase, GenerationID))

	tests := []struct {
		node     lineage.NodeID
		level    int64
		complete int64
		divTime  int64
		relAge   int64
		absAge   int64
		phase    string
		genID    string
	}{
		{A, 0, 0, 3, 1, 1, "first+birth", "0_3"},
		{B, 0, 0, 3, 2, 2, "-", "0_3"},
		{C, 0, 0, 3, 3, 3, "division", "0_3"},
		{D, 1, 0, 2, 1, 4, "birth", "0_5"},
		{E, 1, 0, 2, 2, 5, "last", "0_5"},
		{F, 1, 0, 1, 1, 4, "last+birth", "0_6"},
	}
	for _, tt := range tests {
		assert.True(t, feature.Int(tt.level).Equal(value(t, g, tt.node, GenerationLevel)), "level %d", tt.node)
		assert.True(t, feature.Int(tt.complete).Equal(value(t, g, tt.node, GenerationComplete)), "complete %d", tt.node)
		assert.True(t, feature.Int(tt.divTime).Equal(value(t, g, tt.node, DivisionTime)), "div time %d", tt.node)
		assert.True(t, feature.Int(tt.relAge).Equal(value(t, g, tt.node, RelativeAge)), "rel age %d", tt.node)
		assert.True(t, feature.Int(tt.absAge).Equal(value(t, g, tt.node, AbsoluteAge)), "abs age %d", tt.node)
		assert.Equal(t, tt.phase, value(t, g, tt.node, Phase).String(), "phase %d", tt.node)
		assert.Equal(t, tt.genID, value(t, g, tt.node, GenerationID).String(), "gen id %d", tt.node)
	}

	d, ok := g.Model.Registry.Lookup(feature.Node, GenerationLevel)
	require.True(t, ok)
	assert.Equal(t, "true", d.IsInt)
	d, ok = g.Model.Registry.Lookup(feature.Node, Phase)
	require.True(t, ok)
	assert.Equal(t, "false", d.IsInt)
}

func TestAnnotate_CompleteGeneration(t *testing.T) {
	g := twice(t)
	require.NoError(t, NewAnnotator(nil).Annotate(g, GenerationComplete, GenerationLevel))

	assert.True(t, feature.Int(1).Equal(value(t, g, D, GenerationComplete)))
	assert.True(t, feature.Int(2).Equal(value(t, g, G, GenerationLevel)))
}

func TestAnnotate_SkipsNodesWithoutTrack(t *testing.T) {
	g := lineage.NewGraph(nil)
	g.AddNode(A, 0, nil)
	require.NoError(t, NewAnnotator(nil).Annotate(g, DivisionTime))

	n, _ := g.Node(A)
	assert.False(t, n.Attrs.Has(DivisionTime))
}

func TestAnnotate_AreaIncrement(t *testing.T) {
	g := linear(t)
	areas := map[lineage.NodeID]feature.Value{
		A: feature.Real(10),
		B: feature.Real(12.5),
		C: feature.Int(11),
		D: feature.Text("n/a"),
	}
	for id, v := range areas {
		n, _ := g.Node(id)
		n.Attrs.Set("AREA", v)
	}
	require.NoError(t, NewAnnotator(nil).Annotate(g, AreaIncrement))

	got := func(id lineage.NodeID) float64 {
		f, ok := value(t, g, id, AreaIncrement).AsReal()
		require.True(t, ok)
		return f
	}
	assert.True(t, math.IsNaN(got(A)), "no predecessor")
	assert.InDelta(t, 2.5, got(B), 1e-9)
	assert.InDelta(t, -1.5, got(C), 1e-9)
	assert.True(t, math.IsNaN(got(D)), "non numeric area")
	assert.True(t, math.IsNaN(got(E)), "missing area")
}

func TestAnnotate_AreaIncrementTwoPredecessors(t *testing.T) {
	g := build(t, []lineage.NodeID{A, B, C}, [][2]lineage.NodeID{{A, C}, {B, C}})
	err := NewAnnotator(nil).Annotate(g, AreaIncrement)
	assert.ErrorIs(t, err, lineage.ErrStructure)
}

func TestAnnotate_MergeNode(t *testing.T) {
	// A->B->E and C->D->E merge at E, which goes on to F. E is first met by
	// walking forward from A.
	names := []string{GenerationComplete, DivisionTime, RelativeAge, Phase, GenerationID}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			g := build(t, []lineage.NodeID{A, B, C, D, E, F},
				[][2]lineage.NodeID{{A, B}, {B, E}, {C, D}, {D, E}, {E, F}})

			err := NewAnnotator(nil).Annotate(g, name)
			require.ErrorIs(t, err, lineage.ErrStructure)
			assert.ErrorContains(t, err, "node 5")

			e, _ := g.Node(E)
			_, ok := e.Attrs.Get(name)
			assert.False(t, ok, "merge node must not be annotated")
		})
	}
}

func TestAnnotate_UnknownFeature(t *testing.T) {
	err := NewAnnotator(nil).Annotate(linear(t), "NOPE")
	assert.Error(t, err)
	assert.False(t, IsFeature("NOPE"))
	assert.True(t, IsFeature(Phase))
}
