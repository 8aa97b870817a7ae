package lineage

import (
	"fmt"

	"github.com/leapstack-labs/tmlineage/internal/feature"
)

// Model is graph-level metadata shared by every graph of one document.
type Model struct {
	SpatialUnits string
	TimeUnits    string
	// Attrs holds every Model element attribute as raw text.
	Attrs    *feature.Attributes
	Registry *feature.Registry
}

// NewModel returns a model with an empty registry.
func NewModel() *Model {
	return &Model{
		Attrs:    feature.NewAttributes(),
		Registry: feature.NewRegistry(),
	}
}

// Compatible reports whether graphs bound to m and o can be written into
// one document: same units and same declarations.
func (m *Model) Compatible(o *Model) bool {
	if m == o {
		return true
	}
	return m.SpatialUnits == o.SpatialUnits &&
		m.TimeUnits == o.TimeUnits &&
		m.Registry.Equal(o.Registry)
}

// TrackNameAttr is the track attribute holding its display name.
const TrackNameAttr = "name"

// Track is the metadata of one track.
type Track struct {
	ID    int64
	Attrs *feature.Attributes
	// Retained is set when the track was listed as kept by upstream filtering.
	Retained bool
}

// Name returns the track's name attribute, or Track_<id> without one.
func (t *Track) Name() string {
	if v, ok := t.Attrs.Get(TrackNameAttr); ok && !v.IsNone() && v.String() != "" {
		return v.String()
	}
	return fmt.Sprintf("Track_%d", t.ID)
}

// Forest is the result of reading one document.
type Forest struct {
	Graphs []*Graph
	// Merged is set when every track was kept in a single graph.
	Merged bool
}

// NodeCount returns the number of nodes across all graphs.
func (f *Forest) NodeCount() int {
	n := 0
	for _, g := range f.Graphs {
		n += g.NodeCount()
	}
	return n
}

// EdgeCount returns the number of edges across all graphs.
func (f *Forest) EdgeCount() int {
	n := 0
	for _, g := range f.Graphs {
		n += g.EdgeCount()
	}
	return n
}
