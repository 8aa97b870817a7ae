package topology

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/leapstack-labs/tmlineage/internal/feature"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// Derived node features.
const (
	GenerationLevel    = "GEN_LVL"
	GenerationComplete = "GEN_COMPLETE"
	DivisionTime       = "DIV_TIME"
	RelativeAge        = "RELATIVE_AGE"
	AbsoluteAge        = "ABSOLUTE_AGE"
	Phase              = "PHASE"
	AreaIncrement      = "AREA_INCREMENT"
	GenerationID       = "GEN_ID"
)

// DefaultAreaFeature is the node attribute differenced by AREA_INCREMENT.
const DefaultAreaFeature = "AREA"

// Phase labels.
const (
	phaseFirst    = "first"
	phaseLast     = "last"
	phaseDivision = "division"
	phaseBirth    = "birth"
	phaseNone     = "-"
	phaseSep      = "+"
)

type derived struct {
	decl    feature.Declaration
	compute func(a *Annotator, c *generationCache, n *lineage.Node, track int64) (feature.Value, error)
}

var features = map[string]derived{
	GenerationLevel: {
		decl:    feature.Declaration{Feature: GenerationLevel, Name: "Generation level", ShortName: "Gen. lvl", Dimension: "NONE", IsInt: "true"},
		compute: generationLevel,
	},
	GenerationComplete: {
		decl:    feature.Declaration{Feature: GenerationComplete, Name: "Generation completeness", ShortName: "Gen. complete", Dimension: "NONE", IsInt: "true"},
		compute: generationComplete,
	},
	DivisionTime: {
		decl:    feature.Declaration{Feature: DivisionTime, Name: "Division time", ShortName: "Div. time", Dimension: "NONE", IsInt: "true"},
		compute: divisionTime,
	},
	RelativeAge: {
		decl:    feature.Declaration{Feature: RelativeAge, Name: "Relative age", ShortName: "Rel. age", Dimension: "NONE", IsInt: "true"},
		compute: relativeAge,
	},
	AbsoluteAge: {
		decl:    feature.Declaration{Feature: AbsoluteAge, Name: "Absolute age", ShortName: "Abs. age", Dimension: "NONE", IsInt: "true"},
		compute: absoluteAge,
	},
	Phase: {
		decl:    feature.Declaration{Feature: Phase, Name: "Cell cycle phase", ShortName: "Phase", Dimension: "NONE", IsInt: "false"},
		compute: phase,
	},
	AreaIncrement: {
		decl:    feature.Declaration{Feature: AreaIncrement, Name: "Area increment", ShortName: "Area inc.", Dimension: "AREA", IsInt: "false"},
		compute: areaIncrement,
	},
	GenerationID: {
		decl:    feature.Declaration{Feature: GenerationID, Name: "Generation ID", ShortName: "Gen. ID", Dimension: "NONE", IsInt: "false"},
		compute: generationID,
	},
}

// FeatureNames lists the derived features in computation order.
func FeatureNames() []string {
	return []string{
		GenerationLevel, GenerationComplete, DivisionTime, RelativeAge,
		AbsoluteAge, Phase, AreaIncrement, GenerationID,
	}
}

// IsFeature reports whether name is a derived feature.
func IsFeature(name string) bool {
	_, ok := features[name]
	return ok
}

// Annotator writes derived features onto the nodes of a graph.
type Annotator struct {
	// AreaFeature is the attribute differenced by AREA_INCREMENT.
	AreaFeature string
	Logger      *slog.Logger
}

// NewAnnotator creates an annotator. A nil logger discards output.
func NewAnnotator(logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Annotator{AreaFeature: DefaultAreaFeature, Logger: logger}
}

func (a *Annotator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}

func (a *Annotator) areaFeature() string {
	if a.AreaFeature == "" {
		return DefaultAreaFeature
	}
	return a.AreaFeature
}

// Annotate computes each named feature in one full pass per feature and
// declares it in the node category of the graph's registry. Nodes that
// belong to no track are skipped. With no names, every feature is computed.
func (a *Annotator) Annotate(g *lineage.Graph, names ...string) error {
	if len(names) == 0 {
		names = FeatureNames()
	}
	cache := newGenerationCache(g)
	for _, name := range names {
		d, ok := features[name]
		if !ok {
			return fmt.Errorf("unknown feature %q", name)
		}
		g.Model.Registry.Declare(feature.Node, d.decl)

		count := 0
		for _, n := range g.Nodes() {
			track, ok := n.Track()
			if !ok {
				continue
			}
			v, err := d.compute(a, cache, n, track)
			if err != nil {
				return fmt.Errorf("computing %s: %w", name, err)
			}
			n.Attrs.Set(name, v)
			count++
		}
		a.logger().Debug("feature computed", "feature", name, "graph", g.Name(), "nodes", count)
	}
	return nil
}

func generationLevel(_ *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	level := 0
	for _, anc := range c.g.Ancestors(n.ID) {
		if IsDivision(c.g, anc) {
			level++
		}
	}
	return feature.Int(int64(level)), nil
}

func generationComplete(_ *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	gen, _, err := c.get(n.ID)
	if err != nil {
		return feature.Value{}, err
	}
	if IsRoot(c.g, gen[0]) || IsLeaf(c.g, gen[len(gen)-1]) {
		return feature.Int(0), nil
	}
	return feature.Int(1), nil
}

func divisionTime(_ *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	gen, _, err := c.get(n.ID)
	if err != nil {
		return feature.Value{}, err
	}
	return feature.Int(int64(len(gen))), nil
}

func relativeAge(_ *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	_, i, err := c.get(n.ID)
	if err != nil {
		return feature.Value{}, err
	}
	return feature.Int(int64(i + 1)), nil
}

func absoluteAge(_ *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	return feature.Int(int64(len(c.g.Ancestors(n.ID)) + 1)), nil
}

func phase(_ *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	gen, _, err := c.get(n.ID)
	if err != nil {
		return feature.Value{}, err
	}
	var labels []string
	if IsRoot(c.g, n.ID) {
		labels = append(labels, phaseFirst)
	}
	if IsLeaf(c.g, n.ID) {
		labels = append(labels, phaseLast)
	}
	if IsDivision(c.g, n.ID) {
		labels = append(labels, phaseDivision)
	}
	if gen[0] == n.ID {
		labels = append(labels, phaseBirth)
	}
	if len(labels) == 0 {
		return feature.Text(phaseNone), nil
	}
	return feature.Text(strings.Join(labels, phaseSep)), nil
}

func areaIncrement(a *Annotator, c *generationCache, n *lineage.Node, _ int64) (feature.Value, error) {
	parents := c.g.Parents(n.ID)
	switch len(parents) {
	case 0:
		return feature.Real(math.NaN()), nil
	case 1:
	default:
		return feature.Value{}, lineage.NewStructureError(c.g.Name(), n.ID, "area increment needs one predecessor, found %d", len(parents))
	}
	pred, _ := c.g.Node(parents[0])
	cur, ok1 := numeric(n.Attrs, a.areaFeature())
	prev, ok2 := numeric(pred.Attrs, a.areaFeature())
	if !ok1 || !ok2 {
		return feature.Real(math.NaN()), nil
	}
	return feature.Real(cur - prev), nil
}

func generationID(_ *Annotator, c *generationCache, n *lineage.Node, track int64) (feature.Value, error) {
	gen, _, err := c.get(n.ID)
	if err != nil {
		return feature.Value{}, err
	}
	return feature.Text(fmt.Sprintf("%d_%d", track, gen[len(gen)-1])), nil
}

func numeric(attrs *feature.Attributes, name string) (float64, bool) {
	v, ok := attrs.Get(name)
	if !ok {
		return 0, false
	}
	return v.Float()
}
