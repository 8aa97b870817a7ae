package commands

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/tmlineage/internal/cli/output"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
	"github.com/leapstack-labs/tmlineage/internal/topology"
	"github.com/spf13/cobra"
)

// GraphSummary describes one graph of a document.
type GraphSummary struct {
	Name        string `json:"name" yaml:"name"`
	TrackID     *int64 `json:"track_id,omitempty" yaml:"track_id,omitempty"`
	Nodes       int    `json:"nodes" yaml:"nodes"`
	Edges       int    `json:"edges" yaml:"edges"`
	Roots       int    `json:"roots" yaml:"roots"`
	Divisions   int    `json:"divisions" yaml:"divisions"`
	Leaves      int    `json:"leaves" yaml:"leaves"`
	Generations *int   `json:"generations,omitempty" yaml:"generations,omitempty"`
}

// InspectOutput is the structured result of the inspect command.
type InspectOutput struct {
	Document     string         `json:"document" yaml:"document"`
	Version      string         `json:"version" yaml:"version"`
	SpatialUnits string         `json:"spatial_units" yaml:"spatial_units"`
	TimeUnits    string         `json:"time_units" yaml:"time_units"`
	Merged       bool           `json:"merged" yaml:"merged"`
	Warnings     []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Graphs       []GraphSummary `json:"graphs" yaml:"graphs"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <doc.xml>",
		Short: "Report the lineage graphs of a TrackMate document",
		Long: `Read a TrackMate document and report every graph it yields: track, size,
roots, divisions, leaves and the number of complete generations.

Nothing is written to the snapshot store.`,
		Example: `  # Summarise a document
  tmlineage inspect cells.xml

  # Include orphan spots, as YAML
  tmlineage inspect cells.xml --keep-all-spots -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0])
		},
	}

	addReadFlags(cmd)

	return cmd
}

func runInspect(cmd *cobra.Command, path string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	doc, err := cmdCtx.ReadDocument(path)
	if err != nil {
		return err
	}

	out := InspectOutput{
		Document:     path,
		Version:      doc.Version,
		SpatialUnits: doc.Model.SpatialUnits,
		TimeUnits:    doc.Model.TimeUnits,
		Merged:       doc.Forest.Merged,
	}
	for _, w := range doc.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	for _, g := range doc.Forest.Graphs {
		s, err := summarize(g)
		if err != nil {
			if !errors.Is(err, lineage.ErrStructure) {
				return fmt.Errorf("inspecting graph %s: %w", s.Name, err)
			}
			cmdCtx.Logger.Warn("generations unavailable", "graph", s.Name, "error", err)
		}
		out.Graphs = append(out.Graphs, s)
	}

	r := cmdCtx.Renderer
	if ok, err := r.Structured(out); ok {
		return err
	}

	r.Header(1, fmt.Sprintf("%s (%d graphs)", path, len(out.Graphs)))
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Version", out.Version))
		r.Println(output.FormatKeyValue("Units", out.SpatialUnits+", "+out.TimeUnits))
		r.Println(output.FormatKeyValue("Warnings", len(out.Warnings)))
		r.Println("")
	}

	rows := make([][]string, 0, len(out.Graphs))
	for _, s := range out.Graphs {
		track, gens := "-", "-"
		if s.TrackID != nil {
			track = fmt.Sprintf("%d", *s.TrackID)
		}
		if s.Generations != nil {
			gens = fmt.Sprintf("%d", *s.Generations)
		}
		rows = append(rows, []string{
			s.Name, track,
			fmt.Sprintf("%d", s.Nodes),
			fmt.Sprintf("%d", s.Edges),
			fmt.Sprintf("%d", s.Roots),
			fmt.Sprintf("%d", s.Divisions),
			fmt.Sprintf("%d", s.Leaves),
			gens,
		})
	}
	r.Table([]string{"Graph", "Track", "Nodes", "Edges", "Roots", "Divisions", "Leaves", "Generations"}, rows)

	if r.EffectiveMode() != output.ModeMarkdown {
		for _, w := range out.Warnings {
			r.Warning(w)
		}
	}
	return nil
}

// summarize counts the topology of g. When the generations cannot be
// computed the summary is still filled in, Generations is nil and the cause
// is returned.
func summarize(g *lineage.Graph) (GraphSummary, error) {
	s := GraphSummary{
		Name:      graphName(g),
		Nodes:     g.NodeCount(),
		Edges:     g.EdgeCount(),
		Roots:     len(topology.Roots(g)),
		Divisions: len(topology.Divisions(g)),
		Leaves:    len(topology.Leaves(g)),
	}
	if t, ok := g.Track(); ok {
		id := t.ID
		s.TrackID = &id
	}
	gens, err := topology.Generations(g, false)
	if err != nil {
		return s, err
	}
	n := len(gens)
	s.Generations = &n
	return s, nil
}
