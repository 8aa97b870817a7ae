package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/tmlineage/internal/cli/output"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
	"github.com/leapstack-labs/tmlineage/internal/topology"
	"github.com/spf13/cobra"
)

// GenerationsOptions holds options for the generations command.
type GenerationsOptions struct {
	KeepIncomplete bool
}

// GenerationRow is one generation segment.
type GenerationRow struct {
	Graph  string           `json:"graph" yaml:"graph"`
	First  lineage.NodeID   `json:"first" yaml:"first"`
	Last   lineage.NodeID   `json:"last" yaml:"last"`
	Start  int64            `json:"start_frame" yaml:"start_frame"`
	Length int              `json:"length" yaml:"length"`
	Nodes  []lineage.NodeID `json:"nodes" yaml:"nodes"`
}

// NewGenerationsCommand creates the generations command.
func NewGenerationsCommand() *cobra.Command {
	opts := &GenerationsOptions{}

	cmd := &cobra.Command{
		Use:   "generations <doc.xml>",
		Short: "List the generations of every graph in a document",
		Long: `A generation is the chain of spots between two divisions: it starts right
after a division (or at the root) and ends at the next division.

By default only generations bounded by divisions at both ends are listed.
--keep-incomplete adds those starting at a root or ending at a leaf.`,
		Example: `  # Complete generations only
  tmlineage generations cells.xml

  # Every generation, as JSON
  tmlineage generations cells.xml --keep-incomplete -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerations(cmd, args[0], opts)
		},
	}

	addReadFlags(cmd)
	cmd.Flags().BoolVar(&opts.KeepIncomplete, "keep-incomplete", false, "Include generations touching a root or a leaf")

	return cmd
}

func runGenerations(cmd *cobra.Command, path string, opts *GenerationsOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	doc, err := cmdCtx.ReadDocument(path)
	if err != nil {
		return err
	}

	rows := []GenerationRow{}
	for _, g := range doc.Forest.Graphs {
		gens, err := topology.Generations(g, opts.KeepIncomplete)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, gen := range gens {
			first, _ := g.Node(gen[0])
			rows = append(rows, GenerationRow{
				Graph:  graphName(g),
				First:  gen[0],
				Last:   gen[len(gen)-1],
				Start:  first.Frame,
				Length: len(gen),
				Nodes:  gen,
			})
		}
	}

	r := cmdCtx.Renderer
	if ok, err := r.Structured(rows); ok {
		return err
	}

	r.Header(1, fmt.Sprintf("Generations (%d total)", len(rows)))
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.Graph,
			fmt.Sprintf("%d", row.First),
			fmt.Sprintf("%d", row.Last),
			fmt.Sprintf("%d", row.Start),
			fmt.Sprintf("%d", row.Length),
			joinIDs(row.Nodes),
		})
	}
	r.Table([]string{"Graph", "First", "Last", "Start", "Length", "Nodes"}, table)
	if len(rows) == 0 && r.EffectiveMode() != output.ModeMarkdown {
		r.Muted("no generation found; try --keep-incomplete")
	}
	return nil
}

func joinIDs(ids []lineage.NodeID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, " ")
}
