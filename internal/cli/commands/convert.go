package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/tmlineage/internal/cli/output"
	"github.com/leapstack-labs/tmlineage/internal/convert"
	"github.com/leapstack-labs/tmlineage/internal/topology"
	"github.com/spf13/cobra"
)

// ConvertOutput is the structured result of the convert command.
type ConvertOutput struct {
	RunID     string           `json:"run_id" yaml:"run_id"`
	Store     string           `json:"store" yaml:"store"`
	StorePath string           `json:"store_path" yaml:"store_path"`
	Documents []convert.Result `json:"documents" yaml:"documents"`
}

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <doc.xml>...",
		Short: "Convert TrackMate documents into lineage snapshots",
		Long: `Read TrackMate documents, build one lineage graph per track, compute
the derived lineage features and save every graph as a snapshot.

Derived features: ` + strings.Join(topology.FeatureNames(), ", ") + `

Documents are processed concurrently (--jobs). Snapshots are named after the
document and the track, for example cells_Track_0.`,
		Example: `  # Convert one document with every derived feature
  tmlineage convert cells.xml

  # Keep orphan spots and discarded tracks
  tmlineage convert cells.xml --keep-all-spots --keep-all-tracks

  # Only compute generation levels and phases, store in SQLite
  tmlineage convert *.xml --features GEN_LVL,PHASE --store sqlite

  # Machine-readable summary
  tmlineage convert cells.xml -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args)
		},
	}

	addReadFlags(cmd)
	cmd.Flags().StringSlice("features", nil, "Derived features to compute (default all)")
	cmd.Flags().String("area-feature", "", "Spot feature differenced by AREA_INCREMENT")
	cmd.Flags().IntP("jobs", "j", 0, "Documents converted at once (default number of CPUs)")

	_ = cmd.RegisterFlagCompletionFunc("features", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return topology.FeatureNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runConvert(cmd *cobra.Command, paths []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	conv, err := convert.New(convert.Config{
		KeepAllSpots:  cfg.KeepAllSpots,
		KeepAllTracks: cfg.KeepAllTracks,
		OneGraph:      cfg.OneGraph,
		Features:      cfg.Features,
		AreaFeature:   cfg.AreaFeature,
		Jobs:          cfg.Jobs,
		Store:         store,
		Logger:        cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	results, err := conv.Convert(cmd.Context(), paths)
	if err != nil {
		return err
	}

	out := ConvertOutput{
		RunID:     conv.RunID(),
		Store:     cfg.Store,
		StorePath: cfg.StorePath,
		Documents: results,
	}
	r := cmdCtx.Renderer
	if ok, err := r.Structured(out); ok {
		return err
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		convertMarkdown(r, out)
		return nil
	}
	convertText(r, out)
	return nil
}

func convertText(r *output.Renderer, out ConvertOutput) {
	r.Header(1, fmt.Sprintf("Converted %d document(s)", len(out.Documents)))

	rows := make([][]string, 0, len(out.Documents))
	for _, res := range out.Documents {
		rows = append(rows, []string{
			filepath.Base(res.Document),
			res.Version,
			fmt.Sprintf("%d", len(res.Snapshots)),
			fmt.Sprintf("%d", res.Nodes),
			fmt.Sprintf("%d", res.Edges),
			fmt.Sprintf("%d", res.Warnings),
		})
	}
	r.Table([]string{"Document", "Version", "Graphs", "Nodes", "Edges", "Warnings"}, rows)

	for _, res := range out.Documents {
		for _, w := range res.Skipped {
			r.Warning(fmt.Sprintf("%s: %s", filepath.Base(res.Document), w))
		}
	}
	r.Muted(fmt.Sprintf("run %s, %s store at %s", out.RunID, out.Store, out.StorePath))
}

func convertMarkdown(r *output.Renderer, out ConvertOutput) {
	r.Header(1, fmt.Sprintf("Converted %d document(s)", len(out.Documents)))
	r.Println(output.FormatKeyValue("Run", out.RunID))
	r.Println(output.FormatKeyValue("Store", out.Store+" "+out.StorePath))
	r.Println("")

	for _, res := range out.Documents {
		r.Header(2, res.Document)
		r.Println(output.FormatKeyValue("Version", res.Version))
		r.Println(output.FormatKeyValue("Nodes", res.Nodes))
		r.Println(output.FormatKeyValue("Edges", res.Edges))
		if res.Merged {
			r.Println(output.FormatKeyValue("Merged", "yes"))
		}
		r.Println(output.FormatKeyValue("Snapshots", strings.Join(res.Snapshots, ", ")))
		if len(res.Skipped) > 0 {
			r.Println(output.FormatKeyValue("Warnings", len(res.Skipped)))
			for _, w := range res.Skipped {
				r.Println("  - " + w.String())
			}
		}
		r.Println("")
	}
}
