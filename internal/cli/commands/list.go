package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/tmlineage/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Long: `List the snapshots in the configured store with their source document,
track and size.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json, yaml`,
		Example: `  # List snapshots in the default store
  tmlineage list

  # List snapshots of a SQLite store as JSON
  tmlineage list --store sqlite --store-path lineage.db -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	store, err := cmdCtx.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	infos, err := store.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	r := cmdCtx.Renderer
	if ok, err := r.Structured(infos); ok {
		return err
	}

	r.Header(1, fmt.Sprintf("Snapshots (%d total)", len(infos)))
	if len(infos) == 0 {
		r.Muted("store is empty; run tmlineage convert first")
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		track := "-"
		if info.TrackID != nil {
			track = fmt.Sprintf("%d", *info.TrackID)
		}
		rows = append(rows, []string{
			info.Name,
			info.Document,
			track,
			fmt.Sprintf("%d", info.Nodes),
			fmt.Sprintf("%d", info.Edges),
			info.CreatedAt.Local().Format(time.DateTime),
		})
	}
	r.Table([]string{"Name", "Document", "Track", "Nodes", "Edges", "Created"}, rows)
	if r.EffectiveMode() == output.ModeText {
		r.Muted(fmt.Sprintf("%s store at %s", cmdCtx.Cfg.Store, cmdCtx.Cfg.StorePath))
	}
	return nil
}
