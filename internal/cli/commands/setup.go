package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/tmlineage/internal/cli/config"
	"github.com/leapstack-labs/tmlineage/internal/cli/output"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
	"github.com/leapstack-labs/tmlineage/internal/snapshot"
	"github.com/leapstack-labs/tmlineage/internal/trackmate"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the loaded configuration
// and a renderer on the command's output streams.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// OpenStore opens the configured snapshot store. The caller closes it.
func (c *CommandContext) OpenStore() (snapshot.Store, error) {
	if c.Cfg.Store == snapshot.KindSQLite {
		if dir := filepath.Dir(c.Cfg.StorePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}
	store, err := snapshot.Open(c.Cfg.Store, c.Cfg.StorePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store at %s: %w", c.Cfg.Store, c.Cfg.StorePath, err)
	}
	return store, nil
}

// ReadDocument reads a document with the configured filtering options.
func (c *CommandContext) ReadDocument(path string) (*trackmate.Document, error) {
	return trackmate.ReadFile(path, trackmate.ReadOptions{
		KeepAllSpots:  c.Cfg.KeepAllSpots,
		KeepAllTracks: c.Cfg.KeepAllTracks,
		OneGraph:      c.Cfg.OneGraph,
		Logger:        c.Logger.With("document", path),
	})
}

// getConfig returns the current configuration.
// Commands run outside the root command load it from the environment, any
// config file and their own flags.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", cmd.Flags())
}

// addReadFlags registers the document filtering flags. Their values reach
// commands through the configuration.
func addReadFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("keep-all-spots", false, "Keep spots that belong to no track")
	cmd.Flags().Bool("keep-all-tracks", false, "Keep tracks discarded by upstream filtering")
	cmd.Flags().Bool("one-graph", false, "Keep every track of a document in one graph")
}

// graphName returns a display name for g.
func graphName(g *lineage.Graph) string {
	if name := g.Name(); name != "" {
		return name
	}
	return "(merged)"
}
