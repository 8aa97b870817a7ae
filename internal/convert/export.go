package convert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/tmlineage/internal/lineage"
	"github.com/leapstack-labs/tmlineage/internal/snapshot"
	"github.com/leapstack-labs/tmlineage/internal/trackmate"
)

// ExportOptions controls how snapshots are written back to a document.
type ExportOptions struct {
	// SettingsFrom is a document whose Settings element is copied. Optional.
	SettingsFrom string
	// Out is the path of the document to write.
	Out    string
	Logger *slog.Logger
}

// ExportResult summarises a written document.
type ExportResult struct {
	Out       string   `json:"out" yaml:"out"`
	Snapshots []string `json:"snapshots" yaml:"snapshots"`
	Nodes     int      `json:"nodes" yaml:"nodes"`
	Edges     int      `json:"edges" yaml:"edges"`
	Settings  bool     `json:"settings" yaml:"settings"`
}

// Export loads the named snapshots and writes them into one document.
// The snapshots must share units and feature declarations.
func Export(ctx context.Context, store snapshot.Store, names []string, opts ExportOptions) (ExportResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Out == "" {
		return ExportResult{}, fmt.Errorf("export: no output path")
	}

	graphs := make([]*lineage.Graph, 0, len(names))
	res := ExportResult{Out: opts.Out, Snapshots: names}
	for _, name := range names {
		g, err := store.Load(ctx, name)
		if err != nil {
			return ExportResult{}, err
		}
		graphs = append(graphs, g)
		res.Nodes += g.NodeCount()
		res.Edges += g.EdgeCount()
	}

	var settings trackmate.Settings
	if opts.SettingsFrom != "" {
		s, err := trackmate.ReadSettingsFile(opts.SettingsFrom)
		if err != nil {
			return ExportResult{}, err
		}
		if s.IsZero() {
			logger.Warn("no settings found", "document", opts.SettingsFrom)
		}
		settings = s
		res.Settings = !s.IsZero()
	}

	if err := trackmate.WriteFile(opts.Out, graphs, settings, trackmate.WriteOptions{Logger: logger}); err != nil {
		return ExportResult{}, err
	}
	logger.Info("document exported", "out", opts.Out, "snapshots", len(names), "nodes", res.Nodes)
	return res, nil
}
