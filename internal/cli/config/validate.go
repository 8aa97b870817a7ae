package config

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/tmlineage/internal/snapshot"
	"github.com/leapstack-labs/tmlineage/internal/topology"
)

var outputModes = []string{"auto", "text", "markdown", "json", "yaml"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Store {
	case snapshot.KindDir, snapshot.KindSQLite:
	default:
		return fmt.Errorf("unknown store %q (want %s or %s)", c.Store, snapshot.KindDir, snapshot.KindSQLite)
	}
	for _, name := range c.Features {
		if !topology.IsFeature(name) {
			return fmt.Errorf("unknown feature %q", name)
		}
	}
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.OutputFormat != "" && !slices.Contains(outputModes, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	return nil
}
