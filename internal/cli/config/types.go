// Package config provides configuration management for the tmlineage CLI.
package config

import (
	"path/filepath"
	"runtime"

	"github.com/leapstack-labs/tmlineage/internal/snapshot"
	"github.com/leapstack-labs/tmlineage/internal/topology"
)

// Config holds all CLI configuration options.
type Config struct {
	KeepAllSpots  bool     `koanf:"keep_all_spots"`
	KeepAllTracks bool     `koanf:"keep_all_tracks"`
	OneGraph      bool     `koanf:"one_graph"`
	Features      []string `koanf:"features"`
	AreaFeature   string   `koanf:"area_feature"`
	Jobs          int      `koanf:"jobs"`
	Store         string   `koanf:"store"`
	StorePath     string   `koanf:"store_path"`
	OutputFormat  string   `koanf:"output"`
	LogLevel      string   `koanf:"log_level"`
	Verbose       bool     `koanf:"verbose"`
}

// Default configuration values.
const (
	DefaultStore    = snapshot.KindDir
	DefaultDataDir  = ".tmlineage"
	DefaultOutput   = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel = "warn"
	EnvPrefix       = "TMLINEAGE_"
	ConfigFileYAML  = "tmlineage.yaml"
	ConfigFileYML   = "tmlineage.yml"
	defaultDirStore = "snapshots"
	defaultSQLiteDB = "snapshots.db"
)

// DefaultJobs is the default number of documents converted at once.
func DefaultJobs() int {
	return runtime.NumCPU()
}

// DefaultFeatures returns every derived feature.
func DefaultFeatures() []string {
	return topology.FeatureNames()
}

// DefaultStorePath returns the snapshot location used for a store kind when
// store_path is not set.
func DefaultStorePath(kind string) string {
	if kind == snapshot.KindSQLite {
		return filepath.Join(DefaultDataDir, defaultSQLiteDB)
	}
	return filepath.Join(DefaultDataDir, defaultDirStore)
}

// Defaults returns a Config holding the default values.
func Defaults() *Config {
	return &Config{
		Features:     DefaultFeatures(),
		AreaFeature:  topology.DefaultAreaFeature,
		Jobs:         DefaultJobs(),
		Store:        DefaultStore,
		StorePath:    DefaultStorePath(DefaultStore),
		OutputFormat: DefaultOutput,
		LogLevel:     DefaultLogLevel,
	}
}
