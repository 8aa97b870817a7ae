// Package snapshot persists lineage graphs as compressed binary snapshots,
// either as files in a directory or as rows of a SQLite catalog.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// ErrNotFound is returned when no snapshot has the requested name.
var ErrNotFound = errors.New("snapshot not found")

// Entry is one graph to save.
type Entry struct {
	Name string
	// Document is the path of the document the graph was read from.
	Document string
	RunID    string
	Graph    *lineage.Graph
}

// Info describes a saved snapshot.
type Info struct {
	Name      string    `json:"name" yaml:"name"`
	Document  string    `json:"document" yaml:"document"`
	RunID     string    `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	TrackID   *int64    `json:"track_id,omitempty" yaml:"track_id,omitempty"`
	Nodes     int       `json:"nodes" yaml:"nodes"`
	Edges     int       `json:"edges" yaml:"edges"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store saves and loads snapshots by name.
type Store interface {
	// Save writes e, replacing any snapshot with the same name.
	Save(ctx context.Context, e Entry) error
	// Load returns the graph saved under name, bound to a model of its own.
	Load(ctx context.Context, name string) (*lineage.Graph, error)
	// List describes every saved snapshot, ordered by name.
	List(ctx context.Context) ([]Info, error)
	Close() error
}

// Name derives the snapshot name of g: the document base name without its
// extension, followed by the track name for a per-track graph or the node
// ID for a lone node. A merged graph, or one carrying several tracks, gets
// the bare stem.
func Name(docPath string, g *lineage.Graph) string {
	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	suffix := g.Name()
	if suffix == "" {
		return stem
	}
	return stem + "_" + sanitize(suffix)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, s)
}

func infoOf(e Entry, created time.Time) Info {
	info := Info{
		Name:      e.Name,
		Document:  e.Document,
		RunID:     e.RunID,
		Nodes:     e.Graph.NodeCount(),
		Edges:     e.Graph.EdgeCount(),
		CreatedAt: created,
	}
	if t, ok := e.Graph.Track(); ok {
		id := t.ID
		info.TrackID = &id
	}
	return info
}

// Store kinds.
const (
	KindDir    = "dir"
	KindSQLite = "sqlite"
)

// Open opens a store of the given kind at path.
func Open(kind, path string, logger *slog.Logger) (Store, error) {
	switch kind {
	case KindDir:
		s, err := NewDirStore(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindSQLite:
		s, err := OpenSQLiteStore(path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
