package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

const blobExt = ".gz"

// DirStore keeps one gzip file per snapshot in a directory.
type DirStore struct {
	dir    string
	logger *slog.Logger
}

// NewDirStore creates the directory if needed. A nil logger discards output.
func NewDirStore(dir string, logger *slog.Logger) (*DirStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &DirStore{dir: dir, logger: logger}, nil
}

func (s *DirStore) path(name string) string {
	return filepath.Join(s.dir, name+blobExt)
}

// Save writes the snapshot to a temporary file and renames it into place.
func (s *DirStore) Save(_ context.Context, e Entry) error {
	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("saving %s: %w", e.Name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := encode(tmp, newBlob(e)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("saving %s: %w", e.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving %s: %w", e.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(e.Name)); err != nil {
		return fmt.Errorf("saving %s: %w", e.Name, err)
	}
	s.logger.Debug("snapshot saved", "name", e.Name, "path", s.path(e.Name))
	return nil
}

func (s *DirStore) read(name string) (*blob, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	b, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

// Load reads the snapshot saved under name.
func (s *DirStore) Load(_ context.Context, name string) (*lineage.Graph, error) {
	b, err := s.read(name)
	if err != nil {
		return nil, err
	}
	return b.graph()
}

// List decodes every snapshot in the directory.
func (s *DirStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), blobExt) {
			continue
		}
		name := strings.TrimSuffix(de.Name(), blobExt)
		b, err := s.read(name)
		if err != nil {
			return nil, err
		}
		g, err := b.graph()
		if err != nil {
			return nil, err
		}
		fi, err := de.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, infoOf(Entry{Name: name, Document: b.Document, RunID: b.RunID, Graph: g}, fi.ModTime()))
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Close is a no-op.
func (s *DirStore) Close() error { return nil }
