package trackmate

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Settings is the opaque Settings element of a document, kept as XML.
type Settings struct {
	Raw []byte
}

// IsZero reports whether no settings were captured.
func (s Settings) IsZero() bool {
	return len(s.Raw) == 0
}

// ReadSettings scans a document for its Settings element, skipping the
// model without building it.
func ReadSettings(r io.Reader) (Settings, error) {
	cur := newCursor(r)
	for {
		ev, err := cur.next()
		if errors.Is(err, io.EOF) {
			return Settings{}, nil
		}
		if err != nil {
			return Settings{}, fmt.Errorf("reading settings: %w", err)
		}
		if ev.kind != startEvent || ev.depth == 1 {
			continue
		}
		if ev.name == elemSettings {
			raw, err := cur.raw(ev)
			if err != nil {
				return Settings{}, fmt.Errorf("reading settings: %w", err)
			}
			return Settings{Raw: raw}, nil
		}
		if err := cur.skip(); err != nil {
			return Settings{}, fmt.Errorf("reading settings: %w", err)
		}
	}
}

// ReadSettingsFile reads the Settings element of the document at path.
func ReadSettingsFile(path string) (Settings, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is user input by design
	if err != nil {
		return Settings{}, err
	}
	defer func() { _ = f.Close() }()
	return ReadSettings(f)
}
