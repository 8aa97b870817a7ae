package trackmate

import (
	"errors"
	"fmt"
)

// Writer errors.
var (
	ErrNoGraphs           = errors.New("no graphs to write")
	ErrIncompatibleGraphs = errors.New("graphs do not share units and feature declarations")
)

// ErrNoModel is returned for a document without a Model element.
var ErrNoModel = errors.New("document has no Model element")

// Warning is a recoverable problem: the offending element was skipped.
type Warning struct {
	Element string
	Line    int
	Cause   string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s skipped: %s", w.Line, w.Element, w.Cause)
}
