package lineage

import (
	"errors"
	"fmt"
)

// ErrStructure marks an impossible graph state, such as a cell with two
// parents where one is required or two tracks merged into one component.
var ErrStructure = errors.New("structural violation")

// StructureError describes a structural violation at a node.
type StructureError struct {
	Graph string
	Node  NodeID
	Msg   string
}

// NewStructureError creates a StructureError.
func NewStructureError(graph string, node NodeID, format string, args ...any) *StructureError {
	return &StructureError{Graph: graph, Node: node, Msg: fmt.Sprintf(format, args...)}
}

func (e *StructureError) Error() string {
	if e.Graph != "" {
		return fmt.Sprintf("%s: graph %s, node %d: %s", ErrStructure, e.Graph, e.Node, e.Msg)
	}
	return fmt.Sprintf("%s: node %d: %s", ErrStructure, e.Node, e.Msg)
}

// Is makes errors.Is(err, ErrStructure) match.
func (e *StructureError) Is(target error) bool {
	return target == ErrStructure
}
