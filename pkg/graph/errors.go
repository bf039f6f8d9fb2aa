package graph

import "fmt"

// MalformedInputError reports structurally invalid input: a duplicate
// identifier or an edge referencing a node that does not exist. It is
// fatal during construction; nothing partially built is handed out.
type MalformedInputError struct {
	Kind   string // "node", "edge" or "poi"
	ID     int64
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input: %s %d: %s", e.Kind, e.ID, e.Reason)
}

// ReferentialIntegrityError reports a node removal that would orphan
// edges. Callers that intend to delete whole subgraphs recover by
// requesting cascading removal; it is never surfaced past the pipeline.
type ReferentialIntegrityError struct {
	Node  NodeID
	Edges int
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("node %d still referenced by %d edge(s)", e.Node, e.Edges)
}
