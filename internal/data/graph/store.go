package graph

import (
	"context"
	"errors"

	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
)

// Duplicate creation is a named outcome, not a generic failure: builders
// treat it as "already there" and keep going.
var (
	ErrNodeExists         = errors.New("graph: node already exists")
	ErrRelationshipExists = errors.New("graph: relationship already exists")
)

// Node is one labeled node to merge by id.
type Node struct {
	Label      string
	ID         string
	Properties map[string]any
}

// Relationship is one typed edge to merge between two existing nodes.
type Relationship struct {
	FromID     string
	FromLabel  string
	ToID       string
	ToLabel    string
	Type       string
	Properties map[string]any
}

// Row is one record returned by a named query.
type Row map[string]any

// Neighbor is one node adjacent to the queried node, along with the
// relationship that connects them.
type Neighbor struct {
	Node         Row
	Relationship Row
}

// RelatedNodesParams selects neighbors of one node. RelType empty means any
// relationship type. Limit <= 0 falls back to a store default.
type RelatedNodesParams struct {
	ID      string
	Label   string
	RelType string
	Limit   int
}

// Store is the graph database surface the engine consumes. Reads are either
// named queries from the closed QueryKind set or the narrow traversal
// helpers; no caller hands the store raw cypher.
type Store interface {
	EnsureSchema(ctx context.Context) error
	CreateNode(ctx context.Context, node Node) error
	CreateRelationship(ctx context.Context, rel Relationship) error
	QueryRows(ctx context.Context, kind QueryKind, params any) ([]Row, error)
	RelatedNodes(ctx context.Context, params RelatedNodesParams) ([]Neighbor, error)
	NodeByID(ctx context.Context, label, id string) (Row, error)
	Stats(ctx context.Context) (types.GraphStats, error)
}
