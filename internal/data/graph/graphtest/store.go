// Package graphtest provides an in-memory graph.Store for service tests.
package graphtest

import (
	"context"
	"sync"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
)

// Store records writes, serves canned reads, and injects failures. The zero
// value is not usable; call NewStore.
type Store struct {
	mu sync.Mutex

	nodes    []graph.Node
	rels     []graph.Relationship
	nodeKeys map[string]struct{}
	relKeys  map[string]struct{}

	// QueryResults serves QueryRows by kind. ConceptsByActivity, when set,
	// overrides QueryConceptsForActivity with per-activity rows.
	QueryResults       map[graph.QueryKind][]graph.Row
	ConceptsByActivity map[string][]graph.Row

	// Neighbors serves RelatedNodes keyed by "<id>|<relType>" ("" relType
	// matches any-type queries).
	Neighbors map[string][]graph.Neighbor

	// NodeRows serves NodeByID keyed by "<label>|<id>".
	NodeRows map[string]graph.Row

	StatsResult types.GraphStats

	FailCreateNode         error
	FailCreateRelationship error
	FailQueryRows          error
	FailRelatedNodes       error
	FailNodeByID           error
	FailStats              error

	// FailNodeKeys / FailRelKeys inject failures for specific writes,
	// keyed like the dedup keys below.
	FailNodeKeys map[string]error
	FailRelKeys  map[string]error

	SchemaCalls int
	QueryCalls  []graph.QueryKind
	QueryParams []any
}

func NewStore() *Store {
	return &Store{
		nodeKeys:           map[string]struct{}{},
		relKeys:            map[string]struct{}{},
		QueryResults:       map[graph.QueryKind][]graph.Row{},
		ConceptsByActivity: map[string][]graph.Row{},
		Neighbors:          map[string][]graph.Neighbor{},
		NodeRows:           map[string]graph.Row{},
		FailNodeKeys:       map[string]error{},
		FailRelKeys:        map[string]error{},
	}
}

var _ graph.Store = (*Store)(nil)

func NodeKey(label, id string) string {
	return label + "|" + id
}

func RelKey(fromID, relType, toID string) string {
	return fromID + "|" + relType + "|" + toID
}

func NeighborKey(id, relType string) string {
	return id + "|" + relType
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SchemaCalls++
	return nil
}

func (s *Store) CreateNode(ctx context.Context, node graph.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateNode != nil {
		return s.FailCreateNode
	}
	key := NodeKey(node.Label, node.ID)
	if err, ok := s.FailNodeKeys[key]; ok {
		return err
	}
	if _, exists := s.nodeKeys[key]; exists {
		return graph.ErrNodeExists
	}
	s.nodeKeys[key] = struct{}{}
	s.nodes = append(s.nodes, node)
	return nil
}

func (s *Store) CreateRelationship(ctx context.Context, rel graph.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateRelationship != nil {
		return s.FailCreateRelationship
	}
	key := RelKey(rel.FromID, rel.Type, rel.ToID)
	if err, ok := s.FailRelKeys[key]; ok {
		return err
	}
	if _, exists := s.relKeys[key]; exists {
		return graph.ErrRelationshipExists
	}
	s.relKeys[key] = struct{}{}
	s.rels = append(s.rels, rel)
	return nil
}

func (s *Store) QueryRows(ctx context.Context, kind graph.QueryKind, params any) ([]graph.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryCalls = append(s.QueryCalls, kind)
	s.QueryParams = append(s.QueryParams, params)
	if s.FailQueryRows != nil {
		return nil, s.FailQueryRows
	}
	if kind == graph.QueryConceptsForActivity {
		if p, ok := params.(graph.ConceptsForActivityParams); ok {
			if rows, ok := s.ConceptsByActivity[p.ActivityID]; ok {
				return rows, nil
			}
		}
	}
	return s.QueryResults[kind], nil
}

func (s *Store) RelatedNodes(ctx context.Context, params graph.RelatedNodesParams) ([]graph.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRelatedNodes != nil {
		return nil, s.FailRelatedNodes
	}
	return s.Neighbors[NeighborKey(params.ID, params.RelType)], nil
}

func (s *Store) NodeByID(ctx context.Context, label, id string) (graph.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNodeByID != nil {
		return nil, s.FailNodeByID
	}
	row, ok := s.NodeRows[NodeKey(label, id)]
	if !ok {
		return nil, nil
	}
	return row, nil
}

func (s *Store) Stats(ctx context.Context) (types.GraphStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailStats != nil {
		return types.GraphStats{}, s.FailStats
	}
	return s.StatsResult, nil
}

// CreatedNodes returns a snapshot of the nodes written so far.
func (s *Store) CreatedNodes() []graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]graph.Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// CreatedRelationships returns a snapshot of the relationships written so far.
func (s *Store) CreatedRelationships() []graph.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]graph.Relationship, len(s.rels))
	copy(out, s.rels)
	return out
}

// RelationshipsOfType filters the recorded relationships.
func (s *Store) RelationshipsOfType(relType string) []graph.Relationship {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graph.Relationship
	for _, rel := range s.rels {
		if rel.Type == relType {
			out = append(out, rel)
		}
	}
	return out
}

// HasRelationship reports whether a directed edge was recorded.
func (s *Store) HasRelationship(fromID, relType, toID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.relKeys[RelKey(fromID, relType, toID)]
	return ok
}

// SeedNode marks a node as pre-existing so later CreateNode calls for the
// same id report graph.ErrNodeExists.
func (s *Store) SeedNode(label, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeKeys[NodeKey(label, id)] = struct{}{}
}

// SeedRelationship marks an edge as pre-existing.
func (s *Store) SeedRelationship(fromID, relType, toID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relKeys[RelKey(fromID, relType, toID)] = struct{}{}
}
