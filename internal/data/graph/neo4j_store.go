package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/neo4jdb"
)

// Labels and relationship types cannot be bound as cypher parameters, so
// they are interpolated into query text. The closed sets below are the only
// values that ever reach the interpolation.
var knownLabels = map[string]struct{}{
	types.LabelConcept:  {},
	types.LabelActivity: {},
	types.LabelTopic:    {},
}

var knownRelTypes = map[string]struct{}{
	types.EdgeRelatedTo:   {},
	types.EdgeConnects:    {},
	types.EdgeContains:    {},
	types.EdgeLearnedFrom: {},
}

type neo4jStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewStore(client *neo4jdb.Client, log *logger.Logger) (Store, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("neo4j client required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &neo4jStore{
		client: client,
		log:    log.With("service", "Neo4jGraphStore"),
	}, nil
}

// EnsureSchema creates the unique-id constraints. Failures are logged and
// swallowed; restricted users can still run against a pre-provisioned
// database.
func (s *neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT concept_id_unique IF NOT EXISTS FOR (c:Concept) REQUIRE c.id IS UNIQUE`,
		`CREATE CONSTRAINT activity_id_unique IF NOT EXISTS FOR (a:Activity) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT topic_id_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.id IS UNIQUE`,
	}
	for _, stmt := range statements {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			s.log.Warn("neo4j schema init failed (continuing)", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
	return nil
}

func (s *neo4jStore) CreateNode(ctx context.Context, node Node) error {
	label, err := validLabel(node.Label)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(node.ID)
	if id == "" {
		return fmt.Errorf("graph: node id is required")
	}
	props := cloneProps(node.Properties)
	props["id"] = id

	cypher := fmt.Sprintf(`
MERGE (n:%s {id: $id})
ON CREATE SET n += $props
`, label)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"id": id, "props": props})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().NodesCreated(), nil
	})
	if err != nil {
		return fmt.Errorf("create %s node %q: %w", label, id, err)
	}
	if n, ok := created.(int); ok && n == 0 {
		return ErrNodeExists
	}
	return nil
}

func (s *neo4jStore) CreateRelationship(ctx context.Context, rel Relationship) error {
	fromLabel, err := validLabel(rel.FromLabel)
	if err != nil {
		return err
	}
	toLabel, err := validLabel(rel.ToLabel)
	if err != nil {
		return err
	}
	relType, err := validRelType(rel.Type)
	if err != nil {
		return err
	}
	fromID := strings.TrimSpace(rel.FromID)
	toID := strings.TrimSpace(rel.ToID)
	if fromID == "" || toID == "" {
		return fmt.Errorf("graph: relationship endpoints are required")
	}

	// RETURN distinguishes "MATCH found nothing" (zero rows) from "MERGE
	// matched an existing relationship" (row present, zero created).
	cypher := fmt.Sprintf(`
MATCH (a:%s {id: $from_id})
MATCH (b:%s {id: $to_id})
MERGE (a)-[r:%s]->(b)
ON CREATE SET r += $props
RETURN a.id AS from_id
`, fromLabel, toLabel, relType)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"from_id": fromID,
			"to_id":   toID,
			"props":   cloneProps(rel.Properties),
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("endpoint missing: %s %q or %s %q", fromLabel, fromID, toLabel, toID)
		}
		return summary.Counters().RelationshipsCreated(), nil
	})
	if err != nil {
		return fmt.Errorf("create %s relationship %q->%q: %w", relType, fromID, toID, err)
	}
	if n, ok := created.(int); ok && n == 0 {
		return ErrRelationshipExists
	}
	return nil
}

func (s *neo4jStore) QueryRows(ctx context.Context, kind QueryKind, params any) ([]Row, error) {
	cypher, cypherParams, err := resolveQuery(kind, params)
	if err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	rows, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, cypherParams)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Row, 0, len(records))
		for _, record := range records {
			out = append(out, Row(record.AsMap()))
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, err)
	}
	return rows.([]Row), nil
}

func (s *neo4jStore) RelatedNodes(ctx context.Context, params RelatedNodesParams) ([]Neighbor, error) {
	label, err := validLabel(params.Label)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, fmt.Errorf("graph: node id is required")
	}
	relPattern := ""
	if strings.TrimSpace(params.RelType) != "" {
		relType, err := validRelType(params.RelType)
		if err != nil {
			return nil, err
		}
		relPattern = ":" + relType
	}

	// Undirected on purpose: similarity edges are directed in storage but
	// symmetric in meaning.
	cypher := fmt.Sprintf(`
MATCH (n:%s {id: $id})-[r%s]-(m)
RETURN m AS node, r AS rel
LIMIT $limit
`, label, relPattern)

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	neighbors, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{
			"id":    id,
			"limit": queryLimit(params.Limit),
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]Neighbor, 0, len(records))
		for _, record := range records {
			neighbor := Neighbor{Node: Row{}, Relationship: Row{}}
			if rawNode, ok := record.Get("node"); ok {
				if node, ok := rawNode.(dbtype.Node); ok {
					neighbor.Node = Row(cloneProps(node.Props))
					neighbor.Node["labels"] = node.Labels
				}
			}
			if rawRel, ok := record.Get("rel"); ok {
				if relationship, ok := rawRel.(dbtype.Relationship); ok {
					neighbor.Relationship = Row(cloneProps(relationship.Props))
					neighbor.Relationship["type"] = relationship.Type
				}
			}
			out = append(out, neighbor)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("related nodes %s %q: %w", label, id, err)
	}
	return neighbors.([]Neighbor), nil
}

func (s *neo4jStore) NodeByID(ctx context.Context, label, id string) (Row, error) {
	validated, err := validLabel(label)
	if err != nil {
		return nil, err
	}
	nodeID := strings.TrimSpace(id)
	if nodeID == "" {
		return nil, fmt.Errorf("graph: node id is required")
	}

	cypher := fmt.Sprintf(`MATCH (n:%s {id: $id}) RETURN n LIMIT 1`, validated)

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	row, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		rawNode, _ := records[0].Get("n")
		node, ok := rawNode.(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected record shape %T", rawNode)
		}
		out := Row(cloneProps(node.Props))
		out["labels"] = node.Labels
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("node %s %q: %w", validated, nodeID, err)
	}
	if row == nil {
		return nil, nil
	}
	return row.(Row), nil
}

func (s *neo4jStore) Stats(ctx context.Context) (types.GraphStats, error) {
	const cypher = `
MATCH (n)
WITH count(n) AS nodes
OPTIONAL MATCH ()-[r]->()
RETURN nodes, count(r) AS relationships
`

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	stats, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		out := types.GraphStats{}
		if raw, ok := record.Get("nodes"); ok {
			out.Nodes = asInt64(raw)
		}
		if raw, ok := record.Get("relationships"); ok {
			out.Relationships = asInt64(raw)
		}
		return out, nil
	})
	if err != nil {
		return types.GraphStats{}, fmt.Errorf("graph stats: %w", err)
	}
	return stats.(types.GraphStats), nil
}

func (s *neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

func validLabel(label string) (string, error) {
	trimmed := strings.TrimSpace(label)
	if _, ok := knownLabels[trimmed]; !ok {
		return "", fmt.Errorf("graph: unknown node label %q", label)
	}
	return trimmed, nil
}

func validRelType(relType string) (string, error) {
	trimmed := strings.TrimSpace(relType)
	if _, ok := knownRelTypes[trimmed]; !ok {
		return "", fmt.Errorf("graph: unknown relationship type %q", relType)
	}
	return trimmed, nil
}

func cloneProps(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func asInt64(raw any) int64 {
	switch v := raw.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
