package graph

import (
	"fmt"
	"strings"
)

// QueryKind names one read the engine is allowed to run. The set is closed:
// every kind maps to fixed cypher text plus a typed params struct, so a new
// read means a new kind here rather than ad-hoc query strings at call sites.
type QueryKind string

const (
	// QueryAllRelationships returns every relationship with both endpoints,
	// capped at the limit. Feeds the visualization snapshot.
	QueryAllRelationships QueryKind = "all_relationships"
	// QueryConceptsForActivity returns the concepts linked to one activity
	// through LEARNED_FROM edges.
	QueryConceptsForActivity QueryKind = "concepts_for_activity"
	// QueryConceptsWithFirstActivity returns each concept together with its
	// earliest source activity id, which is where its embedding lives.
	QueryConceptsWithFirstActivity QueryKind = "concepts_with_first_activity"
)

type AllRelationshipsParams struct {
	Limit int
}

type ConceptsForActivityParams struct {
	ActivityID string
}

type ConceptsWithFirstActivityParams struct {
	Limit int
}

const defaultQueryLimit = 200

type querySpec struct {
	cypher string
	build  func(params any) (map[string]any, error)
}

var querySpecs = map[QueryKind]querySpec{
	QueryAllRelationships: {
		cypher: `
MATCH (a)-[r]->(b)
RETURN a.id AS from_id, a.name AS from_name, a.title AS from_title, labels(a) AS from_labels,
       b.id AS to_id, b.name AS to_name, b.title AS to_title, labels(b) AS to_labels,
       type(r) AS rel_type, r.similarity AS similarity
LIMIT $limit`,
		build: func(params any) (map[string]any, error) {
			p, ok := params.(AllRelationshipsParams)
			if !ok {
				return nil, paramTypeError(QueryAllRelationships, AllRelationshipsParams{}, params)
			}
			return map[string]any{"limit": queryLimit(p.Limit)}, nil
		},
	},
	QueryConceptsForActivity: {
		cypher: `
MATCH (c:Concept)-[:LEARNED_FROM]->(a:Activity {id: $activity_id})
RETURN c.id AS concept_id, c.name AS concept_name`,
		build: func(params any) (map[string]any, error) {
			p, ok := params.(ConceptsForActivityParams)
			if !ok {
				return nil, paramTypeError(QueryConceptsForActivity, ConceptsForActivityParams{}, params)
			}
			activityID := strings.TrimSpace(p.ActivityID)
			if activityID == "" {
				return nil, fmt.Errorf("graph: %s requires an activity id", QueryConceptsForActivity)
			}
			return map[string]any{"activity_id": activityID}, nil
		},
	},
	QueryConceptsWithFirstActivity: {
		cypher: `
MATCH (c:Concept)-[:LEARNED_FROM]->(a:Activity)
WITH c, a ORDER BY a.timestamp
WITH c, head(collect(a)) AS first
RETURN c.id AS concept_id, c.name AS concept_name, first.id AS activity_id
LIMIT $limit`,
		build: func(params any) (map[string]any, error) {
			p, ok := params.(ConceptsWithFirstActivityParams)
			if !ok {
				return nil, paramTypeError(QueryConceptsWithFirstActivity, ConceptsWithFirstActivityParams{}, params)
			}
			return map[string]any{"limit": queryLimit(p.Limit)}, nil
		},
	},
}

func resolveQuery(kind QueryKind, params any) (string, map[string]any, error) {
	spec, ok := querySpecs[kind]
	if !ok {
		return "", nil, fmt.Errorf("graph: unknown query kind %q", kind)
	}
	built, err := spec.build(params)
	if err != nil {
		return "", nil, err
	}
	return spec.cypher, built, nil
}

func queryLimit(limit int) int64 {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return int64(limit)
}

func paramTypeError(kind QueryKind, want, got any) error {
	return fmt.Errorf("graph: %s expects %T params, got %T", kind, want, got)
}
