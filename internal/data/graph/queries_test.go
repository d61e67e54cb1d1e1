package graph

import (
	"strings"
	"testing"
)

func TestResolveQueryUnknownKind(t *testing.T) {
	_, _, err := resolveQuery(QueryKind("node_degrees"), nil)
	if err == nil {
		t.Fatalf("resolveQuery: expected error for unknown kind")
	}
	if !strings.Contains(err.Error(), "unknown query kind") {
		t.Fatalf("resolveQuery error: got=%v", err)
	}
}

func TestResolveQueryRejectsMismatchedParams(t *testing.T) {
	_, _, err := resolveQuery(QueryAllRelationships, ConceptsForActivityParams{ActivityID: "act-1"})
	if err == nil {
		t.Fatalf("resolveQuery: expected params type error")
	}
	if !strings.Contains(err.Error(), "expects graph.AllRelationshipsParams") {
		t.Fatalf("resolveQuery error: got=%v", err)
	}
}

func TestResolveQueryAllRelationshipsDefaultsLimit(t *testing.T) {
	_, params, err := resolveQuery(QueryAllRelationships, AllRelationshipsParams{})
	if err != nil {
		t.Fatalf("resolveQuery: %v", err)
	}
	if params["limit"] != int64(defaultQueryLimit) {
		t.Fatalf("limit: want=%d got=%v", defaultQueryLimit, params["limit"])
	}
}

func TestResolveQueryAllRelationshipsKeepsExplicitLimit(t *testing.T) {
	cypher, params, err := resolveQuery(QueryAllRelationships, AllRelationshipsParams{Limit: 25})
	if err != nil {
		t.Fatalf("resolveQuery: %v", err)
	}
	if params["limit"] != int64(25) {
		t.Fatalf("limit: want=25 got=%v", params["limit"])
	}
	if !strings.Contains(cypher, "LIMIT $limit") {
		t.Fatalf("cypher missing limit clause: %s", cypher)
	}
}

func TestResolveQueryConceptsForActivityRequiresID(t *testing.T) {
	_, _, err := resolveQuery(QueryConceptsForActivity, ConceptsForActivityParams{ActivityID: "  "})
	if err == nil {
		t.Fatalf("resolveQuery: expected error for missing activity id")
	}
	if !strings.Contains(err.Error(), "requires an activity id") {
		t.Fatalf("resolveQuery error: got=%v", err)
	}
}

func TestResolveQueryConceptsForActivityTrimsID(t *testing.T) {
	_, params, err := resolveQuery(QueryConceptsForActivity, ConceptsForActivityParams{ActivityID: " act-1 "})
	if err != nil {
		t.Fatalf("resolveQuery: %v", err)
	}
	if params["activity_id"] != "act-1" {
		t.Fatalf("activity_id: want=%q got=%v", "act-1", params["activity_id"])
	}
}

func TestResolveQueryConceptsWithFirstActivityOrdersByTimestamp(t *testing.T) {
	cypher, params, err := resolveQuery(QueryConceptsWithFirstActivity, ConceptsWithFirstActivityParams{Limit: 100})
	if err != nil {
		t.Fatalf("resolveQuery: %v", err)
	}
	if params["limit"] != int64(100) {
		t.Fatalf("limit: want=100 got=%v", params["limit"])
	}
	if !strings.Contains(cypher, "ORDER BY a.timestamp") {
		t.Fatalf("cypher missing first-activity ordering: %s", cypher)
	}
}
