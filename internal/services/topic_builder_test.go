package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	"github.com/Tapu45/CurioAi-sub001/internal/data/graph/graphtest"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
)

func conceptWithActivityRow(conceptID, name, activityID string) graph.Row {
	return graph.Row{"concept_id": conceptID, "concept_name": name, "activity_id": activityID}
}

func embPtr(id string, vec ...float32) *types.EmbeddingRecord {
	rec := embRec(id, id, vec...)
	return &rec
}

func TestBuildTopicClustersGroupsSimilarConcepts(t *testing.T) {
	store := graphtest.NewStore()
	store.QueryResults[graph.QueryConceptsWithFirstActivity] = []graph.Row{
		conceptWithActivityRow("c1", "Graphs", "act-1"),
		conceptWithActivityRow("c2", "Trees", "act-2"),
		conceptWithActivityRow("c3", "Heaps", "act-3"),
		conceptWithActivityRow("c4", "Baking", "act-4"),
	}
	vectors := &fakeVectorStore{byID: map[string]*types.EmbeddingRecord{
		"act-1": embPtr("act-1", 0, 1),
		"act-2": embPtr("act-2", 0, 0.9),
		"act-3": embPtr("act-3", 0.1, 0.99),
		"act-4": embPtr("act-4", 1, 0),
	}}

	tb := NewTopicBuilder(newTestLogger(t), vectors, store)
	created, err := tb.BuildTopicClusters(context.Background(), TopicOptions{Threshold: 0.65, MinClusterSize: 3})
	if err != nil {
		t.Fatalf("BuildTopicClusters: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	nodes := store.CreatedNodes()
	if len(nodes) != 1 {
		t.Fatalf("expected 1 topic node, got %d", len(nodes))
	}
	topic := nodes[0]
	if topic.Label != types.LabelTopic || topic.ID != "topic_1" {
		t.Fatalf("topic node = %s/%s, want Topic/topic_1", topic.Label, topic.ID)
	}
	if topic.Properties["name"] != "Graphs" {
		t.Fatalf("topic name = %v, want seed concept name", topic.Properties["name"])
	}
	if topic.Properties["size"] != 3 {
		t.Fatalf("topic size = %v, want 3", topic.Properties["size"])
	}

	for _, conceptID := range []string{"c1", "c2", "c3"} {
		if !store.HasRelationship("topic_1", types.EdgeContains, conceptID) {
			t.Fatalf("missing CONTAINS edge to %s", conceptID)
		}
	}
	if store.HasRelationship("topic_1", types.EdgeContains, "c4") {
		t.Fatalf("dissimilar concept must stay un-clustered")
	}
}

func TestBuildTopicClustersDiscardsSmallClusters(t *testing.T) {
	// Two tight pairs, nothing reaches the minimum cluster size of 3.
	store := graphtest.NewStore()
	store.QueryResults[graph.QueryConceptsWithFirstActivity] = []graph.Row{
		conceptWithActivityRow("c1", "Graphs", "act-1"),
		conceptWithActivityRow("c2", "Trees", "act-2"),
		conceptWithActivityRow("c3", "Baking", "act-3"),
		conceptWithActivityRow("c4", "Roasting", "act-4"),
	}
	vectors := &fakeVectorStore{byID: map[string]*types.EmbeddingRecord{
		"act-1": embPtr("act-1", 0, 1),
		"act-2": embPtr("act-2", 0, 1),
		"act-3": embPtr("act-3", 1, 0),
		"act-4": embPtr("act-4", 1, 0),
	}}

	tb := NewTopicBuilder(newTestLogger(t), vectors, store)
	created, err := tb.BuildTopicClusters(context.Background(), TopicOptions{Threshold: 0.65, MinClusterSize: 3})
	if err != nil {
		t.Fatalf("BuildTopicClusters: %v", err)
	}
	if created != 0 {
		t.Fatalf("created = %d, want 0", created)
	}
	if len(store.CreatedNodes()) != 0 {
		t.Fatalf("no topic nodes expected")
	}
	if len(store.CreatedRelationships()) != 0 {
		t.Fatalf("no CONTAINS edges expected")
	}
}

func TestBuildTopicClustersSkipsUnresolvableEmbeddings(t *testing.T) {
	store := graphtest.NewStore()
	store.QueryResults[graph.QueryConceptsWithFirstActivity] = []graph.Row{
		conceptWithActivityRow("c1", "Graphs", "act-1"),
		conceptWithActivityRow("c2", "Trees", "act-2"),
		conceptWithActivityRow("c3", "Heaps", "act-3"),
		conceptWithActivityRow("c4", "Sorting", "act-4"),
		conceptWithActivityRow("c5", "Queues", "act-5"),
	}
	vectors := &fakeVectorStore{
		byID: map[string]*types.EmbeddingRecord{
			"act-1": embPtr("act-1", 0, 1),
			"act-3": embPtr("act-3", 0, 0.9),
			"act-4": embPtr("act-4", 0.1, 0.99),
			// act-2 absent: vector store has no record.
		},
		idErrs: map[string]error{"act-5": errors.New("chroma timeout")},
	}

	tb := NewTopicBuilder(newTestLogger(t), vectors, store)
	created, err := tb.BuildTopicClusters(context.Background(), TopicOptions{Threshold: 0.65, MinClusterSize: 3})
	if err != nil {
		t.Fatalf("unresolvable embeddings must not be fatal: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	for _, conceptID := range []string{"c1", "c3", "c4"} {
		if !store.HasRelationship("topic_1", types.EdgeContains, conceptID) {
			t.Fatalf("missing CONTAINS edge to %s", conceptID)
		}
	}
	if store.HasRelationship("topic_1", types.EdgeContains, "c2") || store.HasRelationship("topic_1", types.EdgeContains, "c5") {
		t.Fatalf("skipped concepts must not join clusters")
	}
}

func TestBuildTopicClustersConceptListingIsFatal(t *testing.T) {
	store := graphtest.NewStore()
	store.FailQueryRows = errors.New("neo4j unavailable")
	tb := NewTopicBuilder(newTestLogger(t), &fakeVectorStore{}, store)

	if _, err := tb.BuildTopicClusters(context.Background(), TopicOptions{}); err == nil {
		t.Fatalf("expected listing failure to propagate")
	}
}

func TestBuildTopicClustersNodeFailureSkipsCluster(t *testing.T) {
	// Two qualifying clusters; the first topic node write fails. Its members
	// get no edges, the second cluster still materializes as topic_2.
	store := graphtest.NewStore()
	store.QueryResults[graph.QueryConceptsWithFirstActivity] = []graph.Row{
		conceptWithActivityRow("c1", "Graphs", "act-1"),
		conceptWithActivityRow("c2", "Trees", "act-2"),
		conceptWithActivityRow("c3", "Heaps", "act-3"),
		conceptWithActivityRow("c4", "Baking", "act-4"),
		conceptWithActivityRow("c5", "Roasting", "act-5"),
		conceptWithActivityRow("c6", "Frying", "act-6"),
	}
	vectors := &fakeVectorStore{byID: map[string]*types.EmbeddingRecord{
		"act-1": embPtr("act-1", 0, 1),
		"act-2": embPtr("act-2", 0, 1),
		"act-3": embPtr("act-3", 0, 1),
		"act-4": embPtr("act-4", 1, 0),
		"act-5": embPtr("act-5", 1, 0),
		"act-6": embPtr("act-6", 1, 0),
	}}
	store.FailNodeKeys[graphtest.NodeKey(types.LabelTopic, "topic_1")] = errors.New("write refused")

	tb := NewTopicBuilder(newTestLogger(t), vectors, store)
	created, err := tb.BuildTopicClusters(context.Background(), TopicOptions{Threshold: 0.65, MinClusterSize: 3})
	if err != nil {
		t.Fatalf("per-cluster failure must not abort the pass: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if len(store.RelationshipsOfType(types.EdgeContains)) != 3 {
		t.Fatalf("only the surviving cluster should get edges")
	}
	for _, conceptID := range []string{"c4", "c5", "c6"} {
		if !store.HasRelationship("topic_2", types.EdgeContains, conceptID) {
			t.Fatalf("missing CONTAINS edge to %s", conceptID)
		}
	}
}

func TestBuildTopicClustersReusesLeftoverTopicNode(t *testing.T) {
	store := graphtest.NewStore()
	store.QueryResults[graph.QueryConceptsWithFirstActivity] = []graph.Row{
		conceptWithActivityRow("c1", "Graphs", "act-1"),
		conceptWithActivityRow("c2", "Trees", "act-2"),
		conceptWithActivityRow("c3", "Heaps", "act-3"),
	}
	vectors := &fakeVectorStore{byID: map[string]*types.EmbeddingRecord{
		"act-1": embPtr("act-1", 0, 1),
		"act-2": embPtr("act-2", 0, 1),
		"act-3": embPtr("act-3", 0, 1),
	}}
	store.SeedNode(types.LabelTopic, "topic_1")

	tb := NewTopicBuilder(newTestLogger(t), vectors, store)
	created, err := tb.BuildTopicClusters(context.Background(), TopicOptions{Threshold: 0.65, MinClusterSize: 3})
	if err != nil {
		t.Fatalf("BuildTopicClusters: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if len(store.RelationshipsOfType(types.EdgeContains)) != 3 {
		t.Fatalf("membership edges must attach to the existing node")
	}
}

func TestBuildTopicClustersGreedySingleLink(t *testing.T) {
	// x~y and y~z clear the threshold but x~z does not. The seed is x, so z
	// is left out: membership follows the seed, not transitive similarity.
	store := graphtest.NewStore()
	store.QueryResults[graph.QueryConceptsWithFirstActivity] = []graph.Row{
		conceptWithActivityRow("x", "Graphs", "act-x"),
		conceptWithActivityRow("y", "Trees", "act-y"),
		conceptWithActivityRow("z", "Heaps", "act-z"),
	}
	vectors := &fakeVectorStore{byID: map[string]*types.EmbeddingRecord{
		"act-x": embPtr("act-x", 1, 0),
		"act-y": embPtr("act-y", 0.8, 0.6),
		"act-z": embPtr("act-z", 0.34, 0.94),
	}}

	tb := NewTopicBuilder(newTestLogger(t), vectors, store)
	created, err := tb.BuildTopicClusters(context.Background(), TopicOptions{Threshold: 0.65, MinClusterSize: 2})
	if err != nil {
		t.Fatalf("BuildTopicClusters: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if !store.HasRelationship("topic_1", types.EdgeContains, "x") || !store.HasRelationship("topic_1", types.EdgeContains, "y") {
		t.Fatalf("seed cluster should contain x and y")
	}
	if store.HasRelationship("topic_1", types.EdgeContains, "z") {
		t.Fatalf("z is not similar to the seed and must stay out")
	}
}
