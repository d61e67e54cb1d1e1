package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/observability"
	"github.com/Tapu45/CurioAi-sub001/internal/pipeline/graphbuild"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/chroma"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

// topicEdgeSource tags CONTAINS relationships produced by the clusterer.
const topicEdgeSource = "topic_clustering"

// TopicOptions tunes the clustering pass. Zero values fall back to the
// pipeline-spec tuning, then to the clustering defaults.
type TopicOptions struct {
	Threshold      float64 `json:"threshold"`
	MinClusterSize int     `json:"min_cluster_size"`
}

func (o *TopicOptions) applyStage(stage graphbuild.Stage) {
	if o.Threshold <= 0 {
		o.Threshold = stage.Threshold
	}
	if o.MinClusterSize <= 0 {
		o.MinClusterSize = stage.MinClusterSize
	}
}

// TopicBuilder groups related Concepts into Topic nodes with CONTAINS edges.
//
// Topic ids are sequential per run (topic_1, topic_2, ...), so the same
// cluster does not keep its id across runs. Clustering is greedy single-pass
// seed assignment: membership depends on iteration order and there is no
// refinement. Both are documented limitations of the scheme, not bugs.
type TopicBuilder interface {
	BuildTopicClusters(ctx context.Context, opts TopicOptions) (int, error)
}

type topicBuilder struct {
	log     *logger.Logger
	vectors chroma.VectorStore
	store   graph.Store
}

func NewTopicBuilder(baseLog *logger.Logger, vectors chroma.VectorStore, store graph.Store) TopicBuilder {
	return &topicBuilder{
		log:     baseLog.With("service", "TopicBuilder"),
		vectors: vectors,
		store:   store,
	}
}

type clusterItem struct {
	conceptID   string
	conceptName string
	vector      []float32
}

func (s *topicBuilder) BuildTopicClusters(ctx context.Context, opts TopicOptions) (int, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultTopicThreshold
	}
	minSize := opts.MinClusterSize
	if minSize <= 0 {
		minSize = DefaultMinClusterSize
	}

	rows, err := s.store.QueryRows(ctx, graph.QueryConceptsWithFirstActivity, graph.ConceptsWithFirstActivityParams{})
	if err != nil {
		return 0, fmt.Errorf("list concepts: %w", err)
	}

	items := make([]clusterItem, 0, len(rows))
	for _, row := range rows {
		conceptID := rowString(row, "concept_id")
		activityID := rowString(row, "activity_id")
		if conceptID == "" || activityID == "" {
			continue
		}
		rec, err := s.vectors.GetEmbeddingByID(ctx, activityID)
		if err != nil {
			s.log.Warn("embedding fetch failed for concept", "concept", conceptID, "activity", activityID, "error", err)
			continue
		}
		if rec == nil {
			continue
		}
		items = append(items, clusterItem{
			conceptID:   conceptID,
			conceptName: rowString(row, "concept_name"),
			vector:      rec.Vector,
		})
	}
	if len(items) < minSize {
		s.log.Info("not enough clusterable concepts", "count", len(items), "min_cluster_size", minSize)
		return 0, nil
	}

	clusters := s.clusterGreedy(items, threshold)

	metrics := observability.Current()
	created := 0
	seq := 0
	for _, cluster := range clusters {
		if len(cluster) < minSize {
			continue
		}
		seq++
		topicID := fmt.Sprintf("topic_%d", seq)
		name := strings.TrimSpace(cluster[0].conceptName)
		if name == "" {
			name = fmt.Sprintf("Topic %d", seq)
		}

		node := graph.Node{
			Label: types.LabelTopic,
			ID:    topicID,
			Properties: map[string]any{
				"name":      name,
				"size":      len(cluster),
				"createdAt": time.Now().UTC().Format(time.RFC3339),
			},
		}
		switch err := s.store.CreateNode(ctx, node); {
		case err == nil:
		case errors.Is(err, graph.ErrNodeExists):
			// Left over from an earlier run; membership edges still attach.
			s.log.Debug("topic node already present", "topic", topicID)
		default:
			s.log.Warn("topic node create failed", "topic", topicID, "error", err)
			metrics.IncStoreError("neo4j", "create_node")
			continue
		}

		members := 0
		for _, member := range cluster {
			rel := graph.Relationship{
				FromID:    topicID,
				FromLabel: types.LabelTopic,
				ToID:      member.conceptID,
				ToLabel:   types.LabelConcept,
				Type:      types.EdgeContains,
				Properties: map[string]any{
					"source":    topicEdgeSource,
					"createdAt": time.Now().UTC().Format(time.RFC3339),
				},
			}
			switch err := s.store.CreateRelationship(ctx, rel); {
			case err == nil:
				members++
				metrics.IncEdgeCreated(types.EdgeContains)
			case errors.Is(err, graph.ErrRelationshipExists):
				metrics.IncEdgeDuplicate(types.EdgeContains)
			default:
				s.log.Warn("topic membership create failed", "topic", topicID, "concept", member.conceptID, "error", err)
				metrics.IncStoreError("neo4j", "create_relationship")
			}
		}

		created++
		metrics.ObserveTopicCluster(len(cluster))
		s.log.Info("topic cluster created", "topic", topicID, "name", name, "members", members)
	}

	s.log.Info("topic clustering complete", "concepts", len(items), "clusters", created)
	return created, nil
}

// clusterGreedy assigns items in insertion order: each unassigned item opens
// a cluster and claims every later unassigned item whose similarity to the
// seed clears the threshold. One pass, no reassignment.
func (s *topicBuilder) clusterGreedy(items []clusterItem, threshold float64) [][]clusterItem {
	assigned := make([]bool, len(items))
	var clusters [][]clusterItem
	for i := range items {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		cluster := []clusterItem{items[i]}
		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			sim, err := Cosine(items[i].vector, items[j].vector)
			if err != nil {
				s.log.Warn("skipping incomparable concept pair", "a", items[i].conceptID, "b", items[j].conceptID, "error", err)
				continue
			}
			if sim >= threshold {
				assigned[j] = true
				cluster = append(cluster, items[j])
			}
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}
