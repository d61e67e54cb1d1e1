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

// Default tuning for the relationship and clustering passes.
const (
	DefaultConceptThreshold  = 0.7
	DefaultConceptLimit      = 100
	DefaultActivityThreshold = 0.75
	DefaultActivityLimit     = 50
	DefaultTopicThreshold    = 0.65
	DefaultMinClusterSize    = 3
)

// edgeSource tags relationships produced by the similarity passes.
const edgeSource = "embedding_similarity"

// BuildPassOptions tunes a single relationship pass. Zero values fall back to
// the pipeline-spec tuning, then to the pass defaults.
type BuildPassOptions struct {
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

func (o *BuildPassOptions) applyStage(stage graphbuild.Stage) {
	if o.Threshold <= 0 {
		o.Threshold = stage.Threshold
	}
	if o.Limit <= 0 {
		o.Limit = stage.Limit
	}
}

// BuildOptions tunes a full knowledge-graph build.
type BuildOptions struct {
	Concepts      BuildPassOptions `json:"concepts"`
	Activities    BuildPassOptions `json:"activities"`
	IncludeTopics bool             `json:"include_topics"`
	Topics        TopicOptions     `json:"topics"`

	// OnStage fires before each enabled stage runs. The scheduler uses it to
	// keep the persisted build-run row current.
	OnStage func(stage string) `json:"-"`
}

// GraphBuilder derives similarity relationships and topic clusters from the
// embedding store and writes them into the graph.
type GraphBuilder interface {
	BuildConceptRelationships(ctx context.Context, opts BuildPassOptions) (int, error)
	BuildActivityRelationships(ctx context.Context, opts BuildPassOptions) (int, error)
	BuildKnowledgeGraph(ctx context.Context, opts BuildOptions) (types.BuildReport, error)
}

type graphBuilder struct {
	log      *logger.Logger
	vectors  chroma.VectorStore
	store    graph.Store
	topics   TopicBuilder
	pipeline *graphbuild.Spec
}

func NewGraphBuilder(baseLog *logger.Logger, vectors chroma.VectorStore, store graph.Store, topics TopicBuilder, pipeline *graphbuild.Spec) GraphBuilder {
	log := baseLog.With("service", "GraphBuilder")
	if pipeline == nil {
		pipeline = graphbuild.Defaults()
	}
	return &graphBuilder{log: log, vectors: vectors, store: store, topics: topics, pipeline: pipeline}
}

// BuildConceptRelationships compares every unordered embedding pair and, for
// pairs at or above the threshold, links the Concepts of one owning Activity
// to the Concepts of the other with RELATED_TO edges. Only the embedding
// fetch is fatal; per-edge failures are logged and skipped.
func (s *graphBuilder) BuildConceptRelationships(ctx context.Context, opts BuildPassOptions) (int, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultConceptThreshold
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultConceptLimit
	}

	batch, err := s.vectors.GetAllEmbeddings(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch embeddings: %w", err)
	}
	records := batch.Records
	if len(records) < 2 {
		s.log.Info("not enough embeddings for concept relationships", "count", len(records))
		return 0, nil
	}

	metrics := observability.Current()
	processed := make(map[string]struct{})
	conceptCache := make(map[string][]string)
	created := 0
	comparisons := 0

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]
			actA := strings.TrimSpace(a.Metadata.ActivityID)
			actB := strings.TrimSpace(b.Metadata.ActivityID)
			if actA == actB {
				continue
			}
			comparisons++
			sim, err := Cosine(a.Vector, b.Vector)
			if err != nil {
				s.log.Warn("skipping incomparable embedding pair", "a", a.ID, "b", b.ID, "error", err)
				continue
			}
			if sim < threshold {
				continue
			}
			key := pairKey(a.ID, b.ID)
			if _, done := processed[key]; done {
				continue
			}
			processed[key] = struct{}{}

			fromConcepts := s.conceptsFor(ctx, conceptCache, actA)
			toConcepts := s.conceptsFor(ctx, conceptCache, actB)
			if len(fromConcepts) == 0 || len(toConcepts) == 0 {
				continue
			}

			createdAt := time.Now().UTC().Format(time.RFC3339)
			for _, from := range fromConcepts {
				for _, to := range toConcepts {
					if from == to {
						continue
					}
					rel := graph.Relationship{
						FromID:    from,
						FromLabel: types.LabelConcept,
						ToID:      to,
						ToLabel:   types.LabelConcept,
						Type:      types.EdgeRelatedTo,
						Properties: map[string]any{
							"similarity": sim,
							"source":     edgeSource,
							"createdAt":  createdAt,
						},
					}
					switch err := s.store.CreateRelationship(ctx, rel); {
					case err == nil:
						created++
						metrics.IncEdgeCreated(types.EdgeRelatedTo)
					case errors.Is(err, graph.ErrRelationshipExists):
						metrics.IncEdgeDuplicate(types.EdgeRelatedTo)
					default:
						s.log.Warn("concept relationship create failed", "from", from, "to", to, "error", err)
						metrics.IncStoreError("neo4j", "create_relationship")
					}
				}
			}
		}
	}

	metrics.AddPairComparisons("concepts", comparisons)
	s.log.Info("concept relationship pass complete",
		"embeddings", len(records),
		"skipped_records", batch.Skipped,
		"comparisons", comparisons,
		"created", created)
	return created, nil
}

// BuildActivityRelationships links owning Activities directly with CONNECTS
// edges for every unordered embedding pair at or above the threshold. The
// processed-set keys on the activity pair, so the first qualifying embedding
// pair decides the edge's similarity.
func (s *graphBuilder) BuildActivityRelationships(ctx context.Context, opts BuildPassOptions) (int, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultActivityThreshold
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	batch, err := s.vectors.GetAllEmbeddings(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch embeddings: %w", err)
	}
	records := batch.Records
	if len(records) < 2 {
		s.log.Info("not enough embeddings for activity relationships", "count", len(records))
		return 0, nil
	}

	metrics := observability.Current()
	processed := make(map[string]struct{})
	created := 0
	comparisons := 0

	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]
			actA := strings.TrimSpace(a.Metadata.ActivityID)
			actB := strings.TrimSpace(b.Metadata.ActivityID)
			if actA == "" || actB == "" || actA == actB {
				continue
			}
			key := pairKey(actA, actB)
			if _, done := processed[key]; done {
				continue
			}
			comparisons++
			sim, err := Cosine(a.Vector, b.Vector)
			if err != nil {
				s.log.Warn("skipping incomparable embedding pair", "a", a.ID, "b", b.ID, "error", err)
				continue
			}
			if sim < threshold {
				continue
			}
			processed[key] = struct{}{}

			rel := graph.Relationship{
				FromID:    actA,
				FromLabel: types.LabelActivity,
				ToID:      actB,
				ToLabel:   types.LabelActivity,
				Type:      types.EdgeConnects,
				Properties: map[string]any{
					"similarity": sim,
					"source":     edgeSource,
					"createdAt":  time.Now().UTC().Format(time.RFC3339),
				},
			}
			switch err := s.store.CreateRelationship(ctx, rel); {
			case err == nil:
				created++
				metrics.IncEdgeCreated(types.EdgeConnects)
			case errors.Is(err, graph.ErrRelationshipExists):
				metrics.IncEdgeDuplicate(types.EdgeConnects)
			default:
				s.log.Warn("activity relationship create failed", "from", actA, "to", actB, "error", err)
				metrics.IncStoreError("neo4j", "create_relationship")
			}
		}
	}

	metrics.AddPairComparisons("activities", comparisons)
	s.log.Info("activity relationship pass complete",
		"embeddings", len(records),
		"skipped_records", batch.Skipped,
		"comparisons", comparisons,
		"created", created)
	return created, nil
}

// BuildKnowledgeGraph runs the enabled pipeline stages in order and stops at
// the first stage failure, returning the counts accumulated so far.
func (s *graphBuilder) BuildKnowledgeGraph(ctx context.Context, opts BuildOptions) (types.BuildReport, error) {
	var report types.BuildReport
	metrics := observability.Current()

	for _, stage := range s.pipeline.Stages {
		if !stage.Enabled {
			s.log.Debug("build stage disabled", "stage", stage.Name)
			continue
		}
		if stage.Name == graphbuild.StageTopicClusters && !opts.IncludeTopics {
			s.log.Debug("topic stage not requested")
			continue
		}
		if opts.OnStage != nil {
			opts.OnStage(stage.Name)
		}

		start := time.Now()
		var stageErr error
		switch stage.Name {
		case graphbuild.StageConceptRelationships:
			pass := opts.Concepts
			pass.applyStage(stage)
			report.ConceptRelationships, stageErr = s.BuildConceptRelationships(ctx, pass)
		case graphbuild.StageActivityRelationships:
			pass := opts.Activities
			pass.applyStage(stage)
			report.ActivityRelationships, stageErr = s.BuildActivityRelationships(ctx, pass)
		case graphbuild.StageTopicClusters:
			topicOpts := opts.Topics
			topicOpts.applyStage(stage)
			report.TopicClusters, stageErr = s.topics.BuildTopicClusters(ctx, topicOpts)
		}

		status := types.BuildStatusSucceeded
		if stageErr != nil {
			status = types.BuildStatusFailed
		}
		metrics.ObserveBuildStage(stage.Name, status, time.Since(start))
		if stageErr != nil {
			return report, fmt.Errorf("%s stage: %w", stage.Name, stageErr)
		}
	}
	return report, nil
}

// conceptsFor resolves the Concept ids learned from an activity, caching
// results for the duration of one pass. Failures are logged, yield an empty
// set, and are not cached.
func (s *graphBuilder) conceptsFor(ctx context.Context, cache map[string][]string, activityID string) []string {
	if activityID == "" {
		return nil
	}
	if ids, ok := cache[activityID]; ok {
		return ids
	}
	rows, err := s.store.QueryRows(ctx, graph.QueryConceptsForActivity, graph.ConceptsForActivityParams{ActivityID: activityID})
	if err != nil {
		s.log.Warn("concept lookup failed", "activity", activityID, "error", err)
		return nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := rowString(row, "concept_id"); id != "" {
			ids = append(ids, id)
		}
	}
	cache[activityID] = ids
	return ids
}

// pairKey is the unordered identity of a processed pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
