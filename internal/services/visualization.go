package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/observability"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/rediscache"
)

// DefaultVizLimit caps the relationship window when the caller does not.
const DefaultVizLimit = 200

const (
	vizCacheTTL   = 60 * time.Second
	statsCacheTTL = 30 * time.Second
)

// VisualizationService reads the graph for UI consumption. It never writes
// and may observe a graph mid-build; a snapshot is coherent in shape, not
// transactional.
type VisualizationService interface {
	GetVisualizationData(ctx context.Context, opts VizOptions) (types.VizData, error)
	GetConceptDetails(ctx context.Context, name string) (*types.ConceptDetails, error)
	GetGraphStatistics(ctx context.Context) (types.GraphStats, error)
}

type visualizationService struct {
	log   *logger.Logger
	store graph.Store
	cache *rediscache.Cache
}

// NewVisualizationService wires the read side. cache may be nil, which
// disables caching without changing behavior.
func NewVisualizationService(baseLog *logger.Logger, store graph.Store, cache *rediscache.Cache) VisualizationService {
	return &visualizationService{
		log:   baseLog.With("service", "Visualization"),
		store: store,
		cache: cache,
	}
}

// GetVisualizationData fetches up to opts.Limit relationship rows and folds
// them into the bounded node/edge/topic payload. Identical option sets share
// a short-lived cache entry.
func (s *visualizationService) GetVisualizationData(ctx context.Context, opts VizOptions) (types.VizData, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultVizLimit
	}
	metrics := observability.Current()

	key := s.cache.Key("viz", vizCacheField(opts))
	if s.cache.Enabled() {
		var cached types.VizData
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.log.Warn("visualization cache read failed", "error", err)
		} else if hit {
			metrics.IncCacheHit("visualization")
			return cached, nil
		}
		metrics.IncCacheMiss("visualization")
	}

	rows, err := s.store.QueryRows(ctx, graph.QueryAllRelationships, graph.AllRelationshipsParams{Limit: opts.Limit})
	if err != nil {
		return types.VizData{}, fmt.Errorf("fetch relationships: %w", err)
	}
	data := foldSnapshot(rows, opts)

	if err := s.cache.SetJSON(ctx, key, data, vizCacheTTL); err != nil {
		s.log.Warn("visualization cache write failed", "error", err)
	}
	return data, nil
}

// GetConceptDetails resolves a concept by the deterministic id derived from
// its name and loads its neighborhood. A concept that does not exist returns
// (nil, nil).
func (s *visualizationService) GetConceptDetails(ctx context.Context, name string) (*types.ConceptDetails, error) {
	id := types.ConceptID(name)
	node, err := s.store.NodeByID(ctx, types.LabelConcept, id)
	if err != nil {
		return nil, fmt.Errorf("fetch concept %q: %w", name, err)
	}
	if node == nil {
		return nil, nil
	}

	details := &types.ConceptDetails{
		Concept: types.ConceptNode{
			ID:    id,
			Name:  rowString(node, "name"),
			Label: rowString(node, "label"),
		},
		RelatedConcepts: []types.RelatedConcept{},
		Activities:      []types.ActivitySource{},
	}
	if conf, ok := rowFloat(node, "confidence"); ok {
		details.Concept.Confidence = conf
	}

	// The two neighbor reads are independent of each other.
	var related, sources []graph.Neighbor
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		related, err = s.store.RelatedNodes(gctx, graph.RelatedNodesParams{
			ID:      id,
			Label:   types.LabelConcept,
			RelType: types.EdgeRelatedTo,
		})
		return err
	})
	g.Go(func() error {
		var err error
		sources, err = s.store.RelatedNodes(gctx, graph.RelatedNodesParams{
			ID:      id,
			Label:   types.LabelConcept,
			RelType: types.EdgeLearnedFrom,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch concept neighborhood %q: %w", name, err)
	}

	for _, n := range related {
		rc := types.RelatedConcept{
			ID:   rowString(n.Node, "id"),
			Name: rowString(n.Node, "name"),
		}
		if rc.ID == "" {
			continue
		}
		if sim, ok := rowFloat(n.Relationship, "similarity"); ok {
			rc.Similarity = sim
		}
		details.RelatedConcepts = append(details.RelatedConcepts, rc)
	}
	for _, n := range sources {
		src := types.ActivitySource{
			ID:         rowString(n.Node, "id"),
			Title:      rowString(n.Node, "title"),
			SourceType: rowString(n.Node, "sourceType"),
		}
		if src.ID == "" {
			continue
		}
		details.Activities = append(details.Activities, src)
	}
	return details, nil
}

// GetGraphStatistics returns node and relationship counts. A store failure
// propagates to the caller.
func (s *visualizationService) GetGraphStatistics(ctx context.Context) (types.GraphStats, error) {
	metrics := observability.Current()
	key := s.cache.Key("stats")
	if s.cache.Enabled() {
		var cached types.GraphStats
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
			s.log.Warn("stats cache read failed", "error", err)
		} else if hit {
			metrics.IncCacheHit("stats")
			return cached, nil
		}
		metrics.IncCacheMiss("stats")
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		return types.GraphStats{}, fmt.Errorf("fetch graph stats: %w", err)
	}
	metrics.SetGraphSize(stats.Nodes, stats.Relationships)

	if err := s.cache.SetJSON(ctx, key, stats, statsCacheTTL); err != nil {
		s.log.Warn("stats cache write failed", "error", err)
	}
	return stats, nil
}

// vizCacheField fingerprints the options so distinct views cache separately.
func vizCacheField(opts VizOptions) string {
	return fmt.Sprintf("%d:%d:%t:%t", opts.Limit, opts.MinNodeDegree, opts.IncludeActivities, opts.IncludeTopics)
}
