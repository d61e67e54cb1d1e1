package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	"github.com/Tapu45/CurioAi-sub001/internal/data/repos"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/observability"
	"github.com/Tapu45/CurioAi-sub001/internal/pkg/dbctx"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/rediscache"
)

// DefaultBuildInterval is used when no scheduler interval is configured.
const DefaultBuildInterval = time.Hour

// buildRunTimeout bounds a scheduled build. Manual builds run under the
// caller's context instead.
const buildRunTimeout = 30 * time.Minute

// SchedulerStatus reports the two independent scheduler flags: whether a
// build is executing right now and whether the periodic timer is installed.
type SchedulerStatus struct {
	IsRunning   bool `json:"is_running"`
	IsScheduled bool `json:"is_scheduled"`
}

// TriggerResult is the outcome of a manual build trigger. Rejections carry
// Message, failures carry Error, successes carry Results.
type TriggerResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Results *types.BuildReport `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// GraphScheduler runs knowledge-graph builds on a fixed interval and on
// demand. At most one build executes at a time: a scheduled tick that finds
// a build in flight skips silently, a manual trigger is rejected with a
// structured result instead.
type GraphScheduler interface {
	Start() error
	Stop()
	TriggerManualBuild(ctx context.Context, opts BuildOptions) TriggerResult
	Status() SchedulerStatus
}

// buildGate is the single-flight guard shared by scheduled and manual
// triggers. Concurrent triggers are rejected, never queued.
type buildGate struct {
	mu      sync.Mutex
	running bool
}

func (g *buildGate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}
	g.running = true
	return true
}

func (g *buildGate) Release() {
	g.mu.Lock()
	g.running = false
	g.mu.Unlock()
}

func (g *buildGate) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

type graphScheduler struct {
	log      *logger.Logger
	builder  GraphBuilder
	store    graph.Store
	runs     repos.BuildRunRepo
	cache    *rediscache.Cache
	interval time.Duration
	defaults BuildOptions

	gate buildGate

	mu   sync.Mutex
	cron *cron.Cron
}

// NewGraphScheduler wires the build loop. runs and cache may be nil, in
// which case build history is not persisted and no cache is invalidated.
// defaults are the options applied to scheduled builds.
func NewGraphScheduler(baseLog *logger.Logger, builder GraphBuilder, store graph.Store, runs repos.BuildRunRepo, cache *rediscache.Cache, interval time.Duration, defaults BuildOptions) GraphScheduler {
	if interval <= 0 {
		interval = DefaultBuildInterval
	}
	return &graphScheduler{
		log:      baseLog.With("service", "GraphScheduler"),
		builder:  builder,
		store:    store,
		runs:     runs,
		cache:    cache,
		interval: interval,
		defaults: defaults,
	}
}

// Start installs the periodic build timer. Calling Start on a scheduler
// that is already scheduled is a no-op.
func (s *graphScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	spec := "@every " + s.interval.String()
	if _, err := c.AddFunc(spec, s.runScheduled); err != nil {
		return fmt.Errorf("install build schedule %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("build scheduler started", "interval", s.interval.String())
	return nil
}

// Stop cancels the timer. An in-flight build keeps running to completion.
func (s *graphScheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	c.Stop()
	s.log.Info("build scheduler stopped")
}

func (s *graphScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	scheduled := s.cron != nil
	s.mu.Unlock()
	return SchedulerStatus{
		IsRunning:   s.gate.Running(),
		IsScheduled: scheduled,
	}
}

// TriggerManualBuild runs a full build immediately unless one is already in
// flight. It blocks until the build finishes, so callers control the
// deadline through ctx.
func (s *graphScheduler) TriggerManualBuild(ctx context.Context, opts BuildOptions) TriggerResult {
	if !s.gate.TryAcquire() {
		s.log.Info("manual build rejected, another build is in flight")
		observability.Current().IncSchedulerSkip(types.BuildTriggerManual)
		return TriggerResult{Success: false, Message: "already running"}
	}
	defer s.gate.Release()

	report, err := s.runBuild(ctx, types.BuildTriggerManual, opts)
	if err != nil {
		return TriggerResult{Success: false, Error: err.Error()}
	}
	return TriggerResult{Success: true, Results: &report}
}

// runScheduled is the cron tick. Builds run detached from the scheduler
// lifecycle so stopping the timer never interrupts a build in progress.
func (s *graphScheduler) runScheduled() {
	if !s.gate.TryAcquire() {
		s.log.Info("scheduled build skipped, previous build still running")
		observability.Current().IncSchedulerSkip(types.BuildTriggerScheduled)
		return
	}
	defer s.gate.Release()

	ctx, cancel := context.WithTimeout(context.Background(), buildRunTimeout)
	defer cancel()
	if _, err := s.runBuild(ctx, types.BuildTriggerScheduled, s.defaults); err != nil {
		s.log.Error("scheduled build failed", "error", err)
	}
}

// runBuild executes one full build under the gate: record the run, execute
// the stages, finish the run, then refresh gauges and drop stale caches on
// success. The caller holds the gate.
func (s *graphScheduler) runBuild(ctx context.Context, trigger string, opts BuildOptions) (types.BuildReport, error) {
	start := time.Now()
	run := s.recordStart(ctx, trigger, opts)
	if run != nil {
		prev := opts.OnStage
		opts.OnStage = func(stage string) {
			if prev != nil {
				prev(stage)
			}
			if err := s.runs.UpdateStage(dbctx.Context{Ctx: ctx}, run.ID, stage); err != nil {
				s.log.Warn("build stage update failed", "run", run.ID, "stage", stage, "error", err)
			}
		}
	}

	report, err := s.builder.BuildKnowledgeGraph(ctx, opts)
	outcome := types.BuildStatusSucceeded
	buildErr := ""
	if err != nil {
		outcome = types.BuildStatusFailed
		buildErr = err.Error()
	}
	observability.Current().ObserveBuild(trigger, outcome, time.Since(start))
	s.recordFinish(ctx, run, outcome, report, buildErr)
	if err != nil {
		return report, err
	}

	s.afterBuild(ctx, report)
	return report, nil
}

func (s *graphScheduler) recordStart(ctx context.Context, trigger string, opts BuildOptions) *types.BuildRun {
	if s.runs == nil {
		return nil
	}
	params, err := json.Marshal(opts)
	if err != nil {
		params = nil
	}
	run, err := s.runs.Create(dbctx.Context{Ctx: ctx}, &types.BuildRun{
		Trigger: trigger,
		Status:  types.BuildStatusRunning,
		Params:  datatypes.JSON(params),
	})
	if err != nil {
		s.log.Warn("build run record failed", "trigger", trigger, "error", err)
		return nil
	}
	return run
}

func (s *graphScheduler) recordFinish(ctx context.Context, run *types.BuildRun, status string, report types.BuildReport, buildErr string) {
	if s.runs == nil || run == nil {
		return
	}
	if err := s.runs.Finish(dbctx.Context{Ctx: ctx}, run.ID, status, report, buildErr); err != nil {
		s.log.Warn("build run finish failed", "run", run.ID, "error", err)
	}
}

// afterBuild refreshes the graph-size gauge and invalidates cached
// visualization payloads, which describe a graph that no longer exists.
func (s *graphScheduler) afterBuild(ctx context.Context, report types.BuildReport) {
	if s.store != nil {
		if stats, err := s.store.Stats(ctx); err != nil {
			s.log.Warn("graph stats refresh failed", "error", err)
		} else {
			observability.Current().SetGraphSize(stats.Nodes, stats.Relationships)
		}
	}
	if s.cache.Enabled() {
		if err := s.cache.InvalidateNamespace(ctx); err != nil {
			s.log.Warn("cache invalidation failed", "error", err)
		}
	}
	s.log.Info("knowledge graph build complete",
		"concept_relationships", report.ConceptRelationships,
		"activity_relationships", report.ActivityRelationships,
		"topic_clusters", report.TopicClusters)
}
