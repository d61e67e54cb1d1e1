package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	buildTotal      *CounterVec
	buildDuration   *HistogramVec
	buildRunTotal   *Counter
	buildRunError   *Counter
	buildStage      *HistogramVec
	buildStageCt    *CounterVec
	buildStageTotal *Counter
	buildStageError *Counter

	pairComparisons *CounterVec
	edgesCreated    *CounterVec
	edgesDuplicate  *CounterVec
	storeErrors     *CounterVec
	schedulerSkips  *CounterVec

	cacheHits   *CounterVec
	cacheMisses *CounterVec

	topicsCreated *Counter
	clusterSize   *HistogramVec
	graphSize     *GaugeVec

	runDepth  *GaugeVec
	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	sloCompliance *GaugeVec
	sloBudget     *GaugeVec
	sloBurn       *GaugeVec

	sloLatencyThreshold float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		latencyThreshold := 0.5
		if v := strings.TrimSpace(os.Getenv("SLO_API_LATENCY_THRESHOLD_SECONDS")); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				latencyThreshold = f
			}
		}
		instance = &Metrics{
			apiRequests: NewCounterVec("curio_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"curio_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			),
			apiInflight: NewGauge("curio_api_inflight_requests", "In-flight API requests."),
			apiReqTotal: NewCounter("curio_api_requests_total_all", "Total API requests (all)."),
			apiReqError: NewCounter("curio_api_requests_error_total", "Total API requests with 5xx status."),
			apiReqGood:  NewCounter("curio_api_requests_good_latency_total", "Total API requests under SLO latency threshold."),
			buildTotal: NewCounterVec(
				"curio_graph_builds_total",
				"Knowledge-graph builds by trigger/outcome.",
				[]string{"trigger", "outcome"},
			),
			buildDuration: NewHistogramVec(
				"curio_graph_build_duration_seconds",
				"Full knowledge-graph build duration in seconds.",
				[]string{"trigger", "outcome"},
				[]float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
			),
			buildRunTotal: NewCounter("curio_graph_builds_total_all", "Knowledge-graph builds (all)."),
			buildRunError: NewCounter("curio_graph_builds_failed_total", "Knowledge-graph builds that failed."),
			buildStage: NewHistogramVec(
				"curio_graph_build_stage_duration_seconds",
				"Graph build stage duration in seconds.",
				[]string{"stage", "status"},
				[]float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			),
			buildStageCt: NewCounterVec(
				"curio_graph_build_stage_total",
				"Graph build stage count by stage/status.",
				[]string{"stage", "status"},
			),
			buildStageTotal: NewCounter("curio_graph_build_stage_total_all", "Graph build stage count (all)."),
			buildStageError: NewCounter("curio_graph_build_stage_error_total", "Graph build stage count with failure status."),
			pairComparisons: NewCounterVec(
				"curio_similarity_pair_comparisons_total",
				"Embedding pair comparisons by relationship pass.",
				[]string{"pass"},
			),
			edgesCreated: NewCounterVec(
				"curio_graph_edges_created_total",
				"Graph relationships created by type.",
				[]string{"type"},
			),
			edgesDuplicate: NewCounterVec(
				"curio_graph_edges_duplicate_total",
				"Graph relationship creates skipped as duplicates by type.",
				[]string{"type"},
			),
			storeErrors: NewCounterVec(
				"curio_store_errors_total",
				"Backing store errors by store/operation.",
				[]string{"store", "op"},
			),
			schedulerSkips: NewCounterVec(
				"curio_scheduler_skipped_builds_total",
				"Build requests rejected because a build was already running, by trigger.",
				[]string{"trigger"},
			),
			cacheHits: NewCounterVec(
				"curio_cache_hits_total",
				"Cache hits by payload kind.",
				[]string{"kind"},
			),
			cacheMisses: NewCounterVec(
				"curio_cache_misses_total",
				"Cache misses by payload kind.",
				[]string{"kind"},
			),
			topicsCreated: NewCounter("curio_topic_clusters_created_total", "Topic cluster nodes created."),
			clusterSize: NewHistogramVec(
				"curio_topic_cluster_size",
				"Concept count per created topic cluster.",
				[]string{},
				[]float64{1, 2, 3, 5, 8, 13, 21, 34},
			),
			graphSize:           NewGaugeVec("curio_graph_size", "Graph size by kind (nodes, relationships).", []string{"kind"}),
			runDepth:            NewGaugeVec("curio_build_runs", "Build run history rows by status.", []string{"status"}),
			pgStats:             NewGaugeVec("curio_sql_stats", "SQL connection pool stats.", []string{"metric"}),
			redisUp:             NewGauge("curio_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing:           NewGauge("curio_redis_ping_seconds", "Redis ping latency in seconds."),
			sloCompliance:       NewGaugeVec("curio_slo_compliance_ratio", "Rolling SLI per objective and window.", []string{"slo", "window"}),
			sloBudget:           NewGaugeVec("curio_slo_error_budget_remaining", "Remaining error budget per objective (0-1).", []string{"slo", "window"}),
			sloBurn:             NewGaugeVec("curio_slo_burn_rate", "Error budget burn rate per objective.", []string{"slo", "window"}),
			sloLatencyThreshold: latencyThreshold,
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	if err := m.apiRequests.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.apiLatency.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.apiInflight.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.apiReqTotal.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.apiReqError.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.apiReqGood.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildTotal.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildDuration.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildRunTotal.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildRunError.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildStage.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildStageCt.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildStageTotal.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.buildStageError.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.pairComparisons.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.edgesCreated.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.edgesDuplicate.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.storeErrors.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.schedulerSkips.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.cacheHits.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.cacheMisses.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.topicsCreated.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.clusterSize.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.graphSize.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.runDepth.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.pgStats.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.redisUp.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.redisPing.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.sloCompliance.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.sloBudget.WritePrometheus(w); err != nil {
		return err
	}
	if err := m.sloBurn.WritePrometheus(w); err != nil {
		return err
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
	if m.sloLatencyThreshold > 0 && dur.Seconds() <= m.sloLatencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveBuild(trigger, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.buildTotal.Inc(trigger, outcome)
	m.buildRunTotal.Inc()
	if isFailureStatus(outcome) {
		m.buildRunError.Inc()
	}
	if dur > 0 {
		m.buildDuration.Observe(dur.Seconds(), trigger, outcome)
	}
}

func (m *Metrics) ObserveBuildStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.buildStageCt.Inc(stage, status)
	m.buildStageTotal.Inc()
	if isFailureStatus(status) {
		m.buildStageError.Inc()
	}
	if dur > 0 {
		m.buildStage.Observe(dur.Seconds(), stage, status)
	}
}

func (m *Metrics) AddPairComparisons(pass string, n int) {
	if m == nil || n <= 0 {
		return
	}
	if pass == "" {
		pass = "unknown"
	}
	m.pairComparisons.Add(float64(n), pass)
}

func (m *Metrics) IncEdgeCreated(relType string) {
	if m == nil {
		return
	}
	if relType == "" {
		relType = "unknown"
	}
	m.edgesCreated.Inc(relType)
}

func (m *Metrics) IncEdgeDuplicate(relType string) {
	if m == nil {
		return
	}
	if relType == "" {
		relType = "unknown"
	}
	m.edgesDuplicate.Inc(relType)
}

func (m *Metrics) IncStoreError(store, op string) {
	if m == nil {
		return
	}
	if store == "" {
		store = "unknown"
	}
	if op == "" {
		op = "unknown"
	}
	m.storeErrors.Inc(store, op)
}

func (m *Metrics) IncSchedulerSkip(trigger string) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	m.schedulerSkips.Inc(trigger)
}

func (m *Metrics) IncCacheHit(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.cacheHits.Inc(kind)
}

func (m *Metrics) IncCacheMiss(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.cacheMisses.Inc(kind)
}

func (m *Metrics) ObserveTopicCluster(size int) {
	if m == nil {
		return
	}
	if size < 0 {
		size = 0
	}
	m.topicsCreated.Inc()
	m.clusterSize.Observe(float64(size))
}

func (m *Metrics) SetGraphSize(nodes, relationships int64) {
	if m == nil {
		return
	}
	m.graphSize.Set(float64(nodes), "nodes")
	m.graphSize.Set(float64(relationships), "relationships")
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: sql stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func (m *Metrics) StartBuildRunCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{types.BuildStatusRunning, types.BuildStatusSucceeded, types.BuildStatusFailed}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, s := range statuses {
					m.runDepth.Set(0, s)
				}
				var rows []struct {
					Status string
					Count  int64
				}
				if err := db.WithContext(ctx).
					Model(&types.BuildRun{}).
					Select("status, count(*) as count").
					Group("status").
					Scan(&rows).Error; err != nil {
					if log != nil {
						log.Warn("metrics: build run depth query failed", "error", err)
					}
					continue
				}
				for _, row := range rows {
					status := strings.TrimSpace(row.Status)
					if status == "" {
						status = "unknown"
					}
					m.runDepth.Set(float64(row.Count), status)
				}
			}
		}
	}()
}

// ---- lightweight metric primitives (Prometheus exposition) ----

type CounterVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewCounterVec(name, help string, labels []string) *CounterVec {
	return &CounterVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (c *CounterVec) Inc(values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl]++
	c.mu.Unlock()
}

func (c *CounterVec) Add(v float64, values ...string) {
	if c == nil {
		return
	}
	lbl := labelString(c.labelNames, values)
	c.mu.Lock()
	c.values[lbl] += v
	c.mu.Unlock()
}

func (c *CounterVec) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", c.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type Counter struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Inc() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val++
	c.mu.Unlock()
}

func (c *Counter) Add(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.val += v
	c.mu.Unlock()
}

func (c *Counter) Value() float64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val
}

func (c *Counter) WritePrometheus(w io.Writer) error {
	if c == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", c.name, c.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s counter\n", c.name); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", c.name, c.val)
	return err
}

type Gauge struct {
	name string
	help string
	mu   sync.RWMutex
	val  float64
}

func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Set(v float64) {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *Gauge) Inc() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val++
	g.mu.Unlock()
}

func (g *Gauge) Dec() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.val--
	g.mu.Unlock()
}

func (g *Gauge) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := fmt.Fprintf(w, "%s %f\n", g.name, g.val)
	return err
}

type GaugeVec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]float64
}

func NewGaugeVec(name, help string, labels []string) *GaugeVec {
	return &GaugeVec{name: name, help: help, labelNames: labels, values: map[string]float64{}}
}

func (g *GaugeVec) Set(v float64, values ...string) {
	if g == nil {
		return
	}
	lbl := labelString(g.labelNames, values)
	g.mu.Lock()
	g.values[lbl] = v
	g.mu.Unlock()
}

func (g *GaugeVec) WritePrometheus(w io.Writer) error {
	if g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", g.name, g.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s gauge\n", g.name); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for k, v := range g.values {
		if _, err := fmt.Fprintf(w, "%s%s %f\n", g.name, k, v); err != nil {
			return err
		}
	}
	return nil
}

type HistogramVec struct {
	name       string
	help       string
	labelNames []string
	buckets    []float64
	mu         sync.RWMutex
	values     map[string]*histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	total   uint64
}

func NewHistogramVec(name, help string, labels []string, buckets []float64) *HistogramVec {
	if len(buckets) == 0 {
		buckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}
	}
	return &HistogramVec{name: name, help: help, labelNames: labels, buckets: buckets, values: map[string]*histogram{}}
}

func (h *HistogramVec) Observe(v float64, values ...string) {
	if h == nil {
		return
	}
	lbl := labelString(h.labelNames, values)
	h.mu.Lock()
	defer h.mu.Unlock()
	hist, ok := h.values[lbl]
	if !ok {
		hist = &histogram{
			buckets: h.buckets,
			counts:  make([]uint64, len(h.buckets)+1),
		}
		h.values[lbl] = hist
	}
	hist.sum += v
	hist.total++
	for i, b := range hist.buckets {
		if v <= b {
			hist.counts[i]++
		}
	}
	hist.counts[len(hist.counts)-1]++
}

func (h *HistogramVec) WritePrometheus(w io.Writer) error {
	if h == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n", h.name, h.help); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# TYPE %s histogram\n", h.name); err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for k, v := range h.values {
		for i, b := range v.buckets {
			if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, fmt.Sprintf("%g", b)), v.counts[i]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s_bucket%s %d\n", h.name, withLe(k, "+Inf"), v.counts[len(v.counts)-1]); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_sum%s %f\n", h.name, k, v.sum); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s_count%s %d\n", h.name, k, v.total); err != nil {
			return err
		}
	}
	return nil
}

func labelString(names []string, values []string) string {
	if len(names) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("{")
	for i, name := range names {
		if i > 0 {
			b.WriteString(",")
		}
		val := "unknown"
		if i < len(values) {
			val = values[i]
		}
		b.WriteString(name)
		b.WriteString("=\"")
		b.WriteString(escapeLabel(val))
		b.WriteString("\"")
	}
	b.WriteString("}")
	return b.String()
}

func escapeLabel(v string) string {
	if v == "" {
		return ""
	}
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	v = strings.ReplaceAll(v, "\n", "\\n")
	return v
}

func withLe(labels string, le string) string {
	le = escapeLabel(le)
	if labels == "" || labels == "{}" {
		return "{le=\"" + le + "\"}"
	}
	if strings.HasSuffix(labels, "}") {
		return strings.TrimSuffix(labels, "}") + ",le=\"" + le + "\"}"
	}
	return "{le=\"" + le + "\"}"
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	return status[0] == '5'
}

func isFailureStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "failed", "error", "timeout", "panic":
		return true
	default:
		return false
	}
}
