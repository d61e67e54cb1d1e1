package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph/graphtest"
	types "github.com/Tapu45/CurioAi-sub001/internal/domain"
	"github.com/Tapu45/CurioAi-sub001/internal/pkg/dbctx"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/services"
)

type fakeScheduler struct {
	result  services.TriggerResult
	status  services.SchedulerStatus
	gotOpts *services.BuildOptions
}

func (f *fakeScheduler) Start() error { return nil }
func (f *fakeScheduler) Stop()        {}
func (f *fakeScheduler) TriggerManualBuild(_ context.Context, opts services.BuildOptions) services.TriggerResult {
	f.gotOpts = &opts
	return f.result
}
func (f *fakeScheduler) Status() services.SchedulerStatus { return f.status }

type fakeViz struct {
	vizData    types.VizData
	vizErr     error
	gotViz     *services.VizOptions
	details    *types.ConceptDetails
	detailsErr error
	gotName    string
	stats      types.GraphStats
	statsErr   error
}

func (f *fakeViz) GetVisualizationData(_ context.Context, opts services.VizOptions) (types.VizData, error) {
	f.gotViz = &opts
	return f.vizData, f.vizErr
}
func (f *fakeViz) GetConceptDetails(_ context.Context, name string) (*types.ConceptDetails, error) {
	f.gotName = name
	return f.details, f.detailsErr
}
func (f *fakeViz) GetGraphStatistics(context.Context) (types.GraphStats, error) {
	return f.stats, f.statsErr
}

type fakeRuns struct {
	runs     []*types.BuildRun
	listErr  error
	gotLimit int
}

func (f *fakeRuns) Create(_ dbctx.Context, run *types.BuildRun) (*types.BuildRun, error) {
	return run, nil
}
func (f *fakeRuns) UpdateStage(dbctx.Context, uuid.UUID, string) error { return nil }
func (f *fakeRuns) Finish(dbctx.Context, uuid.UUID, string, types.BuildReport, string) error {
	return nil
}
func (f *fakeRuns) ListRecent(_ dbctx.Context, limit int) ([]*types.BuildRun, error) {
	f.gotLimit = limit
	return f.runs, f.listErr
}
func (f *fakeRuns) LatestRun(dbctx.Context) (*types.BuildRun, error) { return nil, nil }

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func graphAPI(t *testing.T, sched *fakeScheduler, viz *fakeViz, runs *fakeRuns) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewGraphHandler(newTestLogger(t), sched, viz, runs)
	r := gin.New()
	r.POST("/api/graph/build", h.TriggerBuild)
	r.GET("/api/graph/build/status", h.BuildStatus)
	r.GET("/api/graph/build/history", h.BuildHistory)
	r.GET("/api/graph/stats", h.GraphStats)
	r.GET("/api/graph/visualization", h.Visualization)
	r.GET("/api/concepts/:name", h.ConceptDetails)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTriggerBuildWithoutBody(t *testing.T) {
	report := types.BuildReport{ConceptRelationships: 4, ActivityRelationships: 2, TopicsCreated: 1}
	sched := &fakeScheduler{result: services.TriggerResult{Success: true, Results: &report}}
	r := graphAPI(t, sched, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodPost, "/api/graph/build", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d want=%d body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	var result services.TriggerResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !result.Success || result.Results == nil || result.Results.ConceptRelationships != 4 {
		t.Fatalf("result: got=%+v", result)
	}
	if sched.gotOpts == nil {
		t.Fatalf("scheduler was not invoked")
	}
}

func TestTriggerBuildPassesOverrides(t *testing.T) {
	sched := &fakeScheduler{result: services.TriggerResult{Success: true}}
	r := graphAPI(t, sched, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodPost, "/api/graph/build", `{"include_topics":true,"concepts":{"limit":25}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", w.Code, w.Body.String())
	}
	if sched.gotOpts == nil || !sched.gotOpts.IncludeTopics {
		t.Fatalf("include_topics override lost: got=%+v", sched.gotOpts)
	}
	if sched.gotOpts.Concepts.Limit != 25 {
		t.Fatalf("concepts.limit override: got=%d want=25", sched.gotOpts.Concepts.Limit)
	}
}

func TestTriggerBuildMalformedBody(t *testing.T) {
	sched := &fakeScheduler{result: services.TriggerResult{Success: true}}
	r := graphAPI(t, sched, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodPost, "/api/graph/build", `{"include_topics":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusBadRequest)
	}
	if sched.gotOpts != nil {
		t.Fatalf("scheduler invoked despite malformed body")
	}
}

func TestTriggerBuildConflict(t *testing.T) {
	sched := &fakeScheduler{result: services.TriggerResult{Success: false, Message: "already running"}}
	r := graphAPI(t, sched, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodPost, "/api/graph/build", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusConflict)
	}
	var result services.TriggerResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Success || result.Message != "already running" {
		t.Fatalf("result: got=%+v", result)
	}
}

func TestTriggerBuildFailureIsStructured(t *testing.T) {
	sched := &fakeScheduler{result: services.TriggerResult{Success: false, Error: "chroma unreachable"}}
	r := graphAPI(t, sched, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodPost, "/api/graph/build", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusOK)
	}
	var result services.TriggerResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.Success || result.Error != "chroma unreachable" {
		t.Fatalf("result: got=%+v", result)
	}
}

func TestBuildStatus(t *testing.T) {
	sched := &fakeScheduler{status: services.SchedulerStatus{IsRunning: true, IsScheduled: true}}
	r := graphAPI(t, sched, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/build/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d", w.Code)
	}
	var status services.SchedulerStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !status.IsRunning || !status.IsScheduled {
		t.Fatalf("scheduler status: got=%+v", status)
	}
}

func TestBuildHistory(t *testing.T) {
	runs := &fakeRuns{runs: []*types.BuildRun{
		{ID: uuid.New(), Trigger: types.BuildTriggerManual, Status: types.BuildStatusSucceeded},
	}}
	r := graphAPI(t, &fakeScheduler{}, &fakeViz{}, runs)

	w := doJSON(t, r, http.MethodGet, "/api/graph/build/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", w.Code, w.Body.String())
	}
	if runs.gotLimit != 5 {
		t.Fatalf("limit: got=%d want=5", runs.gotLimit)
	}
	var body struct {
		Runs []*types.BuildRun `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Runs) != 1 || body.Runs[0].Trigger != types.BuildTriggerManual {
		t.Fatalf("runs: got=%+v", body.Runs)
	}
}

func TestBuildHistoryRejectsBadLimit(t *testing.T) {
	r := graphAPI(t, &fakeScheduler{}, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/build/history?limit=nope", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusBadRequest)
	}
}

func TestGraphStats(t *testing.T) {
	viz := &fakeViz{stats: types.GraphStats{Nodes: 12, Relationships: 30}}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d", w.Code)
	}
	var stats types.GraphStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stats.Nodes != 12 || stats.Relationships != 30 {
		t.Fatalf("stats: got=%+v", stats)
	}
}

func TestGraphStatsFailure(t *testing.T) {
	viz := &fakeViz{statsErr: errors.New("neo4j down")}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/stats", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "graph_stats_failed") {
		t.Fatalf("error code missing: body=%s", w.Body.String())
	}
}

func TestVisualizationQueryParsing(t *testing.T) {
	viz := &fakeViz{vizData: types.VizData{Nodes: []types.VizNode{}, Edges: []types.VizEdge{}}}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/visualization?limit=50&min_degree=2&include_activities=false&include_topics=0", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d body=%s", w.Code, w.Body.String())
	}
	want := services.VizOptions{Limit: 50, MinNodeDegree: 2}
	if viz.gotViz == nil || *viz.gotViz != want {
		t.Fatalf("options: got=%+v want=%+v", viz.gotViz, want)
	}
}

func TestVisualizationDefaults(t *testing.T) {
	viz := &fakeViz{}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/visualization", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d", w.Code)
	}
	want := services.VizOptions{IncludeActivities: true, IncludeTopics: true}
	if viz.gotViz == nil || *viz.gotViz != want {
		t.Fatalf("options: got=%+v want=%+v", viz.gotViz, want)
	}
}

func TestVisualizationRejectsBadQuery(t *testing.T) {
	viz := &fakeViz{}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/graph/visualization?min_degree=-1", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusBadRequest)
	}
	if viz.gotViz != nil {
		t.Fatalf("service invoked despite invalid query")
	}
}

func TestConceptDetailsFound(t *testing.T) {
	viz := &fakeViz{details: &types.ConceptDetails{
		Concept:         types.ConceptNode{ID: "c1", Name: "Graph Theory"},
		RelatedConcepts: []types.RelatedConcept{},
		Activities:      []types.ActivitySource{},
	}}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/concepts/Graph%20Theory", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d", w.Code)
	}
	if viz.gotName != "Graph Theory" {
		t.Fatalf("concept name: got=%q want=%q", viz.gotName, "Graph Theory")
	}
	var details types.ConceptDetails
	if err := json.Unmarshal(w.Body.Bytes(), &details); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if details.Concept.Name != "Graph Theory" {
		t.Fatalf("details: got=%+v", details)
	}
}

func TestConceptDetailsMissingIsNull(t *testing.T) {
	r := graphAPI(t, &fakeScheduler{}, &fakeViz{}, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/concepts/unknown", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "null" {
		t.Fatalf("body: got=%q want=%q", got, "null")
	}
}

func TestConceptDetailsFailure(t *testing.T) {
	viz := &fakeViz{detailsErr: errors.New("neo4j down")}
	r := graphAPI(t, &fakeScheduler{}, viz, &fakeRuns{})

	w := doJSON(t, r, http.MethodGet, "/api/concepts/anything", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got=%d want=%d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "concept_details_failed") {
		t.Fatalf("error code missing: body=%s", w.Body.String())
	}
}

func TestHealthAndReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := graphtest.NewStore()
	store.StatsResult = types.GraphStats{Nodes: 1}
	h := NewHealthHandler(store)
	r := gin.New()
	r.GET("/healthz", h.HealthCheck)
	r.GET("/readyz", h.ReadyCheck)

	w := doJSON(t, r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz: got=%d %q", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("readyz: got=%d", w.Code)
	}

	store.FailStats = errors.New("connection refused")
	w = doJSON(t, r, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz degraded: got=%d want=%d", w.Code, http.StatusServiceUnavailable)
	}
}
