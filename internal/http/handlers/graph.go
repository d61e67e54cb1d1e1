package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Tapu45/CurioAi-sub001/internal/data/repos"
	"github.com/Tapu45/CurioAi-sub001/internal/http/response"
	"github.com/Tapu45/CurioAi-sub001/internal/pkg/dbctx"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/services"
)

type GraphHandler struct {
	log   *logger.Logger
	sched services.GraphScheduler
	viz   services.VisualizationService
	runs  repos.BuildRunRepo
}

func NewGraphHandler(
	log *logger.Logger,
	sched services.GraphScheduler,
	viz services.VisualizationService,
	runs repos.BuildRunRepo,
) *GraphHandler {
	return &GraphHandler{
		log:   log.With("handler", "Graph"),
		sched: sched,
		viz:   viz,
		runs:  runs,
	}
}

// POST /api/graph/build
//
// The body is optional; when present it carries per-build overrides for the
// pipeline defaults. A build already in flight yields 409 with the structured
// rejection, a build that ran and failed yields 200 with success=false.
func (h *GraphHandler) TriggerBuild(c *gin.Context) {
	var opts services.BuildOptions
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result := h.sched.TriggerManualBuild(c.Request.Context(), opts)
	if !result.Success && result.Message != "" {
		c.JSON(http.StatusConflict, result)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/graph/build/status
func (h *GraphHandler) BuildStatus(c *gin.Context) {
	response.RespondOK(c, h.sched.Status())
}

// GET /api/graph/build/history?limit=
func (h *GraphHandler) BuildHistory(c *gin.Context) {
	limit := 0
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = n
	}
	if h.runs == nil {
		// History persistence is optional; report an empty list, not an error.
		response.RespondOK(c, gin.H{"runs": []any{}})
		return
	}
	runs, err := h.runs.ListRecent(dbctx.Context{Ctx: c.Request.Context()}, limit)
	if err != nil {
		h.log.Error("BuildHistory failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_build_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/graph/stats
func (h *GraphHandler) GraphStats(c *gin.Context) {
	stats, err := h.viz.GetGraphStatistics(c.Request.Context())
	if err != nil {
		h.log.Error("GraphStats failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "graph_stats_failed", err)
		return
	}
	response.RespondOK(c, stats)
}

// GET /api/graph/visualization?limit=&min_degree=&include_activities=&include_topics=
func (h *GraphHandler) Visualization(c *gin.Context) {
	opts, err := parseVizOptions(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}
	data, err := h.viz.GetVisualizationData(c.Request.Context(), opts)
	if err != nil {
		h.log.Error("Visualization failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "visualization_failed", err)
		return
	}
	response.RespondOK(c, data)
}

// GET /api/concepts/:name
//
// Asking for a concept that does not exist is a normal outcome, not an
// error: the response is 200 with a null concept body.
func (h *GraphHandler) ConceptDetails(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_concept_name", nil)
		return
	}
	details, err := h.viz.GetConceptDetails(c.Request.Context(), name)
	if err != nil {
		h.log.Error("ConceptDetails failed", "error", err, "concept", name)
		response.RespondError(c, http.StatusInternalServerError, "concept_details_failed", err)
		return
	}
	response.RespondOK(c, details)
}

func parseVizOptions(c *gin.Context) (services.VizOptions, error) {
	opts := services.VizOptions{
		IncludeActivities: true,
		IncludeTopics:     true,
	}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errors.New("limit must be a non-negative integer")
		}
		opts.Limit = n
	}
	if v := strings.TrimSpace(c.Query("min_degree")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errors.New("min_degree must be a non-negative integer")
		}
		opts.MinNodeDegree = n
	}
	if v := strings.TrimSpace(c.Query("include_activities")); v != "" {
		opts.IncludeActivities = queryBool(v)
	}
	if v := strings.TrimSpace(c.Query("include_topics")); v != "" {
		opts.IncludeTopics = queryBool(v)
	}
	return opts, nil
}

func queryBool(v string) bool {
	v = strings.ToLower(v)
	return v == "1" || v == "true" || v == "yes"
}
