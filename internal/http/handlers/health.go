package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
)

type HealthHandler struct {
	store graph.Store
}

func NewHealthHandler(store graph.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// GET /healthz
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz
//
// Readiness requires the graph store to answer; the stats query doubles as
// the connectivity probe.
func (h *HealthHandler) ReadyCheck(c *gin.Context) {
	if h.store != nil {
		if _, err := h.store.Stats(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "graph store unavailable")
			return
		}
	}
	c.String(http.StatusOK, "ok")
}
