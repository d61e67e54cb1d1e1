package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/Tapu45/CurioAi-sub001/internal/http/handlers"
	httpMW "github.com/Tapu45/CurioAi-sub001/internal/http/middleware"
	"github.com/Tapu45/CurioAi-sub001/internal/observability"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

type RouterConfig struct {
	GraphHandler  *httpH.GraphHandler
	HealthHandler *httpH.HealthHandler

	AuthMiddleware *httpMW.AuthMiddleware

	Log            *logger.Logger
	Metrics        *observability.Metrics
	TracingEnabled bool
	ServiceName    string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.CORS())
	if cfg.TracingEnabled {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(cfg.Metrics))

	// Health (public, probes skip auth)
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.ReadyCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Knowledge graph
		if cfg.GraphHandler != nil {
			api.POST("/graph/build", cfg.GraphHandler.TriggerBuild)
			api.GET("/graph/build/status", cfg.GraphHandler.BuildStatus)
			api.GET("/graph/build/history", cfg.GraphHandler.BuildHistory)
			api.GET("/graph/stats", cfg.GraphHandler.GraphStats)
			api.GET("/graph/visualization", cfg.GraphHandler.Visualization)
			api.GET("/concepts/:name", cfg.GraphHandler.ConceptDetails)
		}
	}

	return r
}
