package app

import (
	nethttp "net/http"

	"github.com/Tapu45/CurioAi-sub001/internal/config"
	hx "github.com/Tapu45/CurioAi-sub001/internal/http"
	httpH "github.com/Tapu45/CurioAi-sub001/internal/http/handlers"
	httpMW "github.com/Tapu45/CurioAi-sub001/internal/http/middleware"
	"github.com/Tapu45/CurioAi-sub001/internal/observability"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

type Handlers struct {
	Health *httpH.HealthHandler
	Graph  *httpH.GraphHandler
}

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

func wireHandlers(log *logger.Logger, clients Clients, serviceset Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(clients.Graph),
		Graph:  httpH.NewGraphHandler(log, serviceset.Scheduler, serviceset.Visualization, reposet.BuildRuns),
	}
}

func wireMiddleware(log *logger.Logger, cfg *config.Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, httpMW.AuthConfig{
			APIToken:  cfg.Auth.APIToken,
			JWTSecret: cfg.Auth.JWTSecret,
		}),
	}
}

func wireServer(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *nethttp.Server {
	return hx.NewServer(cfg, hx.RouterConfig{
		GraphHandler:   handlers.Graph,
		HealthHandler:  handlers.Health,
		AuthMiddleware: middleware.Auth,
		Log:            log,
		Metrics:        metrics,
		TracingEnabled: observability.TracingEnabled(),
		ServiceName:    cfg.ServiceName,
	})
}
