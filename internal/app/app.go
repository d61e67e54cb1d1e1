package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Tapu45/CurioAi-sub001/internal/config"
	"github.com/Tapu45/CurioAi-sub001/internal/data/db"
	"github.com/Tapu45/CurioAi-sub001/internal/observability"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	Config   *config.Config
	DB       *gorm.DB
	Clients  Clients
	Repos    Repos
	Services Services

	server       *nethttp.Server
	metrics      *observability.Metrics
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
	})

	clients, err := wireClients(ctx, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	if err := clients.Graph.EnsureSchema(ctx); err != nil {
		log.Warn("graph schema init failed (continuing)", "error", err)
	}

	// Build history degrades to disabled when neither Postgres nor the
	// SQLite fallback can open.
	var gdb *gorm.DB
	if dbsvc, dbErr := db.NewService(log, cfg.DataDir); dbErr != nil {
		log.Warn("build history disabled (database unavailable)", "error", dbErr)
	} else {
		gdb = dbsvc.DB()
	}

	reposet := wireRepos(gdb, log)
	serviceset := wireServices(log, cfg, clients, reposet)
	handlerset := wireHandlers(log, clients, serviceset, reposet)
	middlewareset := wireMiddleware(log, cfg)
	server := wireServer(cfg, log, metrics, handlerset, middlewareset)

	return &App{
		Log:          log,
		Config:       cfg,
		DB:           gdb,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		server:       server,
		metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled, supervising the scheduler and the
// metrics listener alongside. It returns once everything has shut down.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("app not initialized")
	}

	g, gctx := errgroup.WithContext(ctx)

	a.metrics.StartServer(gctx, a.Log, a.Config.MetricsAddr)
	a.metrics.StartPostgresCollector(gctx, a.Log, a.DB)
	a.metrics.StartBuildRunCollector(gctx, a.Log, a.DB)
	a.metrics.StartRedisCollector(gctx, a.Log, os.Getenv("REDIS_ADDR"))
	a.metrics.StartSLOEvaluator(gctx, a.Log)

	if a.Config.Scheduler.Enabled {
		if err := a.Services.Scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.Log.Info("build scheduler started", "interval", a.Config.Scheduler.Interval.Duration.String())
	}

	g.Go(func() error {
		a.Log.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Services.Scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	a.Clients.Close(ctx)
	if a.Log != nil {
		a.Log.Sync()
	}
}
