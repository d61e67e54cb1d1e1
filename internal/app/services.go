package app

import (
	"github.com/Tapu45/CurioAi-sub001/internal/config"
	"github.com/Tapu45/CurioAi-sub001/internal/pipeline/graphbuild"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/services"
)

type Services struct {
	Topics        services.TopicBuilder
	Builder       services.GraphBuilder
	Scheduler     services.GraphScheduler
	Visualization services.VisualizationService
}

func wireServices(log *logger.Logger, cfg *config.Config, clients Clients, reposet Repos) Services {
	log.Info("Wiring services...")

	pipeline := graphbuild.Runtime(log)
	topics := services.NewTopicBuilder(log, clients.Vectors, clients.Graph)
	builder := services.NewGraphBuilder(log, clients.Vectors, clients.Graph, topics, pipeline)
	scheduler := services.NewGraphScheduler(
		log,
		builder,
		clients.Graph,
		reposet.BuildRuns,
		clients.Cache,
		cfg.Scheduler.Interval.Duration,
		buildDefaults(cfg),
	)
	visualization := services.NewVisualizationService(log, clients.Graph, clients.Cache)

	return Services{
		Topics:        topics,
		Builder:       builder,
		Scheduler:     scheduler,
		Visualization: visualization,
	}
}

// buildDefaults maps config tuning onto the per-build options the scheduler
// uses for scheduled runs. Zero values defer to the pipeline spec.
func buildDefaults(cfg *config.Config) services.BuildOptions {
	return services.BuildOptions{
		Concepts: services.BuildPassOptions{
			Threshold: cfg.Build.ConceptThreshold,
			Limit:     cfg.Build.ConceptLimit,
		},
		Activities: services.BuildPassOptions{
			Threshold: cfg.Build.ActivityThreshold,
			Limit:     cfg.Build.ActivityLimit,
		},
		IncludeTopics: cfg.Scheduler.IncludeTopics,
		Topics: services.TopicOptions{
			Threshold:      cfg.Build.TopicThreshold,
			MinClusterSize: cfg.Build.TopicMinClusterSize,
		},
	}
}
