package app

import (
	"context"
	"fmt"

	"github.com/Tapu45/CurioAi-sub001/internal/data/graph"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/chroma"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/neo4jdb"
	"github.com/Tapu45/CurioAi-sub001/internal/platform/rediscache"
)

type Clients struct {
	Neo4j   *neo4jdb.Client
	Graph   graph.Store
	Vectors chroma.VectorStore
	Cache   *rediscache.Cache
}

// wireClients connects the external stores. Neo4j and Chroma are required;
// Redis is optional and leaves Cache nil when REDIS_ADDR is unset.
func wireClients(ctx context.Context, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	if neo == nil {
		return Clients{}, fmt.Errorf("init neo4j: NEO4J_URI is required")
	}
	store, err := graph.NewStore(neo, log)
	if err != nil {
		_ = neo.Close(ctx)
		return Clients{}, fmt.Errorf("init graph store: %w", err)
	}

	chromaCfg, err := chroma.ResolveConfigFromEnv()
	if err != nil {
		_ = neo.Close(ctx)
		return Clients{}, fmt.Errorf("init chroma: %w", err)
	}
	vectors, err := chroma.NewVectorStore(log, chromaCfg)
	if err != nil {
		_ = neo.Close(ctx)
		return Clients{}, fmt.Errorf("init chroma: %w", err)
	}

	cache, err := rediscache.NewFromEnv(log)
	if err != nil {
		log.Warn("redis cache unavailable, continuing without it", "error", err)
		cache = nil
	}

	return Clients{
		Neo4j:   neo,
		Graph:   store,
		Vectors: vectors,
		Cache:   cache,
	}, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
