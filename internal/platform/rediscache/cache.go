package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Tapu45/CurioAi-sub001/internal/platform/logger"
)

const defaultKeyPrefix = "curio:graph"

// Cache is a small JSON TTL cache on Redis. A nil *Cache is a disabled
// cache: reads always miss and writes are dropped, so callers never need
// to branch on whether Redis is configured.
type Cache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

// NewFromEnv builds the cache from REDIS_ADDR. It returns (nil, nil) when
// the address is unset so callers can run with caching disabled.
func NewFromEnv(log *logger.Logger) (*Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, nil
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_CACHE_PREFIX"))
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Cache{
		log:    log.With("service", "RedisCache"),
		rdb:    rdb,
		prefix: prefix,
	}, nil
}

func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Key joins parts under the cache prefix.
func (c *Cache) Key(parts ...string) string {
	prefix := defaultKeyPrefix
	if c != nil && c.prefix != "" {
		prefix = c.prefix
	}
	if len(parts) == 0 {
		return prefix
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// GetJSON reads key into out. It reports whether the key was present.
func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return true, nil
}

// SetJSON writes value under key. A non-positive ttl stores without expiry.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %q: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// InvalidateNamespace deletes every key under the cache prefix. Builds call
// this after mutating the graph so readers never serve stale snapshots.
func (c *Cache) InvalidateNamespace(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	match := c.prefix + ":*"
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan %q: %w", match, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		c.log.Debug("cache namespace invalidated", "prefix", c.prefix, "keys", deleted)
	}
	return nil
}

func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
