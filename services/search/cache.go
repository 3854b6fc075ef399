package search

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "docindex:search:"

// Cache stores search responses. The returned string is one of the
// metrics.CacheStatus values.
type Cache interface {
	GetOrCompute(ctx context.Context, key string, compute func() (*Response, error)) (*Response, string, error)
	Close() error
}

type noopCache struct{}

// NewNoopCache returns a Cache that always computes.
func NewNoopCache() Cache {
	return noopCache{}
}

func (noopCache) GetOrCompute(_ context.Context, _ string, compute func() (*Response, error)) (*Response, string, error) {
	response, err := compute()
	return response, metrics.CacheStatusDisabled, err
}

func (noopCache) Close() error {
	return nil
}

type RedisCache struct {
	logger  logger.Logger
	client  *redis.Client
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewRedisCache connects to addr and verifies the connection with a PING.
func NewRedisCache(ctx context.Context, logger logger.Logger, addr string, ttl time.Duration, m *metrics.Metrics) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisCache{
		logger:  logger,
		client:  client,
		ttl:     ttl,
		metrics: m,
	}, nil
}

// GetOrCompute counts one hit or one miss per call. Concurrent misses on the
// same key share a single compute.
func (c *RedisCache) GetOrCompute(ctx context.Context, key string, compute func() (*Response, error)) (*Response, string, error) {
	if response, ok := c.get(ctx, key); ok {
		c.metrics.CacheHitsTotal.Inc()
		c.logger.Debug("cache hit", "key", key)
		return response, metrics.CacheStatusHit, nil
	}
	c.metrics.CacheMissesTotal.Inc()

	value, err, _ := c.group.Do(key, func() (interface{}, error) {
		// an earlier flight may have stored the key after our first get
		if response, ok := c.get(ctx, key); ok {
			return response, nil
		}
		response, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, response)
		return response, nil
	})
	if err != nil {
		return nil, metrics.CacheStatusMiss, err
	}

	return value.(*Response), metrics.CacheStatusMiss, nil
}

func (c *RedisCache) get(ctx context.Context, key string) (*Response, bool) {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("cache get failed", "key", key, "err", err.Error())
		}
		return nil, false
	}

	var response Response
	if err := json.Unmarshal([]byte(data), &response); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "err", err.Error())
		return nil, false
	}

	return &response, true
}

func (c *RedisCache) set(ctx context.Context, key string, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "err", err.Error())
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Error("cache set failed", "key", key, "err", err.Error())
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// cacheKey ties a request to the snapshot generation that answers it, so a
// reload never serves stale results.
func cacheKey(generation string, req Request) string {
	normalized := fmt.Sprintf("%s|%s|%s|partial=%t|limit=%d|offset=%d",
		generation,
		strings.Join(strings.Fields(strings.ToLower(req.Query)), " "),
		req.Mode,
		req.Partial,
		req.Limit,
		req.Offset,
	)
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16])
}
