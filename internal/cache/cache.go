// Package cache provides an optional Redis-backed cache for computed
// forecasts, keyed by dataset, variable, horizon and requested family.
// A disabled cache degrades to a no-op so callers never branch on it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terracastio/terracast/internal/config"
	"github.com/terracastio/terracast/internal/forecast"
	"github.com/terracastio/terracast/internal/logging"
)

// ErrMiss is returned when no cached forecast exists for a key.
var ErrMiss = errors.New("forecast cache miss")

// ForecastCache stores and retrieves computed forecasts.
type ForecastCache interface {
	Get(ctx context.Context, key Key) (*forecast.Forecast, error)
	Set(ctx context.Context, key Key, fc *forecast.Forecast) error
	Invalidate(ctx context.Context, datasetID, variableName string) error
	Close() error
}

// Key identifies one cached forecast.
type Key struct {
	DatasetID    string
	VariableName string
	Horizon      int
	Family       string // empty when the caller let selection decide
}

func (k Key) String() string {
	family := k.Family
	if family == "" {
		family = "auto"
	}
	return fmt.Sprintf("terracast:forecast:%s:%s:%d:%s", k.DatasetID, k.VariableName, k.Horizon, family)
}

// RedisCache is the Redis implementation of ForecastCache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// New builds a cache from configuration. When the cache is disabled it
// returns a no-op implementation and never touches Redis.
func New(cfg config.CacheConfig, logger *logging.Logger) (ForecastCache, error) {
	if !cfg.Enabled {
		return NopCache{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	logger.Info("Forecast cache enabled", "addr", cfg.Addr, "ttl", ttl.String())
	return &RedisCache{client: client, ttl: ttl, logger: logger}, nil
}

// NewWithClient wraps an existing Redis client, used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached forecast or ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key Key) (*forecast.Forecast, error) {
	raw, err := c.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var fc forecast.Forecast
	if err := json.Unmarshal(raw, &fc); err != nil {
		// A corrupt entry behaves like a miss; the caller recomputes.
		c.logger.Warn("Dropping corrupt cache entry", "key", key.String(), "error", err)
		c.client.Del(ctx, key.String())
		return nil, ErrMiss
	}
	return &fc, nil
}

// Set stores a forecast under the key for the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key Key, fc *forecast.Forecast) error {
	raw, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}
	if err := c.client.Set(ctx, key.String(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate removes every cached forecast for a dataset variable, across
// horizons and families. Called after a forced retrain.
func (c *RedisCache) Invalidate(ctx context.Context, datasetID, variableName string) error {
	pattern := fmt.Sprintf("terracast:forecast:%s:%s:*", datasetID, variableName)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache invalidate failed: %w", err)
		}
	}
	return iter.Err()
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// NopCache is the disabled-cache implementation: every Get misses and every
// write succeeds silently.
type NopCache struct{}

func (NopCache) Get(context.Context, Key) (*forecast.Forecast, error) { return nil, ErrMiss }
func (NopCache) Set(context.Context, Key, *forecast.Forecast) error   { return nil }
func (NopCache) Invalidate(context.Context, string, string) error     { return nil }
func (NopCache) Close() error                                         { return nil }
