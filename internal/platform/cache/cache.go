// Package cache provides a Redis-backed read-through cache for fused
// patient summaries. The cache is optional: a nil *SummaryCache is a valid
// receiver and behaves as a permanent miss, so callers never branch on
// whether caching is configured.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const summaryPrefix = "oncotrace:summary:"

// SummaryCache caches patient response summaries between fusion runs.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis and verifies the connection with a ping.
func New(addr, password string, ttl time.Duration, logger zerolog.Logger) (*SummaryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger.Info().Str("addr", addr).Dur("ttl", ttl).Msg("summary cache connected")

	return &SummaryCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// SummaryKey returns the cache key for a patient's response summary.
func SummaryKey(patientID uuid.UUID) string {
	return summaryPrefix + patientID.String()
}

// Get loads a cached value into dest. It reports whether the key was found.
// A nil cache always reports a miss.
func (c *SummaryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores a value under key with the configured TTL. A nil cache is a
// no-op.
func (c *SummaryCache) Set(ctx context.Context, key string, val any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// InvalidateSummaries removes every cached summary. Called after a fusion
// run replaces the materialized tables so readers never serve stale
// classifications.
func (c *SummaryCache) InvalidateSummaries(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	var deleted int64
	iter := c.client.Scan(ctx, 0, summaryPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cache invalidate %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan: %w", err)
	}

	c.logger.Debug().Int64("deleted", deleted).Msg("summary cache invalidated")
	return nil
}

// Close releases the underlying Redis connection. A nil cache is a no-op.
func (c *SummaryCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
