package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/models"
)

// ResultCache stores finalized results keyed by request hash.
// A hit short-circuits the entire pipeline: no generation, no execution.
type ResultCache interface {
	// Get returns the cached result for hash, or false when absent or
	// expired. Expiry is lazy; there is no background sweep.
	Get(ctx context.Context, hash string) (*models.InsightsResult, bool)

	// Put stores a finalized result under hash. Last-writer-wins is
	// acceptable: concurrent identical requests may both compute and both
	// overwrite the same entry harmlessly.
	Put(ctx context.Context, hash string, result *models.InsightsResult)
}

// CacheHash derives the deterministic cache key for a request. Two
// requests with the same user, same normalized question (or fallback key)
// and same resolved date range always map to the same key.
func CacheHash(userID, questionOrKey string, dateRange models.DateRange) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(questionOrKey), " "))

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(dateRange.String()))
	return hex.EncodeToString(h.Sum(nil))
}

const cacheKeyPrefix = "insights:result:"

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache creates a Redis-backed result cache. A nil client
// disables caching: every Get misses and every Put is dropped.
func NewResultCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) ResultCache {
	if client == nil {
		logger.Warn("Redis not configured, result caching disabled")
		return &noopCache{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisCache{client: client, ttl: ttl, logger: logger}
}

var _ ResultCache = (*redisCache)(nil)

func (c *redisCache) Get(ctx context.Context, hash string) (*models.InsightsResult, bool) {
	payload, err := c.client.Get(ctx, cacheKeyPrefix+hash).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var result models.InsightsResult
	if err := json.Unmarshal(payload, &result); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (c *redisCache) Put(ctx context.Context, hash string, result *models.InsightsResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("Failed to encode result for cache", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, cacheKeyPrefix+hash, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*models.InsightsResult, bool) { return nil, false }
func (noopCache) Put(context.Context, string, *models.InsightsResult)        {}
