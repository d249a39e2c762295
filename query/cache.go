package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL bounds how long a validated translation stays reusable.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "bizgraph:translation:"

// Cache stores validated translations in Redis, keyed by a hash of the
// question and its additional context. Best effort: every Redis failure
// degrades to a miss. A nil *Cache is a valid always-miss cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// NewCache wraps a Redis client. A non-positive ttl means DefaultCacheTTL.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, log: logger}
}

// Get returns the cached candidate for a question, if any.
func (c *Cache) Get(ctx context.Context, question, additionalContext string) (Candidate, bool) {
	if c == nil || c.client == nil {
		return Candidate{}, false
	}
	data, err := c.client.Get(ctx, cacheKey(question, additionalContext)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("translation cache read failed", "error", err)
		}
		return Candidate{}, false
	}
	var cand Candidate
	if err := json.Unmarshal(data, &cand); err != nil {
		c.log.Warn("translation cache entry corrupt", "error", err)
		return Candidate{}, false
	}
	return cand, true
}

// Put stores a validated candidate. Failures are logged and dropped.
func (c *Cache) Put(ctx context.Context, question, additionalContext string, cand Candidate) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(cand)
	if err != nil {
		c.log.Warn("translation cache encode failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(question, additionalContext), data, c.ttl).Err(); err != nil {
		c.log.Warn("translation cache write failed", "error", err)
	}
}

func cacheKey(question, additionalContext string) string {
	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(additionalContext))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
