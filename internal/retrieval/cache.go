package retrieval

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/manualqa/internal/logging"
)

// promptVersion is bumped whenever the prompt-assembly or signal-extraction
// logic changes meaning, so stale cache entries from a prior prompt shape
// never leak into answers under the new one.
const promptVersion = "v1"

const (
	cacheTTL           = 5 * time.Minute
	cacheQuestionChars = 200
)

// responseCache stores assembled Response values keyed on
// (promptVersion, normalized question prefix, brand filter), per spec §4.7
// step 1. Grounded on the go-redis/v9 idiom in
// internal/queue/redis_consumer.go (ParseURL → NewClient → Ping), reused
// here for a read/write cache instead of a queue. When REDIS_URL is unset
// the cache degrades to an in-process map so the service still runs
// without a Redis dependency in a local/dev setup.
type responseCache struct {
	redis  *redis.Client
	logger *logging.Logger

	mu   sync.Mutex
	mem  map[string]memEntry
}

type memEntry struct {
	value   []byte
	expires time.Time
}

// newResponseCache connects to redisURL if set, falling back to an
// in-process cache otherwise. A Redis connectivity failure is logged and
// also falls back, rather than failing service startup over a cache.
func newResponseCache(redisURL string, logger *logging.Logger) *responseCache {
	c := &responseCache{logger: logger, mem: make(map[string]memEntry)}
	if redisURL == "" {
		return c
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, falling back to in-process cache", "error", err)
		return c
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed, falling back to in-process cache", "error", err)
		return c
	}
	c.redis = client
	return c
}

func cacheKey(question, brandFilter string) string {
	norm := normalizeQuestion(question)
	if len(norm) > cacheQuestionChars {
		norm = norm[:cacheQuestionChars]
	}
	sum := sha1.Sum([]byte(promptVersion + "|" + norm + "|" + strings.ToLower(brandFilter)))
	return "manualqa:retrieval:" + hex.EncodeToString(sum[:])
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func (c *responseCache) get(ctx context.Context, question, brandFilter string) (*Response, bool) {
	key := cacheKey(question, brandFilter)

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, false
		}
		if err != nil {
			c.logger.Warn("redis cache get failed", "error", err)
			return nil, false
		}
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, false
		}
		resp.FromCache = true
		return &resp, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.mem[key]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal(entry.value, &resp); err != nil {
		return nil, false
	}
	resp.FromCache = true
	return &resp, true
}

func (c *responseCache) set(ctx context.Context, question, brandFilter string, resp *Response) {
	key := cacheKey(question, brandFilter)
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, data, cacheTTL).Err(); err != nil {
			c.logger.Warn("redis cache set failed", "error", err)
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = memEntry{value: data, expires: time.Now().Add(cacheTTL)}
}
