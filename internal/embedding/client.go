// Package embedding implements C1: calls the external embedding API,
// LRU-caches query embeddings, and batches ingestion embeddings with
// bounded concurrency and backoff.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/textutil"
)

const (
	lruCapacity      = 100
	lruKeyChars      = 300
	maxInputChars    = 16000
	maxRetryAttempts = 3
)

// Progress mirrors spec §4.1's {current, total, percentage} progress event.
type Progress struct {
	Current    int
	Total      int
	Percentage int
}

// Config configures the embedding client.
type Config struct {
	APIKey        string
	Dimension     int
	BatchSize     int
	Concurrency   int
	InterBatchDelay time.Duration
}

// Client is C1's embedding client.
type Client struct {
	provider *geminiProvider
	logger   *logging.Logger
	cfg      Config

	mu    sync.Mutex
	cache *lruCache
}

// New constructs an embedding client against the Gemini-family provider.
func New(cfg Config, logger *logging.Logger) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.InterBatchDelay <= 0 {
		cfg.InterBatchDelay = 150 * time.Millisecond
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 3072
	}
	return &Client{
		provider: newGeminiProvider(cfg.APIKey, cfg.Dimension),
		logger:   logger,
		cfg:      cfg,
		cache:    newLRUCache(lruCapacity),
	}
}

// EmbedOne embeds a single query, consulting the LRU cache first.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := textutil.NormalizedPrefix(text, lruKeyChars)

	c.mu.Lock()
	if cached, ok := c.cache.get(key); ok {
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	truncated := truncate(text, maxInputChars)
	vec, err := c.embedWithRetry(ctx, truncated)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}

	c.mu.Lock()
	c.cache.put(key, vec)
	c.mu.Unlock()

	return vec, nil
}

// EmbedMany embeds a batch of ingestion texts, aligned 1-to-1 with input;
// nil entries mark a permanent per-item failure. Batches run through a
// bounded-concurrency semaphore with an inter-batch delay; a whole-batch
// failure degrades to per-item attempts.
func (c *Client) EmbedMany(ctx context.Context, texts []string, onProgress func(Progress)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	sem := semaphore.NewWeighted(int64(c.cfg.Concurrency))
	var wg sync.WaitGroup
	var completed int32
	var mu sync.Mutex

	batches := chunkIndices(len(texts), c.cfg.BatchSize)
	total := len(texts)

	for _, batch := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx []int) {
			defer wg.Done()
			defer sem.Release(1)

			batchTexts := make([]string, len(idx))
			for i, pos := range idx {
				batchTexts[i] = truncate(texts[pos], maxInputChars)
			}

			vecs, err := c.provider.embedBatch(ctx, batchTexts)
			if err != nil {
				c.logger.Warn("batch embedding failed, falling back to per-item", "error", err.Error())
				for i, pos := range idx {
					vec, itemErr := c.embedWithRetry(ctx, batchTexts[i])
					if itemErr != nil {
						c.logger.Warn("item embedding permanently failed", "index", pos, "error", itemErr.Error())
						continue
					}
					out[pos] = vec
				}
			} else {
				for i, pos := range idx {
					out[pos] = vecs[i]
				}
			}

			mu.Lock()
			completed += int32(len(idx))
			if onProgress != nil {
				onProgress(Progress{
					Current:    int(completed),
					Total:      total,
					Percentage: int(float64(completed) / float64(total) * 100),
				})
			}
			mu.Unlock()

			time.Sleep(c.cfg.InterBatchDelay)
		}(batch)
	}

	wg.Wait()
	return out, nil
}

// embedWithRetry backs off with delay doubling on a rate-limit signal, up
// to 3 attempts, per spec §4.1.
func (c *Client) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	delay := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxRetryAttempts; attempt++ {
		vec, err := c.provider.embedOne(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if !errors.Is(err, errRateLimited) {
			return nil, err
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func chunkIndices(n, size int) [][]int {
	var batches [][]int
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		idx := make([]int, end-i)
		for j := range idx {
			idx[j] = i + j
		}
		batches = append(batches, idx)
	}
	return batches
}
