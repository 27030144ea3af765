package retrieval

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/manualqa/internal/config"
	"github.com/adverant/nexus/manualqa/internal/embedding"
	"github.com/adverant/nexus/manualqa/internal/generation"
	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/textutil"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

// perQueryWidthMultiplier multiplies topK to give the per-query candidate
// width passed to Store.Search; widening past topK here gives the merge step in step 3 room to surface a
// chunk that only one reformulation's embedding found close, per spec §4.7
// step 3.
const perQueryWidthMultiplier = 2

const defaultTopK = 5

// Core is C7: the retrieval and answer-assembly pipeline tying together
// the vector store, embedding client, and generative model.
type Core struct {
	cfg       *config.Config
	store     vectorstore.Store
	embedder  *embedding.Client
	gen       *generation.Client
	cache     *responseCache
	telemetry *telemetryRing
	logger    *logging.Logger
}

// New constructs the retrieval core.
func New(cfg *config.Config, store vectorstore.Store, embedder *embedding.Client, gen *generation.Client, logger *logging.Logger) *Core {
	return &Core{
		cfg:       cfg,
		store:     store,
		embedder:  embedder,
		gen:       gen,
		cache:     newResponseCache(cfg.RedisURL, logger),
		telemetry: newTelemetryRing(),
		logger:    logger,
	}
}

// Telemetry returns the recent-query ring buffer backing
// /api/telemetry/rag.
func (c *Core) Telemetry() []Event {
	return c.telemetry.Recent()
}

// Retrieve runs the full question-answering pipeline, per spec §4.7.
func (c *Core) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	topK := req.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	hasHistory := len(req.History) > 0

	if !hasHistory {
		if cached, ok := c.cache.get(ctx, req.Question, req.BrandFilter); ok {
			return cached, nil
		}
	}

	boardTokens := extractBoardTokens(req.Question, req.History)
	errorTokens := extractErrorTokens(req.Question, req.History)

	enrichedQuery := buildEnrichedQuery(req.Question, req.History, boardTokens, errorTokens)
	queries := expandQueries(ctx, c.gen, enrichedQuery, c.logger)

	perQuery, err := c.searchQueries(ctx, queries, topK, req.BrandFilter)
	if err != nil {
		return nil, err
	}

	merged := mergeBySourceChunk(perQuery)
	selected := selectDiverse(merged)

	needsClarification := len(selected) == 0 ||
		(looksHardwareSpecific(req.Question) && len(boardTokens) == 0)

	event := Event{
		Timestamp:       time.Now(),
		Question:        req.Question,
		BrandFilter:     req.BrandFilter,
		BoardTokens:     boardTokens,
		ErrorTokens:     errorTokens,
		ExpandedQueries: len(queries),
		CandidateCount:  len(merged),
		SelectedCount:   len(selected),
	}

	if needsClarification {
		sources, srcErr := c.store.IndexedSources(ctx)
		if srcErr != nil {
			sources = nil
		}
		resp := &Response{
			Clarification: buildClarification(sources, boardTokens, errorTokens),
			SearchTimeMs:  time.Since(start).Milliseconds(),
		}
		event.Clarified = true
		event.SearchTimeMs = resp.SearchTimeMs
		c.telemetry.record(event)
		return resp, nil
	}

	contextBlock := buildContextBlock(selected)
	userMessage := buildUserMessage(req.Question, req.History, contextBlock)

	answer, _, err := c.gen.Generate(ctx, guardrailSystemPrompt, userMessage)
	if err != nil {
		return nil, err
	}
	answer = textutil.RepairMojibake(answer)

	resp := &Response{
		Answer:       answer,
		Sources:      toSourceRefs(selected),
		SearchTimeMs: time.Since(start).Milliseconds(),
	}

	event.SearchTimeMs = resp.SearchTimeMs
	c.telemetry.record(event)

	if !hasHistory {
		c.cache.set(ctx, req.Question, req.BrandFilter, resp)
	}

	return resp, nil
}

// searchQueries embeds and searches each reformulation concurrently,
// returning one result slice per query in input order.
func (c *Core) searchQueries(ctx context.Context, queries []string, topK int, brandFilter string) ([][]vectorstore.ScoredChunk, error) {
	results := make([][]vectorstore.ScoredChunk, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			vec, err := c.embedder.EmbedOne(gctx, q)
			if err != nil {
				return err
			}
			scored, _, err := c.store.Search(gctx, vec, topK*perQueryWidthMultiplier, brandFilter)
			if err != nil {
				return err
			}
			results[i] = scored
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func toSourceRefs(selected []vectorstore.ScoredChunk) []SourceRef {
	refs := make([]SourceRef, len(selected))
	for i, sc := range selected {
		refs[i] = SourceRef{
			Source:     sc.Chunk.Metadata.Source,
			Similarity: sc.Similarity,
			Page:       sc.Chunk.Metadata.Page,
		}
	}
	return refs
}
