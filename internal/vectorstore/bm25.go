package vectorstore

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/adverant/nexus/manualqa/internal/textutil"
)

const (
	bm25K1    = 1.5
	bm25B     = 0.75
	bm25CacheTTL = 30 * time.Second
)

// bm25Doc is one indexed document: its token counts and length.
type bm25Doc struct {
	chunkIdx int
	termFreq map[string]int
	length   int
}

// bm25Index is a corpus snapshot built for lexical search, per spec §4.5's
// BM25 parameters (k1=1.5, b=0.75). It is rebuilt from scratch on every
// miss, which is cheap at the chunk counts this store is sized for.
type bm25Index struct {
	docs      []bm25Doc
	docFreq   map[string]int
	avgDocLen float64
	n         int
}

func buildBM25Index(chunks []Chunk) *bm25Index {
	idx := &bm25Index{
		docs:    make([]bm25Doc, len(chunks)),
		docFreq: make(map[string]int),
	}
	var totalLen int
	for i, c := range chunks {
		tokens := textutil.Tokenize(c.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		idx.docs[i] = bm25Doc{chunkIdx: i, termFreq: tf, length: len(tokens)}
		totalLen += len(tokens)
		for t := range tf {
			idx.docFreq[t]++
		}
	}
	idx.n = len(chunks)
	if idx.n > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.n)
	}
	return idx
}

// score returns each document's BM25 score against the query tokens, indexed
// by the document's position in the original chunks slice.
func (idx *bm25Index) score(queryTokens []string) map[int]float64 {
	scores := make(map[int]float64)
	if idx.n == 0 {
		return scores
	}
	unique := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		unique[t] = true
	}
	for term := range unique {
		df := idx.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(float64(idx.n-df)+0.5) - math.Log(float64(df)+0.5) + 1
		for _, doc := range idx.docs {
			tf := doc.termFreq[term]
			if tf == 0 {
				continue
			}
			denom := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(doc.length)/idx.avgDocLen)
			scores[doc.chunkIdx] += idf * (float64(tf) * (bm25K1 + 1)) / denom
		}
	}
	return scores
}

// bm25CacheEntry pairs a built index with the chunk slice it was built from,
// so scored results can be reconstructed without re-tokenizing.
type bm25CacheEntry struct {
	builtAt time.Time
	chunks  []Chunk
	index   *bm25Index
}

// bm25Cache memoizes the (brandFilter, limit) corpus snapshot used for
// lexical search for a short TTL, per spec §4.5, since BM25 index
// construction is O(corpus) and repeated on every query otherwise.
type bm25Cache struct {
	mu      sync.Mutex
	entries map[string]*bm25CacheEntry
}

func newBM25Cache() *bm25Cache {
	return &bm25Cache{entries: make(map[string]*bm25CacheEntry)}
}

func bm25CacheKey(brandFilter string, limit int) string {
	return brandFilter + "\x00" + strconv.Itoa(limit)
}

func (c *bm25Cache) getOrBuild(key string, build func() []Chunk) (*bm25Index, []Chunk) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && time.Since(entry.builtAt) < bm25CacheTTL {
		c.mu.Unlock()
		return entry.index, entry.chunks
	}
	c.mu.Unlock()

	chunks := build()
	index := buildBM25Index(chunks)

	c.mu.Lock()
	c.entries[key] = &bm25CacheEntry{builtAt: time.Now(), chunks: chunks, index: index}
	c.mu.Unlock()

	return index, chunks
}
