package vectorstore

import "testing"

func TestBM25IndexRanksExactTermMatchHigher(t *testing.T) {
	chunks := []Chunk{
		{ID: "a", Content: "replace the fuse on the LCB board"},
		{ID: "b", Content: "general maintenance schedule for all boards"},
	}
	idx := buildBM25Index(chunks)
	scores := idx.score([]string{"fuse"})

	if scores[0] <= scores[1] {
		t.Fatalf("expected chunk mentioning 'fuse' to score higher, got %v vs %v", scores[0], scores[1])
	}
}

func TestBM25IndexEmptyCorpus(t *testing.T) {
	idx := buildBM25Index(nil)
	scores := idx.score([]string{"fuse"})
	if len(scores) != 0 {
		t.Fatalf("expected no scores for an empty corpus, got %v", scores)
	}
}

func TestBM25CacheKeyIncludesBrandAndLimit(t *testing.T) {
	a := bm25CacheKey("acme", 10)
	b := bm25CacheKey("acme", 20)
	c := bm25CacheKey("other", 10)
	if a == b || a == c {
		t.Fatalf("expected distinct cache keys for distinct (brand, limit) pairs, got %q, %q, %q", a, b, c)
	}
}

func TestBM25CacheReusesWithinTTL(t *testing.T) {
	cache := newBM25Cache()
	calls := 0
	build := func() []Chunk {
		calls++
		return []Chunk{{ID: "a", Content: "fuse replacement"}}
	}

	cache.getOrBuild("key", build)
	cache.getOrBuild("key", build)

	if calls != 1 {
		t.Fatalf("expected the build function to run once within the TTL, ran %d times", calls)
	}
}
