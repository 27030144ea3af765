package retrieval

import (
	"context"
	"testing"

	"github.com/adverant/nexus/manualqa/internal/logging"
)

func TestResponseCacheInMemoryRoundTrip(t *testing.T) {
	c := newResponseCache("", logging.NewLogger("test"))
	ctx := context.Background()

	if _, ok := c.get(ctx, "how do I reset the LCB board?", "acme"); ok {
		t.Fatalf("expected cache miss before any set")
	}

	want := &Response{Answer: "press and hold the reset button for 5 seconds"}
	c.set(ctx, "how do I reset the LCB board?", "acme", want)

	got, ok := c.get(ctx, "How Do I Reset The LCB Board?", "acme")
	if !ok {
		t.Fatalf("expected cache hit on case/whitespace-normalized question")
	}
	if got.Answer != want.Answer {
		t.Fatalf("got answer %q, want %q", got.Answer, want.Answer)
	}
	if !got.FromCache {
		t.Fatalf("expected FromCache to be set on a cache hit")
	}
}

func TestResponseCacheKeyIncludesBrandFilter(t *testing.T) {
	c := newResponseCache("", logging.NewLogger("test"))
	ctx := context.Background()

	c.set(ctx, "question", "brand-a", &Response{Answer: "a"})

	if _, ok := c.get(ctx, "question", "brand-b"); ok {
		t.Fatalf("expected brand filter to be part of the cache key")
	}
}
