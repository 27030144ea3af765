package retrieval

import (
	"testing"

	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

func chunk(source string, idx int, sim float64) vectorstore.ScoredChunk {
	return vectorstore.ScoredChunk{
		Chunk: vectorstore.Chunk{
			Metadata: vectorstore.Metadata{Source: source, ChunkIndex: idx},
		},
		Similarity: sim,
	}
}

func TestMergeBySourceChunkKeepsMax(t *testing.T) {
	perQuery := [][]vectorstore.ScoredChunk{
		{chunk("manual-a.pdf", 1, 0.4), chunk("manual-b.pdf", 0, 0.9)},
		{chunk("manual-a.pdf", 1, 0.7)},
	}
	merged := mergeBySourceChunk(perQuery)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged entries, got %d", len(merged))
	}
	if merged[0].Chunk.Metadata.Source != "manual-b.pdf" || merged[0].Similarity != 0.9 {
		t.Fatalf("expected manual-b.pdf first with similarity 0.9, got %+v", merged[0])
	}
	if merged[1].Similarity != 0.7 {
		t.Fatalf("expected manual-a.pdf chunk 1 kept at max similarity 0.7, got %v", merged[1].Similarity)
	}
}

func TestSelectDiverseAppliesThresholdAndCaps(t *testing.T) {
	var merged []vectorstore.ScoredChunk
	for i := 0; i < 10; i++ {
		merged = append(merged, chunk("manual-a.pdf", i, 0.9))
	}
	merged = append(merged, chunk("manual-b.pdf", 0, 0.6))
	merged = append(merged, chunk("manual-c.pdf", 0, 0.1))

	selected := selectDiverse(merged)

	var fromA int
	for _, sc := range selected {
		if sc.Chunk.Metadata.Source == "manual-a.pdf" {
			fromA++
		}
		if sc.Similarity < similarityThreshold {
			t.Fatalf("selected chunk below threshold: %+v", sc)
		}
	}
	if fromA > maxPerSource {
		t.Fatalf("expected at most %d chunks per source, got %d", maxPerSource, fromA)
	}
	if len(selected) > maxContextDocs {
		t.Fatalf("expected at most %d selected chunks, got %d", maxContextDocs, len(selected))
	}
}
