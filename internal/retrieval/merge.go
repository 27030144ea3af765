package retrieval

import (
	"sort"

	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

const (
	similarityThreshold = 0.55
	maxContextDocs       = 15
	maxPerSource         = 8
)

// mergeBySourceChunk combines per-query search results, keeping the
// maximum similarity seen for each (source, chunkIndex) pair across all
// queries, per spec §4.7 step 3.
func mergeBySourceChunk(perQuery [][]vectorstore.ScoredChunk) []vectorstore.ScoredChunk {
	type key struct {
		source string
		chunk  int
	}
	best := make(map[key]vectorstore.ScoredChunk)
	var order []key

	for _, results := range perQuery {
		for _, sc := range results {
			k := key{source: sc.Chunk.Metadata.Source, chunk: sc.Chunk.Metadata.ChunkIndex}
			existing, ok := best[k]
			if !ok {
				order = append(order, k)
				best[k] = sc
				continue
			}
			if sc.Similarity > existing.Similarity {
				best[k] = sc
			}
		}
	}

	merged := make([]vectorstore.ScoredChunk, len(order))
	for i, k := range order {
		merged[i] = best[k]
	}

	// Stable sort preserves first-seen order for similarity ties.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})
	return merged
}

// selectDiverse applies the similarity threshold and the diversity caps
// (MAX_CONTEXT_DOCS total, MAX_PER_SOURCE per document) to a
// similarity-sorted merged list, per spec §4.7 step 4.
func selectDiverse(merged []vectorstore.ScoredChunk) []vectorstore.ScoredChunk {
	perSource := make(map[string]int)
	var selected []vectorstore.ScoredChunk

	for _, sc := range merged {
		if sc.Similarity < similarityThreshold {
			continue
		}
		source := sc.Chunk.Metadata.Source
		if perSource[source] >= maxPerSource {
			continue
		}
		selected = append(selected, sc)
		perSource[source]++
		if len(selected) >= maxContextDocs {
			break
		}
	}
	return selected
}
