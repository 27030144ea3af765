package vectorstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/adverant/nexus/manualqa/internal/logging"
)

func newTestEmbeddedStore(t *testing.T) *EmbeddedStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewEmbeddedStore(dir, logging.NewLogger("test"))
	if err != nil {
		t.Fatalf("NewEmbeddedStore failed: %v", err)
	}
	return store
}

func TestEmbeddedStoreAddAndSearch(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "1", Content: "fuse replacement", Embedding: []float32{1, 0, 0}, Metadata: Metadata{Source: "manual-a.pdf", BrandName: "Acme"}},
		{ID: "2", Content: "unrelated content", Embedding: []float32{0, 1, 0}, Metadata: Metadata{Source: "manual-b.pdf", BrandName: "Other"}},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, fellBack, err := store.Search(ctx, []float32{1, 0, 0}, 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if fellBack {
		t.Fatalf("did not expect a brand-filter fallback for an unfiltered search")
	}
	if len(results) != 2 || results[0].Chunk.ID != "1" {
		t.Fatalf("expected chunk 1 ranked first, got %+v", results)
	}
}

func TestEmbeddedStoreAddUpsertsByID(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	original := Chunk{ID: "1", Content: "v1", Embedding: []float32{1, 0}, Metadata: Metadata{Source: "manual.pdf"}}
	updated := Chunk{ID: "1", Content: "v2", Embedding: []float32{1, 0}, Metadata: Metadata{Source: "manual.pdf"}}

	if err := store.Add(ctx, []Chunk{original}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(ctx, []Chunk{updated}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, _, err := store.Search(ctx, []float32{1, 0}, 5, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Content != "v2" {
		t.Fatalf("expected a single upserted chunk with content v2, got %+v", results)
	}
}

func TestEmbeddedStoreSearchBrandFilterFallback(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "1", Content: "fuse replacement", Embedding: []float32{1, 0}, Metadata: Metadata{Source: "manual-a.pdf", BrandName: "Acme"}},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, fellBack, err := store.Search(ctx, []float32{1, 0}, 5, "nonexistent-brand")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !fellBack {
		t.Fatalf("expected fallback to an unfiltered search when the brand filter matches nothing")
	}
	if len(results) != 1 {
		t.Fatalf("expected fallback search to return the unfiltered result, got %+v", results)
	}
}

func TestEmbeddedStoreLexicalSearch(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "1", Content: "replace the fuse on the LCB board", Metadata: Metadata{Source: "manual-a.pdf"}},
		{ID: "2", Content: "general maintenance schedule", Metadata: Metadata{Source: "manual-b.pdf"}},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results, err := store.LexicalSearch(ctx, "fuse", 5, "")
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}
	if len(results) == 0 || results[0].Chunk.ID != "1" {
		t.Fatalf("expected chunk 1 ranked first for 'fuse', got %+v", results)
	}
}

func TestEmbeddedStoreHasSourceNormalizedNotSubstring(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	chunks := []Chunk{{ID: "1", Content: "x", Metadata: Metadata{Source: "  Manual A.pdf  "}}}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	ok, err := store.HasSource(ctx, "manual a.pdf")
	if err != nil {
		t.Fatalf("HasSource failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected normalized match to succeed")
	}

	ok, err = store.HasSource(ctx, "Manual")
	if err != nil {
		t.Fatalf("HasSource failed: %v", err)
	}
	if ok {
		t.Fatalf("expected a substring to NOT match")
	}
}

func TestEmbeddedStoreRemoveAndIndexedSources(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "1", Content: "x", Metadata: Metadata{Source: "a.pdf"}},
		{ID: "2", Content: "y", Metadata: Metadata{Source: "b.pdf"}},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	result, err := store.RemoveSources(ctx, []string{"a.pdf"})
	if err != nil {
		t.Fatalf("RemoveSources failed: %v", err)
	}
	if result.Removed != 1 || result.Remaining != 1 {
		t.Fatalf("expected 1 removed and 1 remaining, got %+v", result)
	}

	sources, err := store.IndexedSources(ctx)
	if err != nil {
		t.Fatalf("IndexedSources failed: %v", err)
	}
	if len(sources) != 1 || sources[0] != "b.pdf" {
		t.Fatalf("expected only b.pdf to remain indexed, got %v", sources)
	}
}

func TestEmbeddedStoreStatsAndExportCorpus(t *testing.T) {
	store := newTestEmbeddedStore(t)
	ctx := context.Background()

	chunks := []Chunk{
		{ID: "1", Content: "x", Metadata: Metadata{Source: "a.pdf", BrandName: "Acme"}},
		{ID: "2", Content: "y", Metadata: Metadata{Source: "b.pdf", BrandName: "Other"}},
	}
	if err := store.Add(ctx, chunks); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalDocuments != 2 {
		t.Fatalf("expected 2 total documents, got %d", stats.TotalDocuments)
	}

	exported, err := store.ExportCorpus(ctx, 0, "acme")
	if err != nil {
		t.Fatalf("ExportCorpus failed: %v", err)
	}
	if len(exported) != 1 || exported[0].ID != "1" {
		t.Fatalf("expected brand-filtered export to return only chunk 1, got %+v", exported)
	}
}

func TestEmbeddedStoreCompactPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger("test")

	store, err := NewEmbeddedStore(dir, logger)
	if err != nil {
		t.Fatalf("NewEmbeddedStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Add(ctx, []Chunk{{ID: "1", Content: "x", Metadata: Metadata{Source: "a.pdf"}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Compact(ctx); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	appendData, err := os.ReadFile(filepath.Join(dir, "vectors_append.ndjson"))
	if err != nil {
		t.Fatalf("failed to read append log: %v", err)
	}
	if len(appendData) != 0 {
		t.Fatalf("expected append log to be truncated after compaction, got %d bytes", len(appendData))
	}

	reloaded, err := NewEmbeddedStore(dir, logger)
	if err != nil {
		t.Fatalf("reload after compaction failed: %v", err)
	}
	sources, err := reloaded.IndexedSources(ctx)
	if err != nil {
		t.Fatalf("IndexedSources failed: %v", err)
	}
	if len(sources) != 1 || sources[0] != "a.pdf" {
		t.Fatalf("expected compacted snapshot to survive reload, got %v", sources)
	}
}

func TestEmbeddedStoreCompactWritesColumnarSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewEmbeddedStore(dir, logging.NewLogger("test"))
	if err != nil {
		t.Fatalf("NewEmbeddedStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Add(ctx, []Chunk{{ID: "1", Content: "x", Embedding: []float32{1, 2}, Metadata: Metadata{Source: "a.pdf"}}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Compact(ctx); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "vectors.json"))
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("expected snapshot to parse as the columnar shape: %v", err)
	}
	if len(snap.IDs) != 1 || snap.IDs[0] != "1" {
		t.Fatalf("expected ids column [1], got %v", snap.IDs)
	}
	if len(snap.Documents) != 1 || snap.Documents[0] != "x" {
		t.Fatalf("expected documents column [x], got %v", snap.Documents)
	}
	if len(snap.Metadatas) != 1 || snap.Metadatas[0].Source != "a.pdf" {
		t.Fatalf("expected metadatas column with source a.pdf, got %v", snap.Metadatas)
	}
	if len(snap.Embeddings) != 1 || len(snap.Embeddings[0]) != 2 {
		t.Fatalf("expected embeddings column with one 2-dim vector, got %v", snap.Embeddings)
	}
}
