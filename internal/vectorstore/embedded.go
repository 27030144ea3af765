package vectorstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/adverant/nexus/manualqa/internal/errors"
	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/textutil"
)

// EmbeddedStore is the file-backed vector store backend: a JSON snapshot
// plus an NDJSON append log, loaded once at startup and folded together by
// Compact(). Grounded on the teacher's StorageManager write-ordering
// discipline (internal/storage/storage_manager.go writes the durable side
// before touching the queryable side and rolls back on failure) adapted to
// a single-process, single-writer/multi-reader file store instead of a
// two-database coordinator.
type EmbeddedStore struct {
	snapshotPath string
	appendPath   string
	logger       *logging.Logger

	mu           sync.RWMutex
	chunks       []Chunk
	bySrc        map[string][]int // source -> indices into chunks
	byID         map[string]int
	loading      bool
	loadMsg      string
	loadProgress float64

	bm25 *bm25Cache
}

// NewEmbeddedStore constructs the embedded backend, rooted at dataDir
// (<dataDir>/vectors.json and <dataDir>/vectors_append.ndjson per spec §6).
func NewEmbeddedStore(dataDir string, logger *logging.Logger) (*EmbeddedStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &EmbeddedStore{
		snapshotPath: filepath.Join(dataDir, "vectors.json"),
		appendPath:   filepath.Join(dataDir, "vectors_append.ndjson"),
		logger:       logger,
		byID:         make(map[string]int),
		bySrc:        make(map[string][]int),
		bm25:         newBM25Cache(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the JSON snapshot, then replays the append log on top of it,
// reporting progress via loadMsg for a health-check caller to surface.
func (s *EmbeddedStore) load() error {
	s.mu.Lock()
	s.loading = true
	s.loadMsg = "loading snapshot"
	s.loadProgress = 0
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.loadMsg = ""
		s.loadProgress = 1
		s.mu.Unlock()
	}()

	var chunks []Chunk
	if data, err := os.ReadFile(s.snapshotPath); err == nil {
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("failed to parse vector snapshot: %w", err)
		}
		chunks, err = snap.toChunks()
		if err != nil {
			return fmt.Errorf("failed to parse vector snapshot: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read vector snapshot: %w", err)
	}

	s.mu.Lock()
	s.loadMsg = "replaying append log"
	s.loadProgress = 0.5
	s.mu.Unlock()

	if f, err := os.Open(s.appendPath); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(strings.TrimSpace(string(line))) == 0 {
				continue
			}
			var c Chunk
			if err := json.Unmarshal(line, &c); err != nil {
				s.logger.Warn("skipping malformed append-log line", "error", err.Error())
				continue
			}
			chunks = append(chunks, c)
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to replay append log: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to open append log: %w", err)
	}

	s.mu.Lock()
	s.setChunksLocked(dedupeByID(chunks))
	s.mu.Unlock()
	return nil
}

// setChunksLocked rebuilds the in-memory indexes; caller holds s.mu.
func (s *EmbeddedStore) setChunksLocked(chunks []Chunk) {
	s.chunks = chunks
	s.byID = make(map[string]int, len(chunks))
	s.bySrc = make(map[string][]int)
	for i, c := range chunks {
		s.byID[c.ID] = i
		s.bySrc[c.Metadata.Source] = append(s.bySrc[c.Metadata.Source], i)
	}
}

// snapshot is the on-disk columnar persisted shape for the compacted
// snapshot: parallel slices of ids/documents/metadatas/embeddings, indexed
// by position rather than one JSON object per chunk.
type snapshot struct {
	IDs        []string    `json:"ids"`
	Documents  []string    `json:"documents"`
	Metadatas  []Metadata  `json:"metadatas"`
	Embeddings [][]float32 `json:"embeddings"`
}

// chunksToSnapshot converts the in-memory chunk slice into the columnar
// on-disk shape.
func chunksToSnapshot(chunks []Chunk) snapshot {
	snap := snapshot{
		IDs:        make([]string, len(chunks)),
		Documents:  make([]string, len(chunks)),
		Metadatas:  make([]Metadata, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
	}
	for i, c := range chunks {
		snap.IDs[i] = c.ID
		snap.Documents[i] = c.Content
		snap.Metadatas[i] = c.Metadata
		snap.Embeddings[i] = c.Embedding
	}
	return snap
}

// toChunks reconstructs chunks from the columnar snapshot shape.
func (snap snapshot) toChunks() ([]Chunk, error) {
	n := len(snap.IDs)
	if len(snap.Documents) != n || len(snap.Metadatas) != n || len(snap.Embeddings) != n {
		return nil, fmt.Errorf("snapshot columns have mismatched lengths: ids=%d documents=%d metadatas=%d embeddings=%d",
			n, len(snap.Documents), len(snap.Metadatas), len(snap.Embeddings))
	}
	chunks := make([]Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = Chunk{
			ID:        snap.IDs[i],
			Content:   snap.Documents[i],
			Metadata:  snap.Metadatas[i],
			Embedding: snap.Embeddings[i],
		}
	}
	return chunks, nil
}

// dedupeByID keeps the last occurrence of each chunk id, so a reindex's
// append-log entries supersede a stale snapshot entry for the same id.
func dedupeByID(chunks []Chunk) []Chunk {
	last := make(map[string]int, len(chunks))
	for i, c := range chunks {
		last[c.ID] = i
	}
	out := make([]Chunk, 0, len(last))
	seen := make(map[string]bool, len(last))
	for i := len(chunks) - 1; i >= 0; i-- {
		c := chunks[i]
		if last[c.ID] != i || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Metadata.Source < out[b].Metadata.Source })
	return out
}

func (s *EmbeddedStore) checkReady() error {
	s.mu.RLock()
	loading, msg := s.loading, s.loadMsg
	s.mu.RUnlock()
	if loading {
		return errors.NewNotReadyError("vector store is still loading: "+msg, "")
	}
	return nil
}

// Loading reports whether the write-ahead log is still being replayed and
// a rough completion fraction, for /api/health to surface per spec §6.
func (s *EmbeddedStore) Loading() (bool, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading, s.loadProgress
}

// Add appends new chunks to the write-ahead log before inserting them into
// memory, per spec §4.5's append-before-insert durability ordering: a crash
// between the two leaves the log as the source of truth on next load.
func (s *EmbeddedStore) Add(ctx context.Context, chunks []Chunk) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.appendPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open append log: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, c := range chunks {
		line, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %q: %w", c.ID, err)
		}
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("failed to write append log: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write append log: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush append log: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to fsync append log: %w", err)
	}

	s.mu.Lock()
	for _, c := range chunks {
		if i, ok := s.byID[c.ID]; ok {
			s.chunks[i] = c
			continue
		}
		s.byID[c.ID] = len(s.chunks)
		s.bySrc[c.Metadata.Source] = append(s.bySrc[c.Metadata.Source], len(s.chunks))
		s.chunks = append(s.chunks, c)
	}
	s.mu.Unlock()
	return nil
}

// Search ranks chunks by cosine similarity against queryVec, optionally
// restricted to sources whose source or brand name case-insensitively
// contains brandFilter. An empty match set under a non-empty filter falls
// back to an unfiltered search, returning true as its second value so the
// caller can annotate the response, per spec §4.5.
func (s *EmbeddedStore) Search(ctx context.Context, queryVec []float32, k int, brandFilter string) ([]ScoredChunk, bool, error) {
	if err := s.checkReady(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	chunks := s.chunks
	s.mu.RUnlock()

	results := scoreBySimilarity(chunks, queryVec, brandFilter, k)
	if len(results) == 0 && brandFilter != "" {
		return scoreBySimilarity(chunks, queryVec, "", k), true, nil
	}
	return results, false, nil
}

func scoreBySimilarity(chunks []Chunk, queryVec []float32, brandFilter string, k int) []ScoredChunk {
	var scored []ScoredChunk
	for _, c := range chunks {
		if brandFilter != "" && !brandMatches(brandFilter, c.Metadata) {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Similarity: cosineSimilarity(queryVec, c.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func brandMatches(filter string, m Metadata) bool {
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(m.Source), f) || strings.Contains(strings.ToLower(m.BrandName), f)
}

// LexicalSearch ranks chunks by BM25 score against text's tokens, using a
// short-lived cached index keyed by (brandFilter, limit) per spec §4.5.
func (s *EmbeddedStore) LexicalSearch(ctx context.Context, text string, k int, brandFilter string) ([]ScoredChunk, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	key := bm25CacheKey(brandFilter, k)
	index, chunks := s.bm25.getOrBuild(key, func() []Chunk {
		s.mu.RLock()
		defer s.mu.RUnlock()
		var filtered []Chunk
		for _, c := range s.chunks {
			if brandFilter != "" && !brandMatches(brandFilter, c.Metadata) {
				continue
			}
			filtered = append(filtered, c)
		}
		return filtered
	})

	tokens := textutil.Tokenize(text)
	scores := index.score(tokens)

	out := make([]ScoredChunk, 0, len(scores))
	for idx, score := range scores {
		out = append(out, ScoredChunk{Chunk: chunks[idx], Similarity: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// HasSource reports whether name is an indexed source, matching first by
// exact name and falling back to a normalized (lowercased, whitespace
// collapsed) comparison -- never a substring match, per the spec's Open
// Question resolution in SPEC_FULL.md §14.
func (s *EmbeddedStore) HasSource(ctx context.Context, name string) (bool, error) {
	if err := s.checkReady(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.bySrc[name]; ok {
		return true, nil
	}
	normalized := textutil.NormalizedPrefix(name, 1<<20)
	for src := range s.bySrc {
		if textutil.NormalizedPrefix(src, 1<<20) == normalized {
			return true, nil
		}
	}
	return false, nil
}

// RemoveSources deletes every chunk belonging to any of names, rewriting
// the in-memory index and relying on the next Compact() to shrink the
// on-disk append log to match.
func (s *EmbeddedStore) RemoveSources(ctx context.Context, names []string) (RemoveResult, error) {
	if err := s.checkReady(); err != nil {
		return RemoveResult{}, err
	}
	toRemove := make(map[string]bool, len(names))
	for _, n := range names {
		toRemove[n] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []Chunk
	removed := 0
	for _, c := range s.chunks {
		if toRemove[c.Metadata.Source] {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.setChunksLocked(kept)
	return RemoveResult{Removed: removed, Remaining: len(kept)}, nil
}

// IndexedSources returns the distinct set of sources currently stored.
func (s *EmbeddedStore) IndexedSources(ctx context.Context) ([]string, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.bySrc))
	for src := range s.bySrc {
		out = append(out, src)
	}
	sort.Strings(out)
	return out, nil
}

// Stats reports the current chunk count.
func (s *EmbeddedStore) Stats(ctx context.Context) (Stats, error) {
	if err := s.checkReady(); err != nil {
		return Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{TotalDocuments: len(s.chunks), CollectionName: "embedded"}, nil
}

// ExportCorpus returns up to limit chunks (0 means unlimited), optionally
// filtered by brand, for NDJSON bulk export.
func (s *EmbeddedStore) ExportCorpus(ctx context.Context, limit int, brandFilter string) ([]Chunk, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Chunk
	for _, c := range s.chunks {
		if brandFilter != "" && !brandMatches(brandFilter, c.Metadata) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Compact folds the append log into the JSON snapshot atomically: write to
// a temp file in the same directory, fsync, then rename over the snapshot,
// so a crash mid-compaction never leaves a torn snapshot on disk.
func (s *EmbeddedStore) Compact(ctx context.Context) error {
	if err := s.checkReady(); err != nil {
		return err
	}
	s.mu.RLock()
	chunks := make([]Chunk, len(s.chunks))
	copy(chunks, s.chunks)
	s.mu.RUnlock()

	data, err := json.Marshal(chunksToSnapshot(chunks))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmpPath := s.snapshotPath + ".tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to fsync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.snapshotPath); err != nil {
		return fmt.Errorf("failed to rename temp snapshot: %w", err)
	}
	if err := os.Truncate(s.appendPath, 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to truncate append log: %w", err)
	}

	s.logger.Info("compacted vector store", "chunks", len(chunks))
	return nil
}

// Close is a no-op for the embedded backend: all state lives in already-
// flushed files.
func (s *EmbeddedStore) Close() error {
	return nil
}
