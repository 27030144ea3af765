// Package vectorstore implements C5: a persistent store of chunks with two
// interchangeable backends (embedded file-backed, and remote Qdrant reached
// over its gRPC API, not its HTTP API) behind a single interface, per spec §4.5 and §9's dynamic-dispatch note.
package vectorstore

import "context"

// Metadata is the structured record attached to every chunk, per spec §3.
type Metadata struct {
	Source      string `json:"source"`
	BrandName   string `json:"brandName,omitempty"`
	Page        int    `json:"page,omitempty"`
	ChunkIndex  int    `json:"chunkIndex"`
	ChunkType   string `json:"chunkType"`
	FaultCode   string `json:"faultCode,omitempty"`
	Title       string `json:"title,omitempty"`
	NumPages    int    `json:"numPages,omitempty"`
	UploadedAt  string `json:"uploadedAt,omitempty"`
	ReindexedAt string `json:"reindexedAt,omitempty"`
	OCRUsed     bool   `json:"ocrUsed"`
	OCRPartial  bool   `json:"ocrPartial,omitempty"`
}

// Chunk is the store's unit of retrieval: (id, content, metadata, embedding).
type Chunk struct {
	ID        string    `json:"id"`
	Content   string    `json:"document"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}

// ScoredChunk pairs a chunk with its similarity score from a search.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}

// Stats is the store-size summary returned by Stats().
type Stats struct {
	TotalDocuments int    `json:"totalDocuments"`
	CollectionName string `json:"collectionName"`
}

// RemoveResult is removeSources' result shape.
type RemoveResult struct {
	Removed   int `json:"removed"`
	Remaining int `json:"remaining"`
}

// Store is the single interface both backends implement, per spec §4.5/§9.
type Store interface {
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, queryVec []float32, k int, brandFilter string) ([]ScoredChunk, bool, error)
	LexicalSearch(ctx context.Context, text string, k int, brandFilter string) ([]ScoredChunk, error)
	HasSource(ctx context.Context, name string) (bool, error)
	RemoveSources(ctx context.Context, names []string) (RemoveResult, error)
	IndexedSources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	ExportCorpus(ctx context.Context, limit int, brandFilter string) ([]Chunk, error)
	Close() error

	// Loading reports whether the store is still replaying its
	// write-ahead log at startup, and a rough completion fraction in
	// [0, 1] for the caller to surface, per spec §6's health endpoint.
	Loading() (bool, float64)
}

// Compactable is implemented by backends that fold a write-ahead log into a
// snapshot. Only the embedded backend implements it.
type Compactable interface {
	Compact(ctx context.Context) error
}
