package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adverant/nexus/manualqa/internal/brand"
	"github.com/adverant/nexus/manualqa/internal/errors"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

// ReindexRequest selects which already-uploaded PDFs to reprocess, per
// spec §4.6: a filename regex, an optional brand filter, and a dry-run
// switch that reports matches without touching the store.
type ReindexRequest struct {
	Pattern     string
	BrandFilter string
	DryRun      bool
}

// ReindexResult reports what matched and, for a real run, what changed.
type ReindexResult struct {
	Matched     []string          `json:"matched"`
	Reprocessed []string          `json:"reprocessed"`
	Failed      map[string]string `json:"failed"`
}

// Reindex re-extracts, re-chunks, and re-embeds every on-disk PDF whose
// original filename matches pattern and brand filter, replacing that
// source's chunks in the vector store. Brand/folder resolution re-runs
// exactly as at ingestion time (internal/brand.Resolve), so a document
// moved between brand folders since its original upload picks up the new
// brand on reindex.
func (o *Orchestrator) Reindex(ctx context.Context, req ReindexRequest) (*ReindexResult, error) {
	re, err := regexp.Compile(req.Pattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid reindex pattern: "+err.Error(), nil)
	}

	pdfDir := filepath.Join(o.cfg.PDFPath, "pdfs")
	if _, err := os.Stat(pdfDir); err != nil {
		if os.IsNotExist(err) {
			return &ReindexResult{Failed: map[string]string{}}, nil
		}
		return nil, errors.NewInternalError("failed to stat pdf directory", err)
	}

	result := &ReindexResult{Failed: map[string]string{}}

	// Admit persists uploads under pdfs/<optionalBrand>/<diskName>, so the
	// walk has to recurse through brand subfolders rather than listing
	// pdfDir non-recursively.
	walkErr := filepath.WalkDir(pdfDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		diskName := entry.Name()
		originalName := stripDiskPrefix(diskName)
		if !re.MatchString(originalName) {
			return nil
		}

		folder := filepath.Base(filepath.Dir(path))
		if folder == filepath.Base(pdfDir) {
			folder = ""
		}
		resolvedBrand := brand.Resolve("", folder, originalName)
		if req.BrandFilter != "" && !brand.MatchesFilter(req.BrandFilter, originalName, resolvedBrand) {
			return nil
		}
		result.Matched = append(result.Matched, originalName)

		if req.DryRun {
			return nil
		}

		if err := o.reprocessSource(ctx, path, originalName, resolvedBrand); err != nil {
			result.Failed[originalName] = err.Error()
			return nil
		}
		result.Reprocessed = append(result.Reprocessed, originalName)
		return nil
	})
	if walkErr != nil {
		return nil, errors.NewInternalError("failed to walk pdf directory", walkErr)
	}

	return result, nil
}

// reprocessSource runs the extract → chunk → embed pipeline synchronously
// (reindex is an admin operation, not a background upload) and replaces the
// source's existing chunks: the old chunks are removed before the new ones
// are added, since the new chunk ids don't match the original ingestion's
// ids and the store has no id-scoped delete, only a source-scoped one.
func (o *Orchestrator) reprocessSource(ctx context.Context, diskPath, originalName, resolvedBrand string) error {
	extractCtx, cancel := context.WithTimeout(ctx, o.cfg.UploadExtractTimeout)
	result, err := o.extractor.Extract(extractCtx, diskPath, "")
	cancel()
	if err != nil {
		return err
	}

	chunks := o.chunker().ChunkDocument(result.Text)
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks produced from extracted text")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedCtx, embedCancel := context.WithTimeout(ctx, o.cfg.UploadExtractTimeout)
	embeddings, err := o.embedder.EmbedMany(embedCtx, texts, nil)
	embedCancel()
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	storeChunks := make([]vectorstore.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if embeddings[i] == nil {
			continue
		}
		storeChunks = append(storeChunks, vectorstore.Chunk{
			ID:        fmt.Sprintf("%s-reindex-%d", originalName, c.ChunkIndex),
			Content:   c.Content,
			Embedding: embeddings[i],
			Metadata: vectorstore.Metadata{
				Source:      originalName,
				BrandName:   resolvedBrand,
				Page:        c.Page,
				ChunkIndex:  c.ChunkIndex,
				ChunkType:   string(c.ChunkType),
				FaultCode:   c.FaultCode,
				Title:       originalName,
				NumPages:    result.NumPages,
				ReindexedAt: now,
				OCRUsed:     result.OCRUsed,
				OCRPartial:  result.OCRPartial,
			},
		})
	}
	if len(storeChunks) == 0 {
		return fmt.Errorf("all chunks failed to embed")
	}

	if _, err := o.store.RemoveSources(ctx, []string{originalName}); err != nil {
		return fmt.Errorf("failed to remove stale chunks before reindex: %w", err)
	}
	if err := o.store.Add(ctx, storeChunks); err != nil {
		return err
	}

	o.logger.Info("reindexed source", "source", originalName, "chunks", len(storeChunks))
	return nil
}

// stripDiskPrefix removes the "<millis>-<random>-" prefix Admit adds to a
// disk filename, recovering the original upload name.
func stripDiskPrefix(diskName string) string {
	parts := splitN(diskName, '-', 3)
	if len(parts) == 3 {
		return parts[2]
	}
	return diskName
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
