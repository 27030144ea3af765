package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/manualqa/internal/brand"
	"github.com/adverant/nexus/manualqa/internal/chunker"
	"github.com/adverant/nexus/manualqa/internal/config"
	"github.com/adverant/nexus/manualqa/internal/embedding"
	"github.com/adverant/nexus/manualqa/internal/errors"
	"github.com/adverant/nexus/manualqa/internal/extractor"
	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

// taskGCAfter is how long a terminal task stays visible before the
// orchestrator's sweep drops it, per spec §4.6.
const taskGCAfter = 5 * time.Minute

// Orchestrator drives C6's admission and staged pipeline. Grounded on
// internal/processor/processor.go's ProcessDocument (numbered stages,
// step-by-step structured logging) and internal/queue/redis_consumer.go's
// guarded in-process job bookkeeping, with the network clients (MageAgent,
// GraphRAG, ArtifactClient) internalized into direct calls against this
// service's own extractor/chunker/embedding/vectorstore packages.
type Orchestrator struct {
	cfg       *config.Config
	extractor *extractor.Extractor
	chunker   func() *chunker.Chunker
	embedder  *embedding.Client
	store     vectorstore.Store
	logger    *logging.Logger

	mu    sync.RWMutex
	tasks map[string]*Task
}

// New constructs the ingestion orchestrator and starts its background
// task-map sweep.
func New(cfg *config.Config, ext *extractor.Extractor, embedder *embedding.Client, store vectorstore.Store, logger *logging.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg,
		extractor: ext,
		chunker:   chunker.New,
		embedder:  embedder,
		store:     store,
		logger:    logger,
		tasks:     make(map[string]*Task),
	}
	go o.gcLoop()
	return o
}

func (o *Orchestrator) gcLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		o.mu.Lock()
		for id, t := range o.tasks {
			if t.isTerminal() && !t.DoneAt.IsZero() && time.Since(t.DoneAt) > taskGCAfter {
				delete(o.tasks, id)
			}
		}
		o.mu.Unlock()
	}
}

// Task returns a snapshot of a tracked task, or false if unknown (already
// GC'd or never existed).
func (o *Orchestrator) Task(id string) (Task, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	t, ok := o.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (o *Orchestrator) setStatus(id string, status Status, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return
	}
	t.Status = status
	t.Message = message
	t.UpdatedAt = time.Now()
	if t.isTerminal() {
		t.DoneAt = t.UpdatedAt
	}
}

func (o *Orchestrator) fail(id string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.tasks[id]
	if !ok {
		return
	}
	t.Status = StatusError
	t.Error = err.Error()
	now := time.Now()
	t.UpdatedAt = now
	t.DoneAt = now
}

// Admit validates and stages an uploaded PDF, persists it under cfg.PDFPath,
// and returns its taskId immediately; the pipeline itself runs in the
// background. skipped is true when the source is already indexed (the
// duplicate-skip rule in spec §4.6) and no task was created.
func (o *Orchestrator) Admit(ctx context.Context, originalFilename string, folder string, explicitBrand string, data []byte) (taskID string, skipped bool, err error) {
	if len(data) == 0 {
		return "", false, errors.NewValidationError("uploaded file is empty", nil)
	}
	if int64(len(data)) > o.cfg.MaxFileSize {
		return "", false, errors.NewValidationError(
			fmt.Sprintf("file exceeds maximum size of %d bytes", o.cfg.MaxFileSize), nil)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return "", false, errors.NewValidationError("file is not a valid PDF (missing %PDF header)", nil)
	}

	exists, err := o.store.HasSource(ctx, originalFilename)
	if err != nil {
		return "", false, err
	}
	if exists {
		return "", true, nil
	}

	resolvedBrand := brand.Resolve(explicitBrand, folder, originalFilename)

	diskName := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.New().String()[:8], originalFilename)
	diskPath := filepath.Join(o.cfg.PDFPath, "pdfs", resolvedBrand, diskName)
	if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
		return "", false, errors.NewInternalError("failed to create pdf storage directory", err)
	}
	if err := os.WriteFile(diskPath, data, 0o644); err != nil {
		return "", false, errors.NewInternalError("failed to persist uploaded pdf", err)
	}

	id := uuid.New().String()
	now := time.Now()
	task := &Task{
		ID:        id,
		Filename:  originalFilename,
		Brand:     resolvedBrand,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.mu.Lock()
	o.tasks[id] = task
	o.mu.Unlock()

	go o.run(id, diskPath, originalFilename, resolvedBrand)

	return id, false, nil
}

// run executes the staged pipeline for one task: extract, chunk, embed,
// persist. A supervisory timeout bounds the extraction stage; on timeout
// the pipeline retries once with OCR disabled (text-only fallback), per
// spec §4.6, rather than failing the whole ingestion.
func (o *Orchestrator) run(taskID, diskPath, filename, resolvedBrand string) {
	o.setStatus(taskID, StatusExtracting, "extracting text")

	extractCtx, cancel := context.WithTimeout(context.Background(), o.cfg.UploadExtractTimeout)
	result, err := o.extractor.Extract(extractCtx, diskPath, taskID)
	cancel()

	if err != nil {
		if extractCtx.Err() != nil {
			o.logger.Warn("extraction supervisory timeout, retrying text-only", "task_id", taskID)
			fallbackCtx, fallbackCancel := context.WithTimeout(context.Background(), o.cfg.UploadExtractTimeout)
			result, err = o.extractor.ExtractTextOnly(fallbackCtx, diskPath, taskID)
			fallbackCancel()
		}
		if err != nil {
			o.logger.Error("extraction failed", "task_id", taskID, "error", err.Error())
			o.fail(taskID, err)
			return
		}
	}

	chunks := o.chunker().ChunkDocument(result.Text)
	if len(chunks) == 0 {
		o.fail(taskID, errors.NewExtractionError(taskID, "no chunks produced from extracted text", nil))
		return
	}

	o.setStatus(taskID, StatusEmbedding, fmt.Sprintf("embedding %d chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embedCtx, embedCancel := context.WithTimeout(context.Background(), o.cfg.UploadExtractTimeout)
	embeddings, err := o.embedder.EmbedMany(embedCtx, texts, func(p embedding.Progress) {
		o.setStatus(taskID, StatusEmbedding, fmt.Sprintf("embedded %d/%d chunks", p.Current, p.Total))
	})
	embedCancel()
	if err != nil {
		o.fail(taskID, errors.NewUpstreamError("embedding", err))
		return
	}

	o.setStatus(taskID, StatusSaving, "saving to vector store")

	now := time.Now().UTC().Format(time.RFC3339)
	storeChunks := make([]vectorstore.Chunk, 0, len(chunks))
	for i, c := range chunks {
		if embeddings[i] == nil {
			continue
		}
		storeChunks = append(storeChunks, vectorstore.Chunk{
			ID:        fmt.Sprintf("%s-%d", taskID, c.ChunkIndex),
			Content:   c.Content,
			Embedding: embeddings[i],
			Metadata: vectorstore.Metadata{
				Source:     filename,
				BrandName:  resolvedBrand,
				Page:       c.Page,
				ChunkIndex: c.ChunkIndex,
				ChunkType:  string(c.ChunkType),
				FaultCode:  c.FaultCode,
				Title:      filename,
				NumPages:   result.NumPages,
				UploadedAt: now,
				OCRUsed:    result.OCRUsed,
				OCRPartial: result.OCRPartial,
			},
		})
	}

	if len(storeChunks) == 0 {
		o.fail(taskID, errors.NewUpstreamError("embedding", fmt.Errorf("all chunks failed to embed")))
		return
	}

	saveCtx, saveCancel := context.WithTimeout(context.Background(), o.cfg.UploadExtractTimeout)
	err = o.store.Add(saveCtx, storeChunks)
	saveCancel()
	if err != nil {
		o.fail(taskID, errors.NewStorageFailedError(taskID, err))
		return
	}

	o.mu.Lock()
	if t, ok := o.tasks[taskID]; ok {
		t.ChunkCount = len(storeChunks)
		t.OCRPartial = result.OCRPartial
	}
	o.mu.Unlock()

	msg := fmt.Sprintf("indexed %d chunks", len(storeChunks))
	if result.OCRPartial {
		msg += " (partial OCR: some pages may be incomplete)"
	}
	o.setStatus(taskID, StatusDone, msg)
	o.logger.Info("ingestion complete", "task_id", taskID, "filename", filename, "chunks", len(storeChunks), "ocr_partial", result.OCRPartial)
}
