// Package ocr implements C2: rasterizes weak PDF pages, runs recognition
// through a shared worker pool, and honors per-page and global timeouts.
package ocr

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/adverant/nexus/manualqa/internal/logging"
)

// EngineConfig configures the OCR worker pool.
type EngineConfig struct {
	Workers       int
	PageTimeout   time.Duration
	GlobalTimeout time.Duration
	Mode          string // "tesseract" or "vision"
	VisionBaseURL string
	VisionAPIKey  string
	TempDir       string
}

type pageJob struct {
	ctx     context.Context
	pdfPath string
	workDir string
	page    int
	scale   float64
	resultC chan PageResult
}

// Engine is the shared OCR worker pool described in spec §4.2/§5: lazily
// initialized on first use, shared across requests, torn down on shutdown
// with the pool reference nulled before per-worker teardown.
type Engine struct {
	cfg    EngineConfig
	vision *VisionClient
	logger *logging.Logger

	mu      sync.Mutex
	jobs    chan pageJob
	started bool
	done    chan struct{}
}

// NewEngine constructs the OCR engine. Workers are not started until the
// first call to ProcessPages.
func NewEngine(cfg EngineConfig, logger *logging.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.Workers > 8 {
		cfg.Workers = 8
	}
	e := &Engine{cfg: cfg, logger: logger}
	if cfg.Mode == "vision" {
		e.vision = NewVisionClient(cfg.VisionBaseURL, cfg.VisionAPIKey)
	}
	return e
}

func (e *Engine) ensureStarted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	jobs := make(chan pageJob, e.cfg.Workers*2)
	done := make(chan struct{})
	for i := 0; i < e.cfg.Workers; i++ {
		go e.worker(jobs, done)
	}
	e.jobs = jobs
	e.done = done
	e.started = true
}

func (e *Engine) worker(jobs chan pageJob, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			text, err := e.recognizePage(j.ctx, j.pdfPath, j.workDir, j.page, j.scale)
			j.resultC <- PageResult{Page: j.page, Text: text, Err: err}
		}
	}
}

// Terminate shuts down the worker pool. The shared channel reference is
// nulled before the teardown signal fires, so concurrent callers observe
// "no pool" rather than a half-torn worker, per spec §5.
func (e *Engine) Terminate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	jobs := e.jobs
	done := e.done
	e.jobs = nil
	e.started = false
	close(done)
	close(jobs)
}

// ProcessPages renders and recognizes the given pages, dispatching them
// round-robin across the worker pool. A per-page timeout races each
// recognition; a lost race drops that page silently. A global deadline ends
// further dispatch once exceeded; pages already completed form the partial
// result.
func (e *Engine) ProcessPages(ctx context.Context, pdfPath string, pages []int, scale float64) (*Result, error) {
	if len(pages) == 0 {
		return &Result{Pages: map[int]string{}}, nil
	}

	e.ensureStarted()

	workDir, err := os.MkdirTemp(e.cfg.TempDir, "ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create OCR work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	globalCtx, cancel := context.WithTimeout(ctx, e.cfg.GlobalTimeout)
	defer cancel()

	resultC := make(chan PageResult, len(pages))
	for _, page := range pages {
		job := pageJob{ctx: globalCtx, pdfPath: pdfPath, workDir: workDir, page: page, scale: scale, resultC: resultC}
		select {
		case e.jobs <- job:
		case <-globalCtx.Done():
			// Global deadline hit before this page could even be dispatched.
		}
	}

	pagesText := map[int]string{}
	remaining := len(pages)
	partial := false

collectLoop:
	for remaining > 0 {
		select {
		case r := <-resultC:
			remaining--
			if r.Err != nil {
				e.logger.Warn("OCR page failed", "page", r.Page, "error", r.Err.Error())
				continue
			}
			pagesText[r.Page] = r.Text
		case <-globalCtx.Done():
			partial = true
			break collectLoop
		}
	}

	if globalCtx.Err() != nil && len(pagesText) < len(pages) {
		partial = true
	}

	return &Result{Pages: pagesText, Partial: partial}, nil
}

// recognizePage rasterizes one page and runs recognition through the
// configured engine, racing the per-page timeout.
func (e *Engine) recognizePage(ctx context.Context, pdfPath, workDir string, page int, scale float64) (string, error) {
	pageCtx, cancel := context.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	resultC := make(chan outcome, 1)

	go func() {
		imgPath, err := rasterizePage(pageCtx, pdfPath, workDir, page, scale)
		if err != nil {
			resultC <- outcome{err: err}
			return
		}
		var text string
		if e.cfg.Mode == "vision" {
			text, err = e.vision.Recognize(pageCtx, imgPath)
		} else {
			text, err = recognizeTesseract(imgPath)
		}
		resultC <- outcome{text: text, err: err}
	}()

	select {
	case out := <-resultC:
		return out.text, out.err
	case <-pageCtx.Done():
		return "", fmt.Errorf("page %d OCR timed out after %v", page, e.cfg.PageTimeout)
	}
}
