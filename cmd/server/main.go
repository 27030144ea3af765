/**
 * manualqa server - Main Entry Point
 *
 * Retrieval-augmented question answering over PDF technical manuals:
 * OCR-aware ingestion, a dual-backend vector store, and a multi-query
 * retrieval core with clarification routing.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/adverant/nexus/manualqa/internal/config"
	"github.com/adverant/nexus/manualqa/internal/embedding"
	"github.com/adverant/nexus/manualqa/internal/extractor"
	"github.com/adverant/nexus/manualqa/internal/generation"
	"github.com/adverant/nexus/manualqa/internal/httpapi"
	"github.com/adverant/nexus/manualqa/internal/ingestion"
	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/ocr"
	"github.com/adverant/nexus/manualqa/internal/retrieval"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

func main() {
	if err := godotenv.Load(".env.manualqa"); err != nil {
		log.Printf("Warning: .env.manualqa not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger("manualqa")
	logger.Info("manualqa server starting", "backend", cfg.VectorBackend, "port", cfg.Port)

	logger.Info("initializing OCR engine", "mode", cfg.OCREngine, "workers", cfg.OCRWorkers)
	ocrEngine := ocr.NewEngine(ocr.EngineConfig{
		Workers:       cfg.OCRWorkers,
		PageTimeout:   cfg.OCRPageTimeout,
		GlobalTimeout: cfg.OCRGlobalTimeout,
		Mode:          cfg.OCREngine,
		VisionAPIKey:  cfg.GeminiAPIKey,
		TempDir:       cfg.TempDir,
	}, logger)

	pdfExtractor := extractor.New(ocrEngine, logger, cfg.PDFImageScale)

	embedder := embedding.New(embedding.Config{
		APIKey:      cfg.GeminiAPIKey,
		Dimension:   cfg.QdrantVectorSize,
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.EmbedConcurrency,
	}, logger)

	genClient := generation.New(cfg.GeminiAPIKey)

	logger.Info("initializing vector store", "backend", cfg.VectorBackend)
	store, err := newVectorStore(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer store.Close()

	orch := ingestion.New(cfg, pdfExtractor, embedder, store, logger)
	core := retrieval.New(cfg, store, embedder, genClient, logger)

	scheduler := cron.New()
	if compactable, ok := store.(vectorstore.Compactable); ok {
		if _, err := scheduler.AddFunc("@every 6h", func() {
			logger.Info("running scheduled compaction")
			if err := compactable.Compact(context.Background()); err != nil {
				logger.Warn("scheduled compaction failed", "error", err)
			}
		}); err != nil {
			logger.Warn("failed to schedule compaction", "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := httpapi.NewServer(cfg, orch, core, store, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("manualqa server READY", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logger.Info("received shutdown signal, shutting down gracefully", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("error during HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
}

func newVectorStore(cfg *config.Config, logger *logging.Logger) (vectorstore.Store, error) {
	if cfg.VectorBackend == config.BackendRemote {
		return vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantVectorSize, logger)
	}
	return vectorstore.NewEmbeddedStore(cfg.PDFPath, logger)
}

