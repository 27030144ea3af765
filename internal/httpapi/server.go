// Package httpapi exposes the manual-QA service over HTTP, grounded on
// intelligencedev-manifold's internal/httpapi package: a thin *http.ServeMux
// wrapper using Go 1.22 pattern routing, with handlers split from routing.
package httpapi

import (
	"net/http"

	"github.com/adverant/nexus/manualqa/internal/config"
	"github.com/adverant/nexus/manualqa/internal/ingestion"
	"github.com/adverant/nexus/manualqa/internal/logging"
	"github.com/adverant/nexus/manualqa/internal/retrieval"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

const (
	queryRateLimitPerMinute  = 30
	uploadRateLimitPerMinute = 100
)

// Server wires the ingestion, retrieval, and storage subsystems to the
// routes of spec §6.
type Server struct {
	cfg        *config.Config
	orch       *ingestion.Orchestrator
	core       *retrieval.Core
	store      vectorstore.Store
	logger     *logging.Logger
	mux        *http.ServeMux
	queryLimit  *ipLimiters
	uploadLimit *ipLimiters
}

// NewServer constructs the HTTP API server and registers all routes.
func NewServer(cfg *config.Config, orch *ingestion.Orchestrator, core *retrieval.Core, store vectorstore.Store, logger *logging.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		orch:        orch,
		core:        core,
		store:       store,
		logger:      logger,
		mux:         http.NewServeMux(),
		queryLimit:  newIPLimiters(queryRateLimitPerMinute),
		uploadLimit: newIPLimiters(uploadRateLimitPerMinute),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler so Server can be passed straight to
// http.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", requireKey(s.cfg.APIKey, s.handleStats))
	s.mux.HandleFunc("GET /api/documents", requireKey(s.cfg.APIKey, s.handleDocuments))
	s.mux.HandleFunc("POST /api/check-duplicates", requireKey(s.cfg.AdminAPIKey, s.handleCheckDuplicates))

	s.mux.HandleFunc("POST /api/upload", requireKey(s.cfg.APIKey, s.uploadLimit.middleware(s.handleUpload)))
	s.mux.HandleFunc("GET /api/upload/status/{taskId}", requireKey(s.cfg.APIKey, s.handleUploadStatus))

	s.mux.HandleFunc("POST /api/query", requireKey(s.cfg.APIKey, s.queryLimit.middleware(s.handleQuery)))
	s.mux.HandleFunc("POST /api/search", requireKey(s.cfg.APIKey, s.queryLimit.middleware(s.handleSearch)))

	s.mux.HandleFunc("POST /api/reindex", requireKey(s.cfg.AdminAPIKey, s.handleReindex))
	s.mux.HandleFunc("DELETE /api/clear", requireKey(s.cfg.AdminAPIKey, s.handleClear))
	s.mux.HandleFunc("DELETE /api/clear-all", requireKey(s.cfg.AdminAPIKey, s.handleClearAll))
	s.mux.HandleFunc("POST /api/import-data", requireKey(s.cfg.AdminAPIKey, s.handleImportData))
	s.mux.HandleFunc("POST /api/compact", requireKey(s.cfg.AdminAPIKey, s.handleCompact))

	s.mux.HandleFunc("GET /api/telemetry/rag", requireKey(s.cfg.AdminAPIKey, s.handleTelemetry))
}
