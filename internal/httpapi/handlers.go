package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/adverant/nexus/manualqa/internal/errors"
	"github.com/adverant/nexus/manualqa/internal/ingestion"
	"github.com/adverant/nexus/manualqa/internal/retrieval"
	"github.com/adverant/nexus/manualqa/internal/vectorstore"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loading, progress := s.store.Loading()
	if loading {
		respondJSON(w, http.StatusOK, map[string]any{"status": "loading", "loadingProgress": progress})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.IndexedSources(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": sources})
}

type checkDuplicatesRequest struct {
	Filenames []string `json:"fileNames"`
}

func (s *Server) handleCheckDuplicates(w http.ResponseWriter, r *http.Request) {
	var req checkDuplicatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("invalid request body: "+err.Error(), nil))
		return
	}
	duplicates := make(map[string]bool, len(req.Filenames))
	var newFiles []string
	for _, name := range req.Filenames {
		has, err := s.store.HasSource(r.Context(), name)
		if err != nil {
			respondError(w, err)
			return
		}
		duplicates[name] = has
		if !has {
			newFiles = append(newFiles, name)
		}
	}
	loading, _ := s.store.Loading()
	respondJSON(w, http.StatusOK, map[string]any{
		"duplicates": duplicates,
		"newFiles":   newFiles,
		"loading":    loading,
	})
}

const maxUploadMultipartMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMultipartMemory); err != nil {
		respondError(w, errors.NewValidationError("failed to parse upload: "+err.Error(), nil))
		return
	}
	file, header, err := r.FormFile("pdf")
	if err != nil {
		respondError(w, errors.NewValidationError("missing pdf field", nil))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, errors.NewInternalError("failed to read uploaded file", err))
		return
	}

	folder := r.FormValue("folder")
	brand := r.FormValue("brandName")

	taskID, skipped, err := s.orch.Admit(r.Context(), header.Filename, folder, brand, data)
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusAccepted
	if skipped {
		status = http.StatusOK
	}
	respondJSON(w, status, map[string]any{
		"taskId":  taskID,
		"skipped": skipped,
	})
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	task, ok := s.orch.Task(taskID)
	if !ok {
		respondError(w, errors.NewValidationError("unknown upload task", nil))
		return
	}
	respondJSON(w, http.StatusOK, task)
}

type queryRequest struct {
	Question    string           `json:"question"`
	TopK        int              `json:"topK"`
	BrandFilter string           `json:"brandFilter"`
	History     []retrieval.Turn `json:"history"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("invalid request body: "+err.Error(), nil))
		return
	}
	if req.Question == "" {
		respondError(w, errors.NewValidationError("question is required", nil))
		return
	}
	if len(req.Question) > 2000 {
		respondError(w, errors.NewValidationError("question exceeds maximum length of 2000 characters", nil))
		return
	}

	resp, err := s.core.Retrieve(r.Context(), retrieval.Request{
		Question:    req.Question,
		TopK:        req.TopK,
		BrandFilter: req.BrandFilter,
		History:     req.History,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleSearch is a raw lexical-search debug endpoint, separate from
// /api/query's full retrieval-and-answer pipeline: it returns the matching
// chunks directly with no generation call.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, errors.NewValidationError("q query parameter is required", nil))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	brandFilter := r.URL.Query().Get("brand")

	results, err := s.store.LexicalSearch(r.Context(), q, limit, brandFilter)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": results})
}

type reindexRequest struct {
	Pattern     string `json:"pattern"`
	BrandFilter string `json:"brandFilter"`
	DryRun      bool   `json:"dryRun"`
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	var req reindexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("invalid request body: "+err.Error(), nil))
		return
	}
	if req.Pattern == "" {
		req.Pattern = ".*"
	}
	result, err := s.orch.Reindex(r.Context(), ingestion.ReindexRequest{
		Pattern:     req.Pattern,
		BrandFilter: req.BrandFilter,
		DryRun:      req.DryRun,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type clearRequest struct {
	Sources []string `json:"sources"`
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.NewValidationError("invalid request body: "+err.Error(), nil))
		return
	}
	if len(req.Sources) == 0 {
		respondError(w, errors.NewValidationError("sources is required", nil))
		return
	}
	result, err := s.store.RemoveSources(r.Context(), req.Sources)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.IndexedSources(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if len(sources) == 0 {
		respondJSON(w, http.StatusOK, vectorstore.RemoveResult{})
		return
	}
	result, err := s.store.RemoveSources(r.Context(), sources)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleImportData(w http.ResponseWriter, r *http.Request) {
	imported, skipped, err := s.orch.BulkImport(r.Context(), r.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"imported": imported, "skipped": skipped})
}

func (s *Server) handleCompact(w http.ResponseWriter, r *http.Request) {
	compactable, ok := s.store.(vectorstore.Compactable)
	if !ok {
		respondError(w, errors.NewValidationError("the active vector store backend does not support compaction", nil))
		return
	}
	if err := compactable.Compact(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"compacted": true})
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"events": s.core.Telemetry()})
}
