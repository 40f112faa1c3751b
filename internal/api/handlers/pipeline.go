package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wonny/pulse/internal/pipeline"
	"github.com/wonny/pulse/pkg/logger"
)

// PipelineHandler exposes manual pipeline control. The nightly
// scheduler is the normal trigger; this endpoint exists for reruns
// after an ingestion backfill.
type PipelineHandler struct {
	orchestrator *pipeline.Orchestrator
	logger       *logger.Logger

	mu         sync.Mutex
	running    bool
	lastResult *pipeline.RunResult
	lastError  string
	lastRunAt  time.Time
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(orchestrator *pipeline.Orchestrator, log *logger.Logger) *PipelineHandler {
	return &PipelineHandler{orchestrator: orchestrator, logger: log}
}

// Run triggers a full rebuild in the background
// POST /api/pipeline/run
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, http.StatusConflict, "Pipeline run already in progress")
		return
	}
	h.running = true
	h.lastRunAt = time.Now()
	h.mu.Unlock()

	go func() {
		// Detached from the request: the rebuild outlives the response
		result, err := h.orchestrator.Run(context.Background())

		h.mu.Lock()
		defer h.mu.Unlock()
		h.running = false
		if err != nil {
			h.lastError = err.Error()
			h.lastResult = nil
			return
		}
		h.lastError = ""
		h.lastResult = result
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

// Status reports the current and last pipeline run
// GET /api/pipeline/status
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	resp := map[string]interface{}{
		"running": h.running,
	}
	if !h.lastRunAt.IsZero() {
		resp["last_run_at"] = h.lastRunAt.UTC().Format(time.RFC3339)
	}
	if h.lastResult != nil {
		resp["last_result"] = h.lastResult
	}
	if h.lastError != "" {
		resp["last_error"] = h.lastError
	}

	respondJSON(w, http.StatusOK, resp)
}
