package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mlindqvist/product-enricher/internal/batch"
	"github.com/mlindqvist/product-enricher/internal/common"
	"github.com/mlindqvist/product-enricher/internal/entity"
	"github.com/mlindqvist/product-enricher/internal/export"
	"github.com/mlindqvist/product-enricher/internal/ingest"
	"github.com/mlindqvist/product-enricher/internal/repository"
)

// RunsHandler exposes the batch run lifecycle over HTTP.
type RunsHandler struct {
	controller *batch.Controller
	exporter   *export.Service
	runsRepo   repository.RunRepository
	hub        *ProgressHub
	logger     *slog.Logger
}

func NewRunsHandler(controller *batch.Controller, exporter *export.Service, runsRepo repository.RunRepository, hub *ProgressHub, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{
		controller: controller,
		exporter:   exporter,
		runsRepo:   runsRepo,
		hub:        hub,
		logger:     logger,
	}
}

type startRunRequest struct {
	Records []entity.ProductRecord  `json:"records"`
	Config  entity.ExtractionConfig `json:"config"`
}

type startRunResponse struct {
	RunID string             `json:"run_id"`
	Items []entity.ItemState `json:"items"`
}

// StartRun launches a new batch run. One run at a time: a second start
// while a run is in flight is rejected with 409.
func (h *RunsHandler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	if cur := h.controller.Current(); cur != nil {
		if _, terminal := cur.Summary(); !terminal {
			writeError(w, http.StatusConflict, "a run is already in progress")
			return
		}
	}

	records := ingest.NormalizeRecords(req.Records, h.logger)
	if err := ingest.ValidateRecords(records); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Config.Concurrency < 1 {
		req.Config.Concurrency = 1
	}

	// The run outlives this request; do not tie it to r.Context().
	run, err := h.controller.Start(context.Background(), records, req.Config)
	if err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && errors.Is(appErr, common.ErrValidation) {
			writeError(w, http.StatusBadRequest, appErr.Message)
			return
		}
		h.logger.Error("server.run.start_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	writeJSON(w, http.StatusAccepted, startRunResponse{
		RunID: run.ID.String(),
		Items: run.Items(),
	})
}

// CurrentStatus reports the live item snapshot and, once terminal, the
// summary.
func (h *RunsHandler) CurrentStatus(w http.ResponseWriter, r *http.Request) {
	run := h.controller.Current()
	if run == nil {
		writeError(w, http.StatusNotFound, "no run")
		return
	}
	resp := map[string]any{
		"run_id": run.ID.String(),
		"items":  run.Items(),
	}
	if summary, ok := run.Summary(); ok {
		resp["summary"] = summary
	}
	writeJSON(w, http.StatusOK, resp)
}

// StopRun signals cancellation of the current run. Idempotent.
func (h *RunsHandler) StopRun(w http.ResponseWriter, r *http.Request) {
	run := h.controller.Current()
	if run == nil {
		writeError(w, http.StatusNotFound, "no run")
		return
	}
	run.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"stopping": true})
}

// ResetRun clears the current run reference after stopping it.
func (h *RunsHandler) ResetRun(w http.ResponseWriter, r *http.Request) {
	h.controller.Stop()
	h.controller.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}

// ExportCurrent streams the completed results of the current run as XLSX.
func (h *RunsHandler) ExportCurrent(w http.ResponseWriter, r *http.Request) {
	run := h.controller.Current()
	if run == nil {
		writeError(w, http.StatusNotFound, "no run")
		return
	}
	results := run.CompletedResults()
	if len(results) == 0 {
		writeError(w, http.StatusNotFound, "no completed results")
		return
	}
	data, err := h.exporter.ResultsXLSX(results, run.Config.Properties)
	if err != nil {
		h.logger.Error("server.export.failed", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Events streams item-state snapshots as server-sent events until the
// client disconnects.
func (h *RunsHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(ch)

	// send the current snapshot immediately so late subscribers catch up
	if run := h.controller.Current(); run != nil {
		writeEvent(w, flusher, run.Items())
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case items := <-ch:
			writeEvent(w, flusher, items)
		}
	}
}

// History lists persisted runs, newest first.
func (h *RunsHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.runsRepo == nil {
		writeJSON(w, http.StatusOK, []entity.RunRecord{})
		return
	}
	runs, err := h.runsRepo.ListRuns(r.Context(), 50)
	if err != nil {
		h.logger.Error("server.history.failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []entity.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HistoryResults returns the persisted results of one run.
func (h *RunsHandler) HistoryResults(w http.ResponseWriter, r *http.Request) {
	if h.runsRepo == nil {
		writeError(w, http.StatusNotFound, "run history disabled")
		return
	}
	runID := chi.URLParam(r, "runID")
	results, err := h.runsRepo.ResultsForRun(r.Context(), runID)
	if err != nil {
		h.logger.Error("server.history_results.failed", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if results == nil {
		results = []entity.ExtractionResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, items []entity.ItemState) {
	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// healthHandler reports liveness; the DB is optional so it is not probed.
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}
