// Package hostapi is the thin HTTP surface over the pipeline supervisor and
// sandbox monitor: the web-search proxy containers call out to, plus the
// run and sandbox status and control routes the CLI calls, per §4.13 and §6.
package hostapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"skillforge/pkg/errors"
	"skillforge/pkg/monitor"
	"skillforge/pkg/pipeline"
	"skillforge/pkg/search"
)

// Deps bundles the components route handlers forward to. None of them
// carry business logic of their own.
type Deps struct {
	Pipelines *pipeline.Supervisor
	Monitors  *monitor.Supervisor
	Search    *search.Client
	Logger    *slog.Logger
}

// NewRouter builds the full host API mux.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()
	h := &handlers{deps: deps}

	r.HandleFunc("/api/tools/search", h.search).Methods(http.MethodPost)
	r.HandleFunc("/api/pipelines", h.startPipeline).Methods(http.MethodPost)
	r.HandleFunc("/api/runs/{id}", h.getRun).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}/approve", h.approve).Methods(http.MethodPost)
	r.HandleFunc("/api/runs/{id}/reanalyze", h.reanalyze).Methods(http.MethodPost)
	r.HandleFunc("/api/runs/{id}/retry", h.retry).Methods(http.MethodPost)
	r.HandleFunc("/api/sandboxes/{id}/logs", h.getLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/sandboxes/{id}/stop", h.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/sandboxes/{id}/restart", h.restart).Methods(http.MethodPost)
	r.HandleFunc("/api/sandboxes/{id}/destroy", h.destroy).Methods(http.MethodPost)

	return r
}

type handlers struct {
	deps Deps
}

type searchRequest struct {
	Query string `json:"query"`
}

// search implements the web-search proxy's exact response shapes from §6.
func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error", "error": "Missing or empty 'query' parameter",
		})
		return
	}

	results, err := h.deps.Search.Query(r.Context(), req.Query)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error", "error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "results": results})
}

func (h *handlers) startPipeline(w http.ResponseWriter, r *http.Request) {
	skillID := r.URL.Query().Get("skill_id")
	if skillID == "" {
		writeErr(w, errors.New(errors.CodeEmptyContent, "hostapi", "missing skill_id query parameter", nil))
		return
	}
	run, err := h.deps.Pipelines.StartPipeline(r.Context(), skillID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := h.deps.Pipelines.GetRun(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) approve(w http.ResponseWriter, r *http.Request) {
	h.dispatchRunnerEvent(w, r, func(runner *pipeline.Runner) { runner.ApproveSpec() })
}

func (h *handlers) reanalyze(w http.ResponseWriter, r *http.Request) {
	h.dispatchRunnerEvent(w, r, func(runner *pipeline.Runner) { runner.ReAnalyze() })
}

func (h *handlers) retry(w http.ResponseWriter, r *http.Request) {
	h.dispatchRunnerEvent(w, r, func(runner *pipeline.Runner) { runner.Retry() })
}

func (h *handlers) dispatchRunnerEvent(w http.ResponseWriter, r *http.Request, send func(*pipeline.Runner)) {
	id := mux.Vars(r)["id"]
	runner, ok := h.deps.Pipelines.Lookup(id)
	if !ok {
		writeErr(w, errors.New(errors.CodeNotFound, "hostapi", "no active runner for run "+id, nil))
		return
	}
	send(runner)
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) getLogs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	logs, err := h.deps.Monitors.GetLogs(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.dispatchMonitorOp(w, r, h.deps.Monitors.Stop)
}

func (h *handlers) restart(w http.ResponseWriter, r *http.Request) {
	h.dispatchMonitorOp(w, r, h.deps.Monitors.Restart)
}

func (h *handlers) destroy(w http.ResponseWriter, r *http.Request) {
	h.dispatchMonitorOp(w, r, h.deps.Monitors.Destroy)
}

func (h *handlers) dispatchMonitorOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string) error) {
	id := mux.Vars(r)["id"]
	if err := op(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if code, ok := errors.CodeOf(err); ok {
		switch code {
		case errors.CodeNotFound:
			status = http.StatusNotFound
		case errors.CodeEmptyContent, errors.CodeInvalidFrontmatter, errors.CodeAlreadyExists:
			status = http.StatusBadRequest
		}
	}
	writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
}
