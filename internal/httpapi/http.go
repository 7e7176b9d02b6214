package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"excess_mortality/internal/store"
	"excess_mortality/metrics"
	"excess_mortality/mortality"
)

// Rerunner executes one pipeline run.
type Rerunner interface {
	RunOnce(ctx context.Context) (*mortality.Result, error)
}

// Router serves the stored pipeline output to the rendering layer under /api
// and operational endpoints under /ops.
type Router struct {
	store   *store.Store
	metrics *metrics.Metrics
	runner  Rerunner
}

func NewRouter(st *store.Store, m *metrics.Metrics, runner Rerunner) *Router {
	return &Router{store: st, metrics: m, runner: runner}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/summaries", r.summaries)
	mux.HandleFunc("/api/summaries/", r.summaryDetail)
	mux.HandleFunc("/api/wide", r.wide)
	mux.HandleFunc("/ops/runs", r.runs)
	mux.HandleFunc("/ops/metrics", r.metricsSnapshot)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/rerun", r.rerun)
}

// latestReport loads the report of the most recent successful run.
func (r *Router) latestReport(w http.ResponseWriter, req *http.Request) (*store.Run, *mortality.Report, bool) {
	run, err := r.store.LatestRun(req.Context())
	if errors.Is(err, store.ErrNoRun) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil, nil, false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}
	report, err := r.store.Summaries(req.Context(), run.RunID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, nil, false
	}
	return run, report, true
}

func (r *Router) summaries(w http.ResponseWriter, req *http.Request) {
	run, report, ok := r.latestReport(w, req)
	if !ok {
		return
	}
	respondJSON(w, map[string]any{"run_id": run.RunID, "summaries": report.Summaries})
}

// summaryDetail serves /api/summaries/{code} and /api/summaries/{code}/labels.
// Codes are matched exactly as they appear in the input.
func (r *Router) summaryDetail(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/api/summaries/"), "/")
	code, suffix, _ := strings.Cut(rest, "/")
	_, report, ok := r.latestReport(w, req)
	if !ok {
		return
	}
	summary, found := report.Summary(code)
	if !found {
		http.NotFound(w, req)
		return
	}
	switch suffix {
	case "":
		respondJSON(w, summary)
	case "labels":
		respondJSON(w, map[string]any{"label": summary.Label, "categories": summary.CategoryLabels})
	default:
		http.NotFound(w, req)
	}
}

func (r *Router) wide(w http.ResponseWriter, req *http.Request) {
	run, err := r.store.LatestRun(req.Context())
	if errors.Is(err, store.ErrNoRun) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	code := strings.TrimSpace(req.URL.Query().Get("geo"))
	rows, err := r.store.WideRows(req.Context(), run.RunID, code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []mortality.WideRow{}
	}
	respondJSON(w, rows)
}

func (r *Router) runs(w http.ResponseWriter, req *http.Request) {
	list, err := r.store.ListRuns(req.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, list)
}

func (r *Router) metricsSnapshot(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, r.metrics.Snapshot())
}

func (r *Router) rerun(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := r.runner.RunOnce(req.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	respondJSON(w, map[string]any{"status": "ok", "geographies": res.Geographies(), "wide_rows": len(res.Wide)})
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
