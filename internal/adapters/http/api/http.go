// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ExportDependencies
	JobDependencies
}

// ExportDependencies submit exports.
type ExportDependencies interface {
	// Export builds the composite and queues the job. It never waits for the job to run.
	Export(ctx context.Context, req types.ExportRequest) (export.JobHandle, error)
}

// JobDependencies expose job state.
type JobDependencies interface {
	Job(ctx context.Context, id string) (types.Job, error)
	Jobs(ctx context.Context, status string, limit int) ([]types.Job, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	exportsHandler *ExportsHandler
	jobsHandler    *JobsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		exportsHandler: NewExportsHandler(deps),
		jobsHandler:    NewJobsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/exports", MetricsMiddleware(s.exportsHandler.HandlePostExport, "exports"))
	mux.HandleFunc("/v1/jobs", MetricsMiddleware(s.jobsHandler.HandleListJobs, "jobs"))
	mux.HandleFunc("/v1/jobs/", MetricsMiddleware(s.jobsHandler.HandleGetJob, "job"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr picks the status from the error chain.
func writeErr(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
