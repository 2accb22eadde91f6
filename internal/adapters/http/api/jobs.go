package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/geocomp/internal/domain/model"
)

const maxListLimit = 1000

// JobsHandler handles job reads.
type JobsHandler struct {
	deps JobDependencies
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(deps JobDependencies) *JobsHandler {
	return &JobsHandler{deps: deps}
}

// HandleListJobs handles GET /v1/jobs?status=&limit= requests.
func (h *JobsHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_jobs"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	status := q.Get("status")
	if status != "" && !knownStatus(status) {
		writeErr(w, WrapKind(op, ErrBadRequest, errUnknownStatus(status)))
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxListLimit {
			writeErr(w, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	jobs, err := h.deps.Jobs(r.Context(), status, limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// HandleGetJob handles GET /v1/jobs/{id} requests.
func (h *JobsHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		writeErr(w, NewKind(op, ErrBadRequest))
		return
	}
	job, err := h.deps.Job(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func knownStatus(s string) bool {
	for _, st := range model.Statuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

type errUnknownStatus string

func (e errUnknownStatus) Error() string { return "unknown status " + strconv.Quote(string(e)) }
