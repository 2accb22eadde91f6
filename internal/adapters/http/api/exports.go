package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/types"
)

// exportRequest is the body of POST /v1/exports. Dates are either
// YYYY-MM-DD or RFC3339.
type exportRequest struct {
	Archive     string   `json:"archive"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Region      string   `json:"region"`
	Description string   `json:"description"`
	Folder      string   `json:"folder"`
	Bands       []string `json:"bands"`
	Scale       float64  `json:"scale"`
	MaxPixels   int64    `json:"max_pixels"`
	CRS         string   `json:"crs"`
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing %s", field)
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; must be YYYY-MM-DD or RFC3339", field)
	}
	return t, nil
}

func (e exportRequest) toDomain() (types.ExportRequest, error) {
	start, err := parseDate("start", e.Start)
	if err != nil {
		return types.ExportRequest{}, err
	}
	end, err := parseDate("end", e.End)
	if err != nil {
		return types.ExportRequest{}, err
	}
	return types.ExportRequest{
		Composite: composite.Request{
			Archive: e.Archive,
			Start:   start,
			End:     end,
			Region:  e.Region,
		},
		Description: e.Description,
		Folder:      e.Folder,
		Bands:       e.Bands,
		Scale:       e.Scale,
		MaxPixels:   e.MaxPixels,
		CRS:         e.CRS,
	}, nil
}

// ExportsHandler handles export submissions.
type ExportsHandler struct {
	deps ExportDependencies
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(deps ExportDependencies) *ExportsHandler {
	return &ExportsHandler{deps: deps}
}

// HandlePostExport handles POST /v1/exports requests. It answers 202 as
// soon as the job is queued.
func (h *ExportsHandler) HandlePostExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_export"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body exportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeErr(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	handle, err := h.deps.Export(r.Context(), req)
	if err != nil {
		writeErr(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}
