package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/types"
	"github.com/okian/geocomp/pkg/logger"
)

const submitTimeout = 30 * time.Second

type exportFlags struct {
	composite   compositeFlags
	description string
	folder      string
	bands       []string
	scale       float64
	maxPixels   float64
	crs         string
	local       bool
}

func newExportCmd(c *cli) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Submit a composite export job",
		Long: `Submit one export of a cloud-masked mean composite.

By default the job is posted to the running service (server_url) and the
command returns as soon as it is queued. With --local the service runs in
process and the command waits until the job has finished.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			if f.local {
				return c.exportLocal(cmd.Context(), cmd.OutOrStdout(), req)
			}
			return c.exportRemote(cmd.Context(), cmd.OutOrStdout(), req)
		},
	}
	f.composite.bind(cmd)
	cmd.Flags().StringVar(&f.description, "description", "L8_B1_2022", "task description, also the output file name")
	cmd.Flags().StringVar(&f.folder, "folder", "Mns", "destination folder inside the export bucket")
	cmd.Flags().StringSliceVar(&f.bands, "bands", []string{"B1"}, "bands to export")
	cmd.Flags().Float64Var(&f.scale, "scale", defaultScale, "pixel size in CRS units")
	cmd.Flags().Float64Var(&f.maxPixels, "max-pixels", 1e13, "pixel ceiling; the job is refused above it")
	cmd.Flags().StringVar(&f.crs, "crs", "", "output CRS (default: the archive CRS)")
	cmd.Flags().BoolVar(&f.local, "local", false, "run the export in process and wait for it")
	return cmd
}

func (f *exportFlags) request() (types.ExportRequest, error) {
	comp, err := f.composite.request()
	if err != nil {
		return types.ExportRequest{}, err
	}
	return types.ExportRequest{
		Composite:   comp,
		Description: f.description,
		Folder:      f.folder,
		Bands:       f.bands,
		Scale:       f.scale,
		MaxPixels:   int64(f.maxPixels),
		CRS:         f.crs,
	}, nil
}

// submission is the POST /v1/exports body.
type submission struct {
	Archive     string   `json:"archive"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Region      string   `json:"region"`
	Description string   `json:"description"`
	Folder      string   `json:"folder"`
	Bands       []string `json:"bands"`
	Scale       float64  `json:"scale"`
	MaxPixels   int64    `json:"max_pixels"`
	CRS         string   `json:"crs,omitempty"`
}

// exportRemote posts the job and prints the handle. It never polls.
func (c *cli) exportRemote(ctx context.Context, out io.Writer, req types.ExportRequest) error {
	body, err := json.Marshal(submission{
		Archive:     req.Composite.Archive,
		Start:       req.Composite.Start.Format(time.DateOnly),
		End:         req.Composite.End.Format(time.DateOnly),
		Region:      req.Composite.Region,
		Description: req.Description,
		Folder:      req.Folder,
		Bands:       req.Bands,
		Scale:       req.Scale,
		MaxPixels:   req.MaxPixels,
		CRS:         req.CRS,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	url := strings.TrimRight(c.cfg.ServerURL, "/") + "/v1/exports"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("submit export: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("submit export: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var h export.JobHandle
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	logger.Get().Info(ctx, "export submitted", logger.String("job_id", h.ID), logger.String("location", h.Location))
	return writeJSON(out, h)
}

// exportLocal runs the export in process and prints the finished job.
func (c *cli) exportLocal(ctx context.Context, out io.Writer, req types.ExportRequest) error {
	comps, err := buildComponents(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	svc, err := newService(ctx, comps)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	h, err := svc.Export(ctx, req)
	if err != nil {
		return err
	}
	if err := svc.Drain(ctx); err != nil {
		return err
	}
	job, err := svc.Job(ctx, h.ID)
	if err != nil {
		return err
	}
	if err := writeJSON(out, job); err != nil {
		return err
	}
	if job.Status != "completed" {
		return fmt.Errorf("export %s %s: %s", job.ID, job.Status, job.Error)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
