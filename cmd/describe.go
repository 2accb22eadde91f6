package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/geocomp/internal/domain/composite"
	"github.com/okian/geocomp/internal/domain/raster"
)

// description is the printed summary of a rendered composite.
type description struct {
	Archive string               `json:"archive"`
	Region  string               `json:"region"`
	Start   string               `json:"start"`
	End     string               `json:"end"`
	Scenes  int                  `json:"scenes"`
	Grid    raster.Grid          `json:"grid"`
	Bands   []raster.BandSummary `json:"bands"`
}

func newDescribeCmd(c *cli) *cobra.Command {
	var (
		f      compositeFlags
		scale  float64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Render a composite and print per-band statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			d, err := c.describe(cmd.Context(), req, scale)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), d)
			}
			return writeDescription(cmd.OutOrStdout(), d)
		},
	}
	f.bind(cmd)
	cmd.Flags().Float64Var(&scale, "scale", defaultScale, "pixel size in CRS units")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

// render builds and evaluates a composite at scale.
func (c *cli) render(ctx context.Context, req composite.Request, scale float64) (*composite.Composite, *raster.Image, error) {
	comps, err := buildComponents(ctx, c.cfg)
	if err != nil {
		return nil, nil, err
	}
	defer comps.Close()

	comp, err := comps.pipeline.Build(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	grid, err := comp.Grid(scale)
	if err != nil {
		return nil, nil, err
	}
	img, err := comp.Render(ctx, grid)
	if err != nil {
		return nil, nil, err
	}
	return comp, img, nil
}

func (c *cli) describe(ctx context.Context, req composite.Request, scale float64) (*description, error) {
	comp, img, err := c.render(ctx, req, scale)
	if err != nil {
		return nil, err
	}
	return &description{
		Archive: req.Archive,
		Region:  comp.Region.ID(),
		Start:   req.Start.Format(time.DateOnly),
		End:     req.End.Format(time.DateOnly),
		Scenes:  comp.Collection.Len(),
		Grid:    img.Grid,
		Bands:   raster.Describe(img),
	}, nil
}

func writeDescription(w io.Writer, d *description) error {
	fmt.Fprintf(w, "%s mean [%s, %s) clipped to %s\n", d.Archive, d.Start, d.End, d.Region)
	fmt.Fprintf(w, "scenes: %d  grid: %dx%d at %g %s\n\n", d.Scenes, d.Grid.Width, d.Grid.Height, d.Grid.PixelWidth, d.Grid.CRS)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, strings.Join([]string{"band", "valid", "min", "max", "mean", "stddev", "median", ""}, "\t"))
	for _, b := range d.Bands {
		fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%s\t%s\t%s\t\n",
			b.Band, b.Count, b.Total, num(b.Min), num(b.Max), num(b.Mean), num(b.StdDev), num(b.Median))
	}
	return tw.Flush()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}
