package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/geocomp/internal/domain/visualization"
	"github.com/okian/geocomp/pkg/logger"
)

func newPreviewCmd(c *cli) *cobra.Command {
	var (
		f     compositeFlags
		scale float64
		out   string
	)
	vis := visualization.Landsat8Preview()
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render a composite to a PNG quick-look",
		Long: `Render a composite to a PNG. Visualization parameters only affect the
picture; exported data is never stretched. One band renders grayscale, three
or more render the first three as RGB.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := vis.Validate(); err != nil {
				return err
			}
			req, err := f.request()
			if err != nil {
				return err
			}
			_, img, err := c.render(cmd.Context(), req, scale)
			if err != nil {
				return err
			}
			pic, err := visualization.Render(img, vis)
			if err != nil {
				return err
			}
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := visualization.WritePNG(file, pic); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			logger.Get().Info(cmd.Context(), "preview written",
				logger.String("path", out),
				logger.Int("width", img.Grid.Width),
				logger.Int("height", img.Grid.Height),
			)
			return nil
		},
	}
	f.bind(cmd)
	cmd.Flags().Float64Var(&scale, "scale", defaultScale, "pixel size in CRS units")
	cmd.Flags().StringVar(&out, "out", "preview.png", "output PNG path")
	cmd.Flags().StringSliceVar(&vis.Bands, "bands", vis.Bands, "bands to draw")
	cmd.Flags().Float64Var(&vis.Min, "min", vis.Min, "value drawn black")
	cmd.Flags().Float64Var(&vis.Max, "max", vis.Max, "value drawn white")
	cmd.Flags().Float64Var(&vis.Gamma, "gamma", vis.Gamma, "gamma correction")
	return cmd
}
