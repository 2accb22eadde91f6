package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/geocomp/internal/adapters/geotiff"
	"github.com/okian/geocomp/internal/domain/export"
	"github.com/okian/geocomp/internal/domain/indices"
	"github.com/okian/geocomp/internal/domain/raster"
	"github.com/okian/geocomp/internal/domain/visualization"
	"github.com/okian/geocomp/pkg/logger"
)

const outputDirPermission = 0o755

type changeFlags struct {
	year1     string
	year2     string
	index     string
	threshold float64
	out       string
}

func newChangeCmd(_ *cli) *cobra.Command {
	f := &changeFlags{}
	cmd := &cobra.Command{
		Use:   "change",
		Short: "Compare a spectral index between two years of band files",
		Long: `Read the B<n> GeoTIFFs of two local folders, compute a spectral index for
each year and write the difference (year1 - year2) with its change mask
(difference above the threshold) as a GeoTIFF, plus a two-colour PNG.

Indices: ndvi, ndwi, ndbi, savi.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd)
		},
	}
	cmd.Flags().StringVar(&f.year1, "year1", "", "folder with the first year's band files")
	cmd.Flags().StringVar(&f.year2, "year2", "", "folder with the second year's band files")
	cmd.Flags().StringVar(&f.index, "index", string(indices.NDVI), "spectral index")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "difference above which a pixel counts as changed")
	cmd.Flags().StringVar(&f.out, "out", "change", "output folder")
	_ = cmd.MarkFlagRequired("year1")
	_ = cmd.MarkFlagRequired("year2")
	return cmd
}

func (f *changeFlags) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	geotiff.Register()

	idx, err := indices.Parse(f.index)
	if err != nil {
		return err
	}
	y1, err := indexOf(idx, f.year1)
	if err != nil {
		return err
	}
	y2, err := indexOf(idx, f.year2)
	if err != nil {
		return err
	}
	ch, err := indices.Detect(y1.band, y2.band, f.threshold)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.out, outputDirPermission); err != nil {
		return fmt.Errorf("create %s: %w", f.out, err)
	}
	img, err := raster.NewImage(string(idx)+"_change", time.Time{}, y1.grid, ch.Diff, ch.Mask)
	if err != nil {
		return err
	}
	tif := filepath.Join(f.out, string(idx)+"_change.tif")
	if err := geotiff.NewCodec(export.NoData).Write(tif, img); err != nil {
		return err
	}

	png := filepath.Join(f.out, string(idx)+"_change.png")
	file, err := os.Create(png)
	if err != nil {
		return fmt.Errorf("create %s: %w", png, err)
	}
	pic := visualization.Mask(ch.Mask, y1.grid, indices.ChangeColor, indices.NoChangeColor)
	if err := visualization.WritePNG(file, pic); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", png, err)
	}

	changed := 0
	for i, v := range ch.Mask.Data {
		if ch.Mask.Valid[i] && v != 0 {
			changed++
		}
	}
	logger.Get().Info(ctx, "change written",
		logger.String("index", string(idx)),
		logger.String("geotiff", tif),
		logger.String("png", png),
		logger.Int("changed", changed),
		logger.Int("compared", ch.Mask.ValidCount()),
	)
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"index":    idx,
		"geotiff":  tif,
		"png":      png,
		"changed":  changed,
		"compared": ch.Mask.ValidCount(),
	})
}

type yearIndex struct {
	band *raster.Band
	grid raster.Grid
}

func indexOf(idx indices.Index, dir string) (yearIndex, error) {
	img, err := geotiff.ReadBandDir(dir)
	if err != nil {
		return yearIndex{}, fmt.Errorf("%s: %w", dir, err)
	}
	b, err := indices.Compute(idx, img)
	if err != nil {
		return yearIndex{}, fmt.Errorf("%s: %w", dir, err)
	}
	return yearIndex{band: b, grid: img.Grid}, nil
}
