package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/geocomp/internal/domain/composite"
)

// Defaults reproduce the muns_city export of 2022.
const (
	defaultArchive = "LANDSAT/LC08/C01/T1_SR"
	defaultStart   = "2022-01-01"
	defaultEnd     = "2023-01-01"
	defaultRegion  = "muns_city"
	defaultScale   = 30.0
)

// compositeFlags select the composite a command works on.
type compositeFlags struct {
	archive string
	start   string
	end     string
	region  string
}

func (f *compositeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.archive, "archive", defaultArchive, "archive identifier")
	cmd.Flags().StringVar(&f.start, "start", defaultStart, "first acquisition date (inclusive, YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", defaultEnd, "last acquisition date (exclusive, YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.region, "region", defaultRegion, "region asset identifier")
}

func (f *compositeFlags) request() (composite.Request, error) {
	start, err := time.Parse(time.DateOnly, f.start)
	if err != nil {
		return composite.Request{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, f.end)
	if err != nil {
		return composite.Request{}, fmt.Errorf("invalid --end: %w", err)
	}
	return composite.Request{Archive: f.archive, Start: start, End: end, Region: f.region}, nil
}
