package raster

import (
	"math"

	"github.com/montanaflynn/stats"
)

// BandSummary holds descriptive statistics over the valid pixels of a band.
type BandSummary struct {
	Band   string  `json:"band"`
	Count  int     `json:"count"`
	Total  int     `json:"total"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
}

// Describe summarises every band of img. Bands without valid pixels report NaN statistics.
func Describe(img *Image) []BandSummary {
	out := make([]BandSummary, 0, len(img.bands))
	for _, b := range img.bands {
		values := stats.Float64Data(b.ValidValues())
		s := BandSummary{Band: b.Name, Count: len(values), Total: len(b.Data)}
		if len(values) == 0 {
			s.Min, s.Max, s.Mean, s.StdDev, s.Median = math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()
			out = append(out, s)
			continue
		}
		// Errors are only returned for empty input, excluded above.
		s.Min, _ = values.Min()
		s.Max, _ = values.Max()
		s.Mean, _ = values.Mean()
		s.StdDev, _ = values.StandardDeviation()
		s.Median, _ = values.Median()
		out = append(out, s)
	}
	return out
}
