// Package trend fits least-squares linear models to annual incident counts.
package trend

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
)

// Model is a least-squares line fitted to one labeled series of annual
// counts: predicted count = Intercept + Slope*year.
type Model struct {
	Series    string  `json:"series"`
	FirstYear int     `json:"first_year"`
	LastYear  int     `json:"last_year"`
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	N         int     `json:"n"`
}

// Fit regresses incident count on year for one labeled series. At least two
// distinct years are required; with fewer there is no line to fit.
func Fit(series string, byYear []aggregate.Bucket[int]) (Model, error) {
	if len(byYear) < 2 {
		return Model{}, fmt.Errorf("series %q: need at least two years to fit a trend, got %d",
			series, len(byYear))
	}

	xs := make([]float64, len(byYear))
	ys := make([]float64, len(byYear))
	first, last := byYear[0].Key, byYear[0].Key
	for i, b := range byYear {
		xs[i] = float64(b.Key)
		ys[i] = float64(b.Count)
		if b.Key < first {
			first = b.Key
		}
		if b.Key > last {
			last = b.Key
		}
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, intercept, slope)

	return Model{
		Series:    series,
		FirstYear: first,
		LastYear:  last,
		Slope:     slope,
		Intercept: intercept,
		R2:        r2,
		N:         len(byYear),
	}, nil
}

// Predict returns the fitted count for a year, including years beyond the
// observed range.
func (m Model) Predict(year int) float64 {
	return m.Intercept + m.Slope*float64(year)
}
