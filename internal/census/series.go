// Package census expands sparse decennial census anchors into dense per-year
// borough population series and a (year, borough) lookup table.
//
// Between consecutive anchors a year's population falls on the straight line
// joining them. Beyond the last anchor the final segment's slope continues as
// one extended line, so the year-over-year delta of extrapolated values stays
// constant. Nothing more rigorous than that is claimed: extrapolated values
// may drift outside plausible bounds, which is a documented limitation.
package census

import (
	"errors"
	"fmt"
)

// ErrInvalidAnchors marks a malformed anchor configuration. Anchor mistakes
// are fatal: the pipeline must not start with a half-built population table.
var ErrInvalidAnchors = errors.New("invalid census anchors")

// Anchor is one census figure for a borough: a year for which an actual
// counted population exists.
type Anchor struct {
	Year       int
	Population int64
}

// Series maps year to population for one borough. Values between anchors are
// interpolated and may be fractional; values past the last anchor are
// extrapolated.
type Series map[int]float64

// BuildSeries expands anchors into a Series covering every year from the
// first anchor through maxYear inclusive. Anchors must be strictly increasing
// in year with non-negative populations, and maxYear must not precede the
// first anchor; violations return ErrInvalidAnchors before any year is built.
func BuildSeries(anchors []Anchor, maxYear int) (Series, error) {
	if err := validateAnchors(anchors, maxYear); err != nil {
		return nil, err
	}

	series := make(Series, maxYear-anchors[0].Year+1)
	for year := anchors[0].Year; year <= maxYear; year++ {
		series[year] = valueAt(anchors, year)
	}
	return series, nil
}

// valueAt computes the population for one year from the segment between the
// two anchors bounding it. Years past the last anchor reuse the final
// segment: frac exceeds 1 there and extends the same line, rather than
// recomputing each year from a drifting base.
func valueAt(anchors []Anchor, year int) float64 {
	lo, hi := anchors[len(anchors)-2], anchors[len(anchors)-1]
	for i := 0; i+1 < len(anchors); i++ {
		if year <= anchors[i+1].Year {
			lo, hi = anchors[i], anchors[i+1]
			break
		}
	}

	frac := float64(year-lo.Year) / float64(hi.Year-lo.Year)
	return float64(lo.Population)*(1-frac) + float64(hi.Population)*frac
}

func validateAnchors(anchors []Anchor, maxYear int) error {
	if len(anchors) < 2 {
		return fmt.Errorf("%w: need at least two anchors, got %d", ErrInvalidAnchors, len(anchors))
	}
	for i := 0; i+1 < len(anchors); i++ {
		if anchors[i+1].Year <= anchors[i].Year {
			return fmt.Errorf("%w: anchor years must be strictly increasing (%d then %d)",
				ErrInvalidAnchors, anchors[i].Year, anchors[i+1].Year)
		}
	}
	for _, a := range anchors {
		if a.Population < 0 {
			return fmt.Errorf("%w: negative population %d for year %d",
				ErrInvalidAnchors, a.Population, a.Year)
		}
	}
	if maxYear < anchors[0].Year {
		return fmt.Errorf("%w: max year %d precedes first anchor year %d",
			ErrInvalidAnchors, maxYear, anchors[0].Year)
	}
	return nil
}
