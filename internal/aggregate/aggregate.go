// Package aggregate groups enriched incidents and derives counts and
// per-capita rates.
package aggregate

import (
	"cmp"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/domain"
)

// Bucket is one group's share of the incident count under some key.
type Bucket[K cmp.Ordered] struct {
	Key   K
	Count int
}

// Key functions for the standard groupings.

func ByYear(i domain.EnrichedIncident) int               { return i.Year }
func ByHour(i domain.EnrichedIncident) int               { return i.Hour }
func ByWeekday(i domain.EnrichedIncident) time.Weekday   { return i.Weekday }
func ByMonth(i domain.EnrichedIncident) time.Month       { return i.Month }
func ByPrecinct(i domain.EnrichedIncident) int           { return i.Precinct }
func ByBorough(i domain.EnrichedIncident) domain.Borough { return i.Borough }

// CountBy groups incidents by the key function and counts each group.
// Buckets come back sorted by key; the result depends only on the set of
// incidents, never on their order.
func CountBy[K cmp.Ordered](incidents []domain.EnrichedIncident, key func(domain.EnrichedIncident) K) []Bucket[K] {
	counts := make(map[K]int)
	for _, inc := range incidents {
		counts[key(inc)]++
	}

	buckets := make([]Bucket[K], 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, Bucket[K]{Key: k, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	return buckets
}

// TopN returns the n highest-count buckets in descending count order.
// Ties break on ascending key so rankings reproduce run to run.
func TopN[K cmp.Ordered](buckets []Bucket[K], n int) []Bucket[K] {
	ranked := append([]Bucket[K](nil), buckets...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	return clampN(ranked, n)
}

// BottomN returns the n lowest-count buckets in ascending count order, with
// the same ascending-key tie break as TopN.
func BottomN[K cmp.Ordered](buckets []Bucket[K], n int) []Bucket[K] {
	ranked := append([]Bucket[K](nil), buckets...)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count < ranked[j].Count
		}
		return ranked[i].Key < ranked[j].Key
	})
	return clampN(ranked, n)
}

func clampN[K cmp.Ordered](ranked []Bucket[K], n int) []Bucket[K] {
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// RateBucket is an aggregate over one (year, borough) group: the incident
// count, the group's population, and incidents per million residents.
type RateBucket struct {
	Year           int
	Borough        domain.Borough
	Count          int
	Population     float64
	RatePerMillion float64
}

// InconsistencyError reports two records in the same (year, borough) group
// carrying different populations. Enrichment attaches one table value per
// key, so a divergence means an upstream bug; it is surfaced, never averaged
// away or resolved by picking a side.
type InconsistencyError struct {
	Year        int
	Borough     domain.Borough
	Population  float64
	Conflicting float64
}

func (e InconsistencyError) Error() string {
	return fmt.Sprintf("population mismatch in group (%d, %s): %v vs %v",
		e.Year, e.Borough, e.Population, e.Conflicting)
}

// RatesByYearBorough computes incidents per million residents for each
// (year, borough) group, sorted by year then borough. Rates only carry
// per-capita meaning for this grouping; hour, weekday, month, and precinct
// buckets are plain counts.
func RatesByYearBorough(incidents []domain.EnrichedIncident) ([]RateBucket, error) {
	type key struct {
		year    int
		borough domain.Borough
	}
	type group struct {
		count      int
		population float64
	}

	groups := make(map[key]*group)
	for _, inc := range incidents {
		k := key{year: inc.Year, borough: inc.Borough}
		g, ok := groups[k]
		if !ok {
			groups[k] = &group{count: 1, population: inc.Population}
			continue
		}
		if g.population != inc.Population {
			return nil, InconsistencyError{
				Year:        k.year,
				Borough:     k.borough,
				Population:  g.population,
				Conflicting: inc.Population,
			}
		}
		g.count++
	}

	buckets := make([]RateBucket, 0, len(groups))
	for k, g := range groups {
		buckets = append(buckets, RateBucket{
			Year:           k.year,
			Borough:        k.borough,
			Count:          g.count,
			Population:     g.population,
			RatePerMillion: float64(g.count) * 1_000_000 / g.population,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Year != buckets[j].Year {
			return buckets[i].Year < buckets[j].Year
		}
		return buckets[i].Borough < buckets[j].Borough
	})
	return buckets, nil
}
