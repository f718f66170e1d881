package census

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/shooting-data-etl/internal/domain"
)

// Key addresses one population table entry.
type Key struct {
	Year    int
	Borough domain.Borough
}

// Table is the union of per-borough series: exactly one population per
// (year, borough) pair, no gaps inside the covered range. It is built once
// per pipeline run and read-only afterward.
type Table struct {
	entries   map[Key]float64
	boroughs  []domain.Borough
	firstYear int
	lastYear  int
}

// BuildTable expands every borough's anchors to maxYear and unions the
// results. Any borough's anchor validation failure aborts the whole build.
func BuildTable(snapshots map[domain.Borough][]Anchor, maxYear int) (*Table, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("%w: no boroughs configured", ErrInvalidAnchors)
	}

	boroughs := make([]domain.Borough, 0, len(snapshots))
	for b := range snapshots {
		boroughs = append(boroughs, b)
	}
	sort.Slice(boroughs, func(i, j int) bool { return boroughs[i] < boroughs[j] })

	t := &Table{
		entries:   make(map[Key]float64),
		boroughs:  boroughs,
		firstYear: maxYear,
		lastYear:  maxYear,
	}
	for _, b := range boroughs {
		series, err := BuildSeries(snapshots[b], maxYear)
		if err != nil {
			return nil, fmt.Errorf("borough %s: %w", b, err)
		}
		for year, pop := range series {
			t.entries[Key{Year: year, Borough: b}] = pop
			if year < t.firstYear {
				t.firstYear = year
			}
		}
	}
	return t, nil
}

// Population returns the population for (year, borough) and whether that pair
// is covered by the table.
func (t *Table) Population(year int, borough domain.Borough) (float64, bool) {
	pop, ok := t.entries[Key{Year: year, Borough: borough}]
	return pop, ok
}

// Series reconstructs one borough's year-to-population series from the
// table. Filtering by a borough that was built in reproduces its BuildSeries
// output exactly.
func (t *Table) Series(borough domain.Borough) Series {
	s := make(Series)
	for key, pop := range t.entries {
		if key.Borough == borough {
			s[key.Year] = pop
		}
	}
	return s
}

// Boroughs returns the boroughs covered by the table in sorted order.
func (t *Table) Boroughs() []domain.Borough {
	return append([]domain.Borough(nil), t.boroughs...)
}

// Years returns the first and last year covered by the table.
func (t *Table) Years() (first, last int) {
	return t.firstYear, t.lastYear
}

// Len returns the number of (year, borough) entries.
func (t *Table) Len() int {
	return len(t.entries)
}
