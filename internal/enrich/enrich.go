// Package enrich joins the census population table onto parsed incidents by
// (year, borough).
package enrich

import (
	"fmt"

	"github.com/couchcryptid/shooting-data-etl/internal/census"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
)

// LookupError records one incident whose (year, borough) had no population
// table entry: the year falls outside the covered range or the borough is
// not in the enumeration. The incident is excluded from the enriched output;
// it is never emitted with a fabricated or zero population.
type LookupError struct {
	IncidentID  string
	IncidentKey string
	Year        int
	Borough     domain.Borough
}

func (e LookupError) Error() string {
	return fmt.Sprintf("no population for year %d borough %q (incident %s)",
		e.Year, e.Borough, e.IncidentID)
}

// Result pairs the enriched incidents with every lookup failure encountered.
// The caller decides whether partial output is acceptable; the enricher only
// guarantees that nothing is silently dropped.
type Result struct {
	Incidents []domain.EnrichedIncident
	Failures  []LookupError
}

// Incidents attaches the table population to each incident, preserving input
// order. A record whose (year, borough) misses the table produces one entry
// in Failures instead of an enriched record.
func Incidents(incidents []domain.Incident, table *census.Table) Result {
	res := Result{
		Incidents: make([]domain.EnrichedIncident, 0, len(incidents)),
	}
	for _, inc := range incidents {
		pop, ok := table.Population(inc.Year, inc.Borough)
		if !ok {
			res.Failures = append(res.Failures, LookupError{
				IncidentID:  inc.ID,
				IncidentKey: inc.IncidentKey,
				Year:        inc.Year,
				Borough:     inc.Borough,
			})
			continue
		}
		res.Incidents = append(res.Incidents, inc.WithPopulation(pop))
	}
	return res
}
