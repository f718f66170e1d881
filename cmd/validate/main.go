// Command validate cross-checks the mock data fixtures generated by genmock:
// the raw CSV against the dataset adapter, the enriched JSON against a fresh
// parse-and-enrich of the CSV rows, and the aggregate identities that must
// hold over any enriched set.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/shooting_incidents.csv \
//	  -json data/mock/shooting_incidents_enriched.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/adapter/dataset"
	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
	"github.com/couchcryptid/shooting-data-etl/internal/census"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/couchcryptid/shooting-data-etl/internal/enrich"
	"github.com/jonboulle/clockwork"
)

// censusMaxYear must cover every OCCUR_DATE year genmock produces.
const censusMaxYear = 2023

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the raw CSV fixture")
	jsonPath := flag.String("json", "", "path to the enriched JSON fixture")
	flag.Parse()

	if *csvPath == "" || *jsonPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *jsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, jsonPath string) int {
	// Set a fixed clock matching genmock so ProcessedAt reproduces exactly.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	// ── Load both fixtures ──
	fmt.Println("=== Shooting Incident Fixture Validation ===")
	fmt.Println()

	records, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV fixture: %v\n", err)
		return 1
	}

	enriched, err := loadJSON[domain.EnrichedIncident](jsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load enriched JSON fixture: %v\n", err)
		return 1
	}

	table, err := census.BuildTable(census.DefaultSnapshots(), censusMaxYear)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: build census table: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateCSVShape(records),
		validateEnrichmentParity(records, enriched, table),
		validateAggregateIdentities(enriched),
		validateFieldConstraints(enriched),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-46s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d CSV rows, %d enriched JSON incidents\n", len(records), len(enriched))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadCSV(path string) ([]domain.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.ParseCSV(f)
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: CSV Shape ──
// Validates that the raw rows carry the columns the parser depends on.

func validateCSVShape(records []domain.RawRecord) *phase {
	p := &phase{name: "Phase 1: CSV Shape (dataset adapter)"}

	if len(records) == 0 {
		p.errorf("CSV fixture has no data rows")
		return p
	}

	for i, rec := range records {
		line := i + 2 // header is line 1
		if rec.IncidentKey == "" {
			p.errorf("line %d: INCIDENT_KEY is empty", line)
		}
		if rec.OccurDate == "" {
			p.errorf("line %d: OCCUR_DATE is empty", line)
		}
		if rec.OccurTime == "" {
			p.errorf("line %d: OCCUR_TIME is empty", line)
		}
		if rec.Borough == "" {
			p.errorf("line %d: BORO is empty", line)
		}
		if rec.Precinct == "" {
			p.errorf("line %d: PRECINCT is empty", line)
		}
	}
	return p
}

// ── Phase 2: Enrichment Parity ──
// Re-runs parse and enrichment over the CSV rows and compares the result
// against the enriched JSON fixture, record by record.

func validateEnrichmentParity(records []domain.RawRecord, fixture []domain.EnrichedIncident, table *census.Table) *phase {
	p := &phase{name: "Phase 2: Enrichment Parity (JSON vs CSV)"}

	byID := map[string]*domain.EnrichedIncident{}
	for i := range fixture {
		if fixture[i].ID == "" {
			p.errorf("JSON record %d: missing ID", i)
			continue
		}
		if _, exists := byID[fixture[i].ID]; exists {
			p.errorf("JSON record %d: duplicate ID %s", i, fixture[i].ID)
			continue
		}
		byID[fixture[i].ID] = &fixture[i]
	}

	incidents := make([]domain.Incident, 0, len(records))
	var parseFailures int
	for _, rec := range records {
		incident, err := domain.ParseIncident(rec)
		if err != nil {
			parseFailures++
			continue
		}
		incidents = append(incidents, incident)
	}
	if parseFailures > 0 {
		fmt.Printf("  Note: %d CSV row(s) are unparseable (excluded from the fixture by design of genmock -bad-rows)\n", parseFailures)
	}

	result := enrich.Incidents(incidents, table)
	if len(result.Failures) > 0 {
		p.errorf("%d population lookups failed; genmock output must stay within the census table years", len(result.Failures))
	}

	if len(result.Incidents) != len(fixture) {
		p.errorf("count mismatch: re-enrichment yields %d incidents, JSON fixture has %d", len(result.Incidents), len(fixture))
	}

	for i := range result.Incidents {
		expected := &result.Incidents[i]
		actual, ok := byID[expected.ID]
		if !ok {
			p.errorf("incident %s (key %s): not found in JSON fixture", expected.ID, expected.IncidentKey)
			continue
		}
		compareIncidents(p, expected, actual)
	}
	return p
}

// compareIncidents checks that a JSON fixture incident matches the freshly
// enriched one.
func compareIncidents(p *phase, expected, actual *domain.EnrichedIncident) {
	id := expected.ID

	if actual.IncidentKey != expected.IncidentKey {
		p.errorf("ID %s: incident_key: expected %q, got %q", id, expected.IncidentKey, actual.IncidentKey)
	}
	if !actual.OccurredAt.Equal(expected.OccurredAt) {
		p.errorf("ID %s: occurred_at: expected %s, got %s",
			id, expected.OccurredAt.Format(time.RFC3339), actual.OccurredAt.Format(time.RFC3339))
	}
	if actual.Year != expected.Year {
		p.errorf("ID %s: year: expected %d, got %d", id, expected.Year, actual.Year)
	}
	if actual.Borough != expected.Borough {
		p.errorf("ID %s: borough: expected %q, got %q", id, expected.Borough, actual.Borough)
	}
	if actual.Precinct != expected.Precinct {
		p.errorf("ID %s: precinct: expected %d, got %d", id, expected.Precinct, actual.Precinct)
	}
	if actual.Murder != expected.Murder {
		p.errorf("ID %s: murder: expected %t, got %t", id, expected.Murder, actual.Murder)
	}
	if !floatEq(actual.Population, expected.Population) {
		p.errorf("ID %s: population: expected %g, got %g", id, expected.Population, actual.Population)
	}
	if !actual.ProcessedAt.Equal(expected.ProcessedAt) {
		p.errorf("ID %s: processed_at: expected %s, got %s",
			id, expected.ProcessedAt.Format(time.RFC3339), actual.ProcessedAt.Format(time.RFC3339))
	}
}

// ── Phase 3: Aggregate Identities ──
// Checks the identities that must hold when the aggregate package runs over
// the fixture: counts partition the total, rates match count and population,
// rankings stay ordered.

func validateAggregateIdentities(fixture []domain.EnrichedIncident) *phase {
	p := &phase{name: "Phase 3: Aggregate Identities"}

	if len(fixture) == 0 {
		p.errorf("no enriched incidents to aggregate")
		return p
	}

	byYear := aggregate.CountBy(fixture, aggregate.ByYear)
	if sum := sumCounts(byYear); sum != len(fixture) {
		p.errorf("year counts sum to %d, want %d", sum, len(fixture))
	}

	byBorough := aggregate.CountBy(fixture, aggregate.ByBorough)
	if sum := sumCountsBorough(byBorough); sum != len(fixture) {
		p.errorf("borough counts sum to %d, want %d", sum, len(fixture))
	}

	rates, err := aggregate.RatesByYearBorough(fixture)
	if err != nil {
		p.errorf("rates: %v", err)
	}
	for _, r := range rates {
		want := float64(r.Count) * 1_000_000 / r.Population
		if !floatEq(r.RatePerMillion, want) {
			p.errorf("rate %d/%s: %g per million, want %g", r.Year, r.Borough, r.RatePerMillion, want)
		}
	}

	byPrecinct := aggregate.CountBy(fixture, aggregate.ByPrecinct)
	precinctCounts := map[int]int{}
	for _, b := range byPrecinct {
		precinctCounts[b.Key] = b.Count
	}

	top := aggregate.TopN(byPrecinct, 5)
	for i, b := range top {
		if precinctCounts[b.Key] != b.Count {
			p.errorf("top precinct %d: count %d disagrees with full grouping %d", b.Key, b.Count, precinctCounts[b.Key])
		}
		if i > 0 && b.Count > top[i-1].Count {
			p.errorf("top precincts out of order at position %d", i+1)
		}
	}

	bottom := aggregate.BottomN(byPrecinct, 5)
	for i, b := range bottom {
		if precinctCounts[b.Key] != b.Count {
			p.errorf("bottom precinct %d: count %d disagrees with full grouping %d", b.Key, b.Count, precinctCounts[b.Key])
		}
		if i > 0 && b.Count < bottom[i-1].Count {
			p.errorf("bottom precincts out of order at position %d", i+1)
		}
	}

	return p
}

// ── Phase 4: Field Constraints ──
// Validates that every fixture incident satisfies the domain's invariants.

func validateFieldConstraints(fixture []domain.EnrichedIncident) *phase {
	p := &phase{name: "Phase 4: Field Constraints (domain)"}
	for i := range fixture {
		checkIncident(p, i, &fixture[i])
	}
	return p
}

func checkIncident(p *phase, i int, inc *domain.EnrichedIncident) {
	pf := func(format string, args ...any) {
		p.errorf("record %d (ID %s): "+format, append([]any{i, inc.ID}, args...)...)
	}

	if inc.ID == "" {
		pf("id is empty")
	} else if !strings.HasPrefix(inc.ID, "incident-") {
		pf("id %q doesn't start with incident-", inc.ID)
	}

	if !inc.Borough.Known() {
		pf("borough %q not in the borough enumeration", inc.Borough)
	}
	if inc.OccurredAt.IsZero() {
		pf("occurred_at is zero")
	}
	if inc.Year != inc.OccurredAt.Year() {
		pf("year %d disagrees with occurred_at %s", inc.Year, inc.OccurredAt.Format(time.RFC3339))
	}
	if inc.Hour != inc.OccurredAt.Hour() {
		pf("hour %d disagrees with occurred_at %s", inc.Hour, inc.OccurredAt.Format(time.RFC3339))
	}
	if inc.Weekday != inc.OccurredAt.Weekday() {
		pf("weekday %s disagrees with occurred_at %s", inc.Weekday, inc.OccurredAt.Format(time.RFC3339))
	}
	if inc.Month != inc.OccurredAt.Month() {
		pf("month %s disagrees with occurred_at %s", inc.Month, inc.OccurredAt.Format(time.RFC3339))
	}
	if inc.Precinct <= 0 {
		pf("precinct %d is not positive", inc.Precinct)
	}
	if inc.Population <= 0 {
		pf("population %g is not positive", inc.Population)
	}
	if inc.ProcessedAt.IsZero() {
		pf("processed_at is zero")
	}
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sumCounts(buckets []aggregate.Bucket[int]) int {
	n := 0
	for _, b := range buckets {
		n += b.Count
	}
	return n
}

func sumCountsBorough(buckets []aggregate.Bucket[domain.Borough]) int {
	n := 0
	for _, b := range buckets {
		n += b.Count
	}
	return n
}
