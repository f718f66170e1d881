// Command genmock generates a deterministic mock shooting-incident CSV and a
// matching enriched JSON fixture. It uses the actual domain, census, and
// aggregate packages so the fixtures match real pipeline behavior, and prints
// the aggregate numbers the test suites assert against.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -count 500 \
//	  -csv-out data/mock/shooting_incidents.csv \
//	  -json-out data/mock/shooting_incidents_enriched.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
	"github.com/couchcryptid/shooting-data-etl/internal/census"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/couchcryptid/shooting-data-etl/internal/enrich"
	"github.com/jonboulle/clockwork"
)

// Years covered by the generated data. The census table interpolates through
// 2020 and extrapolates beyond it, so the fixture exercises both regimes.
const (
	firstYear = 2006
	lastYear  = 2023
)

// csvHeader lists the columns the dataset adapter consumes, in the order the
// NYC Open Data export ships them.
var csvHeader = []string{
	"INCIDENT_KEY", "OCCUR_DATE", "OCCUR_TIME", "BORO", "PRECINCT",
	"STATISTICAL_MURDER_FLAG", "PERP_AGE_GROUP", "PERP_SEX", "PERP_RACE",
	"VIC_AGE_GROUP", "VIC_SEX", "VIC_RACE", "Latitude", "Longitude",
}

// boroughPrecincts maps each borough to its real NYPD precinct numbers so the
// precinct rankings in the fixture look like the live dataset's.
var boroughPrecincts = map[domain.Borough][]int{
	domain.Bronx:        {40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 52},
	domain.Brooklyn:     {60, 61, 62, 63, 66, 67, 68, 69, 70, 71, 72, 73, 75, 76, 77, 78, 79, 81, 83, 84, 88, 90, 94},
	domain.Manhattan:    {1, 5, 6, 7, 9, 10, 13, 14, 17, 18, 19, 20, 23, 24, 25, 26, 28, 30, 32, 33, 34},
	domain.Queens:       {100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114, 115},
	domain.StatenIsland: {120, 121, 122, 123},
}

// Sampling weights roughly matching the live dataset: Brooklyn and the Bronx
// carry most incidents, nights and summers dominate.
var (
	boroughChoices = []domain.Borough{domain.Brooklyn, domain.Bronx, domain.Queens, domain.Manhattan, domain.StatenIsland}
	boroughWeights = []int{10, 7, 4, 3, 1}
	monthWeights   = []int{5, 4, 5, 6, 8, 10, 13, 13, 9, 7, 6, 6}
	hourWeights    = []int{9, 8, 7, 6, 4, 3, 2, 2, 2, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 8, 9, 10, 10}

	ageGroups = []string{"<18", "18-24", "25-44", "45-64", "65+", "UNKNOWN"}
	races     = []string{"BLACK", "WHITE HISPANIC", "BLACK HISPANIC", "WHITE", "ASIAN / PACIFIC ISLANDER", "UNKNOWN"}
)

// boroughBox bounds Lat/Lon generation per borough.
type boroughBox struct {
	latMin, latMax float64
	lonMin, lonMax float64
}

var boroughBoxes = map[domain.Borough]boroughBox{
	domain.Bronx:        {40.79, 40.91, -73.93, -73.79},
	domain.Brooklyn:     {40.57, 40.74, -74.04, -73.86},
	domain.Manhattan:    {40.70, 40.88, -74.02, -73.91},
	domain.Queens:       {40.54, 40.80, -73.96, -73.70},
	domain.StatenIsland: {40.50, 40.65, -74.26, -74.05},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	count := flag.Int("count", 500, "number of incident rows to generate")
	badRows := flag.Int("bad-rows", 0, "number of unparseable rows to append")
	seed := flag.Int64("seed", 42, "random seed; same seed yields the same fixture")
	csvOut := flag.String("csv-out", "", "output path for the raw CSV fixture")
	jsonOut := flag.String("json-out", "", "output path for the enriched JSON fixture")
	flag.Parse()

	if *csvOut == "" || *jsonOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -json-out")
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed)) //nolint:gosec // fixture generation, not crypto

	records := generateRecords(rng, *count)
	records = append(records, generateBadRecords(rng, *badRows)...)

	if err := writeCSV(*csvOut, records); err != nil {
		return fmt.Errorf("writing CSV fixture: %w", err)
	}
	log.Printf("wrote CSV fixture: %s (%d rows)", *csvOut, len(records))

	incidents, parseFailures := parseAll(records)

	table, err := census.BuildTable(census.DefaultSnapshots(), lastYear)
	if err != nil {
		return fmt.Errorf("building census table: %w", err)
	}
	result := enrich.Incidents(incidents, table)

	if err := writeJSON(*jsonOut, result.Incidents); err != nil {
		return fmt.Errorf("writing enriched fixture: %w", err)
	}
	log.Printf("wrote enriched fixture: %s (%d incidents)", *jsonOut, len(result.Incidents))

	printStats(records, parseFailures, result)
	return nil
}

func generateRecords(rng *rand.Rand, count int) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		borough := boroughChoices[weightedPick(rng, boroughWeights)]
		precincts := boroughPrecincts[borough]
		box := boroughBoxes[borough]

		year := firstYear + rng.Intn(lastYear-firstYear+1)
		month := weightedPick(rng, monthWeights) + 1
		day := 1 + rng.Intn(28)
		hour := weightedPick(rng, hourWeights)
		minute := rng.Intn(60)

		murder := "false"
		if rng.Intn(100) < 19 {
			murder = "true"
		}

		rec := domain.RawRecord{
			IncidentKey: strconv.Itoa(200000000 + i*100 + rng.Intn(100)),
			OccurDate:   fmt.Sprintf("%02d/%02d/%04d", month, day, year),
			OccurTime:   fmt.Sprintf("%02d:%02d:00", hour, minute),
			Borough:     string(borough),
			Precinct:    strconv.Itoa(precincts[rng.Intn(len(precincts))]),
			MurderFlag:  murder,
			VicAgeGroup: ageGroups[rng.Intn(len(ageGroups))],
			VicSex:      pick(rng, "M", "M", "M", "F", "U"),
			VicRace:     races[rng.Intn(len(races))],
			Latitude:    fmt.Sprintf("%.6f", box.latMin+rng.Float64()*(box.latMax-box.latMin)),
			Longitude:   fmt.Sprintf("%.6f", box.lonMin+rng.Float64()*(box.lonMax-box.lonMin)),
		}

		// Roughly a third of live rows have no perpetrator information.
		if rng.Intn(100) < 65 {
			rec.PerpAgeGroup = ageGroups[rng.Intn(len(ageGroups))]
			rec.PerpSex = pick(rng, "M", "M", "M", "M", "F", "U")
			rec.PerpRace = races[rng.Intn(len(races))]
		} else {
			rec.PerpAgeGroup = "(null)"
			rec.PerpSex = "(null)"
			rec.PerpRace = "(null)"
		}

		records = append(records, rec)
	}
	return records
}

// generateBadRecords produces rows the parser must reject, for exercising the
// skip-and-count path.
func generateBadRecords(rng *rand.Rand, count int) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		rec := domain.RawRecord{
			IncidentKey: strconv.Itoa(900000000 + i),
			OccurDate:   "not-a-date",
			OccurTime:   "12:00:00",
			Borough:     string(boroughChoices[rng.Intn(len(boroughChoices))]),
			Precinct:    "40",
			MurderFlag:  "false",
		}
		if i%2 == 1 {
			rec.OccurDate = "07/04/2019"
			rec.Borough = "ATLANTIS"
		}
		records = append(records, rec)
	}
	return records
}

func weightedPick(rng *rand.Rand, weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := rng.Intn(total)
	for i, w := range weights {
		n -= w
		if n < 0 {
			return i
		}
	}
	return len(weights) - 1
}

func pick(rng *rand.Rand, choices ...string) string {
	return choices[rng.Intn(len(choices))]
}

func parseAll(records []domain.RawRecord) ([]domain.Incident, int) {
	incidents := make([]domain.Incident, 0, len(records))
	failures := 0
	for _, rec := range records {
		incident, err := domain.ParseIncident(rec)
		if err != nil {
			failures++
			continue
		}
		incidents = append(incidents, incident)
	}
	return incidents, failures
}

func writeCSV(path string, records []domain.RawRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.IncidentKey, rec.OccurDate, rec.OccurTime, rec.Borough, rec.Precinct,
			rec.MurderFlag, rec.PerpAgeGroup, rec.PerpSex, rec.PerpRace,
			rec.VicAgeGroup, rec.VicSex, rec.VicRace, rec.Latitude, rec.Longitude,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(records []domain.RawRecord, parseFailures int, result enrich.Result) {
	incidents := result.Incidents

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Raw rows: %d\n", len(records))
	fmt.Printf("Parse failures: %d\n", parseFailures)
	fmt.Printf("Enriched: %d\n", len(incidents))
	fmt.Printf("Lookup failures: %d\n", len(result.Failures))

	byBorough := aggregate.CountBy(incidents, aggregate.ByBorough)
	fmt.Printf("\nBy borough:")
	for _, b := range byBorough {
		fmt.Printf(" %s=%d", b.Key, b.Count)
	}
	fmt.Println()

	byYear := aggregate.CountBy(incidents, aggregate.ByYear)
	fmt.Printf("By year:")
	for _, b := range byYear {
		fmt.Printf(" %d=%d", b.Key, b.Count)
	}
	fmt.Println()

	var murders int
	for i := range incidents {
		if incidents[i].Murder {
			murders++
		}
	}
	fmt.Printf("Murders: %d\n", murders)

	byPrecinct := aggregate.CountBy(incidents, aggregate.ByPrecinct)
	fmt.Printf("\nTop 5 precincts:")
	for _, b := range aggregate.TopN(byPrecinct, 5) {
		fmt.Printf(" %d=%d", b.Key, b.Count)
	}
	fmt.Println()
	fmt.Printf("Bottom 5 precincts:")
	for _, b := range aggregate.BottomN(byPrecinct, 5) {
		fmt.Printf(" %d=%d", b.Key, b.Count)
	}
	fmt.Println()

	byHour := aggregate.CountBy(incidents, aggregate.ByHour)
	fmt.Printf("Top 3 hours:")
	for _, b := range aggregate.TopN(byHour, 3) {
		fmt.Printf(" %02d:00=%d", b.Key, b.Count)
	}
	fmt.Println()

	rates, err := aggregate.RatesByYearBorough(incidents)
	if err != nil {
		fmt.Printf("rates: %v\n", err)
		return
	}
	fmt.Printf("\nRates for %d (per million):\n", lastYear)
	for _, r := range rates {
		if r.Year != lastYear {
			continue
		}
		fmt.Printf("  %s: count=%d population=%.1f rate=%.2f\n", r.Borough, r.Count, r.Population, r.RatePerMillion)
	}
}
