// Command report prints the most recent pipeline run from the stats
// database: the run summary, incidents and rates by year and borough,
// precinct rankings, and fitted year-over-year trends.
//
// Usage:
//
//	go run ./cmd/report -db ./stats.db
//	go run ./cmd/report -db ./stats.db -failures
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/couchcryptid/shooting-data-etl/internal/enrich"
	"github.com/couchcryptid/shooting-data-etl/internal/trend"
)

func main() {
	dbPath := flag.String("db", "./stats.db", "path to the stats database")
	showFailures := flag.Bool("failures", false, "list individual population lookup failures")
	flag.Parse()

	if code := run(*dbPath, *showFailures); code != 0 {
		os.Exit(code)
	}
}

func run(dbPath string, showFailures bool) int {
	ctx := context.Background()

	// The store logs writes; a report only reads.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.New(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open stats database: %v\n", err)
		return 1
	}
	defer store.Close()

	latest, err := store.LatestRun(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load latest run: %v\n", err)
		return 1
	}
	if latest == nil {
		fmt.Fprintf(os.Stderr, "no completed runs in %s\n", dbPath)
		return 1
	}

	printSummary(latest)

	rates, err := store.RatesForRun(ctx, latest.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load rates: %v\n", err)
		return 1
	}
	printRates(rates)

	top, bottom, err := store.RankingsForRun(ctx, latest.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load precinct rankings: %v\n", err)
		return 1
	}
	printRankings(top, bottom)

	trends, err := store.TrendsForRun(ctx, latest.RunID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load trends: %v\n", err)
		return 1
	}
	printTrends(trends)

	if showFailures {
		failures, err := store.FailuresForRun(ctx, latest.RunID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load lookup failures: %v\n", err)
			return 1
		}
		printFailures(failures)
	}

	return 0
}

func printSummary(run *sqlite.RunSummary) {
	fmt.Println("=== Shooting Incident ETL Report ===")
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Run:\t%s\n", run.RunID)
	fmt.Fprintf(w, "Source:\t%s\n", run.Source)
	fmt.Fprintf(w, "Dataset SHA-256:\t%s\n", run.DatasetSHA256)
	fmt.Fprintf(w, "Started:\t%s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:\t%s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "Raw rows:\t%d\n", run.RawCount)
	fmt.Fprintf(w, "Parsed:\t%d (%d unparseable skipped)\n", run.ParsedCount, run.ParseFailures)
	fmt.Fprintf(w, "Enriched:\t%d (%d population lookups failed)\n", run.EnrichedCount, run.LookupFailures)
	w.Flush() //nolint:errcheck // stdout report
	fmt.Println()
}

// printRates pivots the (year, borough) rates into one row per year with a
// rate-per-million column for each borough.
func printRates(rates []aggregate.RateBucket) {
	if len(rates) == 0 {
		fmt.Println("No rates recorded.")
		return
	}

	byYear := make(map[int]map[domain.Borough]aggregate.RateBucket)
	years := make([]int, 0)
	for _, r := range rates {
		if byYear[r.Year] == nil {
			byYear[r.Year] = make(map[domain.Borough]aggregate.RateBucket)
			years = append(years, r.Year)
		}
		byYear[r.Year][r.Borough] = r
	}
	sort.Ints(years)

	fmt.Println("Incidents per million residents:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(w, "YEAR")
	for _, b := range domain.Boroughs() {
		fmt.Fprintf(w, "\t%s", b)
	}
	fmt.Fprintln(w, "\tTOTAL")

	for _, year := range years {
		fmt.Fprintf(w, "%d", year)
		var total int
		for _, b := range domain.Boroughs() {
			r, ok := byYear[year][b]
			if !ok {
				fmt.Fprint(w, "\t-")
				continue
			}
			fmt.Fprintf(w, "\t%.1f", r.RatePerMillion)
			total += r.Count
		}
		fmt.Fprintf(w, "\t%d\n", total)
	}
	w.Flush() //nolint:errcheck // stdout report
	fmt.Println()
}

func printRankings(top, bottom []aggregate.Bucket[int]) {
	fmt.Println("Precinct rankings:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tTOP\tINCIDENTS\t\tBOTTOM\tINCIDENTS")
	for i := 0; i < len(top) || i < len(bottom); i++ {
		fmt.Fprintf(w, "#%d", i+1)
		if i < len(top) {
			fmt.Fprintf(w, "\t%d\t%d", top[i].Key, top[i].Count)
		} else {
			fmt.Fprint(w, "\t\t")
		}
		if i < len(bottom) {
			fmt.Fprintf(w, "\t\t%d\t%d\n", bottom[i].Key, bottom[i].Count)
		} else {
			fmt.Fprint(w, "\t\t\t\n")
		}
	}
	w.Flush() //nolint:errcheck // stdout report
	fmt.Println()
}

func printTrends(trends []trend.Model) {
	if len(trends) == 0 {
		fmt.Println("No trends fitted.")
		return
	}

	fmt.Println("Year-over-year trends:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERIES\tYEARS\tSLOPE/YR\tR2\tPROJECTED")
	for _, m := range trends {
		fmt.Fprintf(w, "%s\t%d-%d\t%+.1f\t%.3f\t%.0f (%d)\n",
			m.Series, m.FirstYear, m.LastYear, m.Slope, m.R2, m.Predict(m.LastYear+1), m.LastYear+1)
	}
	w.Flush() //nolint:errcheck // stdout report
	fmt.Println()
}

func printFailures(failures []enrich.LookupError) {
	if len(failures) == 0 {
		fmt.Println("No population lookup failures.")
		return
	}

	fmt.Printf("Population lookup failures (%d):\n", len(failures))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INCIDENT KEY\tYEAR\tBOROUGH")
	for _, f := range failures {
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.IncidentKey, f.Year, f.Borough)
	}
	w.Flush() //nolint:errcheck // stdout report
}
