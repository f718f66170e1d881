// Package sqlite persists run results to a local SQLite database so reports
// can be produced without re-running the pipeline.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/couchcryptid/shooting-data-etl/internal/enrich"
	"github.com/couchcryptid/shooting-data-etl/internal/pipeline"
	"github.com/couchcryptid/shooting-data-etl/internal/trend"
	_ "github.com/mattn/go-sqlite3"
)

// Dimension names used in the dimension_counts table.
const (
	DimensionYear     = "year"
	DimensionHour     = "hour"
	DimensionWeekday  = "weekday"
	DimensionMonth    = "month"
	DimensionPrecinct = "precinct"
)

// Store persists runs and their aggregates.
// It implements pipeline.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the stats database at dbPath and migrates the
// schema. Use ":memory:" for an in-memory database.
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate stats db: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		dataset_sha256 TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		raw_count INTEGER NOT NULL,
		parsed_count INTEGER NOT NULL,
		parse_failures INTEGER NOT NULL,
		enriched_count INTEGER NOT NULL,
		lookup_failures INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

	CREATE TABLE IF NOT EXISTS borough_year_rates (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		year INTEGER NOT NULL,
		borough TEXT NOT NULL,
		incident_count INTEGER NOT NULL,
		population REAL NOT NULL,
		rate_per_million REAL NOT NULL,
		PRIMARY KEY (run_id, year, borough)
	);

	CREATE TABLE IF NOT EXISTS dimension_counts (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		dimension TEXT NOT NULL,
		bucket INTEGER NOT NULL,
		incident_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, dimension, bucket)
	);

	CREATE TABLE IF NOT EXISTS precinct_rankings (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		ranking TEXT NOT NULL,
		position INTEGER NOT NULL,
		precinct INTEGER NOT NULL,
		incident_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, ranking, position)
	);

	CREATE TABLE IF NOT EXISTS trend_models (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		series TEXT NOT NULL,
		first_year INTEGER NOT NULL,
		last_year INTEGER NOT NULL,
		slope REAL NOT NULL,
		intercept REAL NOT NULL,
		r2 REAL NOT NULL,
		n INTEGER NOT NULL,
		PRIMARY KEY (run_id, series)
	);

	CREATE TABLE IF NOT EXISTS lookup_failures (
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		position INTEGER NOT NULL,
		incident_id TEXT NOT NULL,
		incident_key TEXT NOT NULL,
		year INTEGER NOT NULL,
		borough TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun writes a run and all of its aggregates in one transaction.
func (s *Store) SaveRun(ctx context.Context, result *pipeline.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, source, dataset_sha256, started_at, finished_at,
			raw_count, parsed_count, parse_failures, enriched_count, lookup_failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID,
		result.Source,
		result.DatasetSHA256,
		result.StartedAt.UTC().Format(time.RFC3339),
		result.FinishedAt.UTC().Format(time.RFC3339),
		result.RawCount,
		result.ParsedCount,
		result.ParseFailures,
		result.EnrichedCount,
		len(result.LookupFailures),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, r := range result.Rates {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO borough_year_rates (run_id, year, borough, incident_count, population, rate_per_million)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.RunID, r.Year, string(r.Borough), r.Count, r.Population, r.RatePerMillion,
		)
		if err != nil {
			return fmt.Errorf("insert rate %d/%s: %w", r.Year, r.Borough, err)
		}
	}

	if err := insertCounts(ctx, tx, result.RunID, DimensionYear, result.YearCounts); err != nil {
		return err
	}
	if err := insertCounts(ctx, tx, result.RunID, DimensionHour, result.HourCounts); err != nil {
		return err
	}
	if err := insertCounts(ctx, tx, result.RunID, DimensionWeekday, weekdayKeys(result.WeekdayCounts)); err != nil {
		return err
	}
	if err := insertCounts(ctx, tx, result.RunID, DimensionMonth, monthKeys(result.MonthCounts)); err != nil {
		return err
	}
	if err := insertCounts(ctx, tx, result.RunID, DimensionPrecinct, result.PrecinctCounts); err != nil {
		return err
	}

	if err := insertRankings(ctx, tx, result.RunID, "top", result.TopPrecincts); err != nil {
		return err
	}
	if err := insertRankings(ctx, tx, result.RunID, "bottom", result.BottomPrecincts); err != nil {
		return err
	}

	for _, m := range result.Trends {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trend_models (run_id, series, first_year, last_year, slope, intercept, r2, n)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, m.Series, m.FirstYear, m.LastYear, m.Slope, m.Intercept, m.R2, m.N,
		)
		if err != nil {
			return fmt.Errorf("insert trend %s: %w", m.Series, err)
		}
	}

	for i, f := range result.LookupFailures {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lookup_failures (run_id, position, incident_id, incident_key, year, borough)
			VALUES (?, ?, ?, ?, ?, ?)`,
			result.RunID, i, f.IncidentID, f.IncidentKey, f.Year, string(f.Borough),
		)
		if err != nil {
			return fmt.Errorf("insert lookup failure %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run: %w", err)
	}

	s.logger.Info("run persisted",
		"run_id", result.RunID,
		"rates", len(result.Rates),
		"trends", len(result.Trends),
		"lookup_failures", len(result.LookupFailures),
	)
	return nil
}

func insertCounts(ctx context.Context, tx *sql.Tx, runID, dimension string, buckets []aggregate.Bucket[int]) error {
	for _, b := range buckets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dimension_counts (run_id, dimension, bucket, incident_count)
			VALUES (?, ?, ?, ?)`,
			runID, dimension, b.Key, b.Count,
		)
		if err != nil {
			return fmt.Errorf("insert %s count %d: %w", dimension, b.Key, err)
		}
	}
	return nil
}

func insertRankings(ctx context.Context, tx *sql.Tx, runID, ranking string, buckets []aggregate.Bucket[int]) error {
	for i, b := range buckets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO precinct_rankings (run_id, ranking, position, precinct, incident_count)
			VALUES (?, ?, ?, ?, ?)`,
			runID, ranking, i+1, b.Key, b.Count,
		)
		if err != nil {
			return fmt.Errorf("insert %s ranking %d: %w", ranking, i+1, err)
		}
	}
	return nil
}

// weekdayKeys and monthKeys store their buckets under the underlying integer
// so every dimension shares one table. time.Weekday counts Sunday as 0;
// time.Month counts January as 1.
func weekdayKeys(buckets []aggregate.Bucket[time.Weekday]) []aggregate.Bucket[int] {
	out := make([]aggregate.Bucket[int], len(buckets))
	for i, b := range buckets {
		out[i] = aggregate.Bucket[int]{Key: int(b.Key), Count: b.Count}
	}
	return out
}

func monthKeys(buckets []aggregate.Bucket[time.Month]) []aggregate.Bucket[int] {
	out := make([]aggregate.Bucket[int], len(buckets))
	for i, b := range buckets {
		out[i] = aggregate.Bucket[int]{Key: int(b.Key), Count: b.Count}
	}
	return out
}

// RunSummary is a stored runs row.
type RunSummary struct {
	RunID          string
	Source         string
	DatasetSHA256  string
	StartedAt      time.Time
	FinishedAt     time.Time
	RawCount       int
	ParsedCount    int
	ParseFailures  int
	EnrichedCount  int
	LookupFailures int
}

// LatestRun returns the most recently started run, or nil when the database
// holds no runs yet.
func (s *Store) LatestRun(ctx context.Context) (*RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, source, dataset_sha256, started_at, finished_at,
			raw_count, parsed_count, parse_failures, enriched_count, lookup_failures
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1`)

	var summary RunSummary
	var startedAt, finishedAt string
	err := row.Scan(&summary.RunID, &summary.Source, &summary.DatasetSHA256,
		&startedAt, &finishedAt, &summary.RawCount, &summary.ParsedCount,
		&summary.ParseFailures, &summary.EnrichedCount, &summary.LookupFailures)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan latest run: %w", err)
	}

	if summary.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	if summary.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at %q: %w", finishedAt, err)
	}
	return &summary, nil
}

// RatesForRun returns a run's per-borough per-year rates in (year, borough)
// order.
func (s *Store) RatesForRun(ctx context.Context, runID string) ([]aggregate.RateBucket, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, borough, incident_count, population, rate_per_million
		FROM borough_year_rates
		WHERE run_id = ?
		ORDER BY year, borough`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rates: %w", err)
	}
	defer rows.Close()

	var rates []aggregate.RateBucket
	for rows.Next() {
		var r aggregate.RateBucket
		var borough string
		if err := rows.Scan(&r.Year, &borough, &r.Count, &r.Population, &r.RatePerMillion); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		r.Borough = domain.Borough(borough)
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// CountsForRun returns a run's counts for one dimension in bucket order.
func (s *Store) CountsForRun(ctx context.Context, runID, dimension string) ([]aggregate.Bucket[int], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT bucket, incident_count
		FROM dimension_counts
		WHERE run_id = ? AND dimension = ?
		ORDER BY bucket`, runID, dimension)
	if err != nil {
		return nil, fmt.Errorf("query %s counts: %w", dimension, err)
	}
	defer rows.Close()

	var buckets []aggregate.Bucket[int]
	for rows.Next() {
		var b aggregate.Bucket[int]
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", dimension, err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}

// RankingsForRun returns a run's top and bottom precinct rankings in ranked
// order.
func (s *Store) RankingsForRun(ctx context.Context, runID string) (top, bottom []aggregate.Bucket[int], err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ranking, precinct, incident_count
		FROM precinct_rankings
		WHERE run_id = ?
		ORDER BY ranking, position`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query rankings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ranking string
		var b aggregate.Bucket[int]
		if err := rows.Scan(&ranking, &b.Key, &b.Count); err != nil {
			return nil, nil, fmt.Errorf("scan ranking: %w", err)
		}
		if ranking == "top" {
			top = append(top, b)
		} else {
			bottom = append(bottom, b)
		}
	}
	return top, bottom, rows.Err()
}

// TrendsForRun returns a run's fitted trend models in the order they were
// produced.
func (s *Store) TrendsForRun(ctx context.Context, runID string) ([]trend.Model, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT series, first_year, last_year, slope, intercept, r2, n
		FROM trend_models
		WHERE run_id = ?
		ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	var models []trend.Model
	for rows.Next() {
		var m trend.Model
		if err := rows.Scan(&m.Series, &m.FirstYear, &m.LastYear, &m.Slope, &m.Intercept, &m.R2, &m.N); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// FailuresForRun returns a run's population lookup failures in the order the
// pipeline encountered them.
func (s *Store) FailuresForRun(ctx context.Context, runID string) ([]enrich.LookupError, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT incident_id, incident_key, year, borough
		FROM lookup_failures
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query lookup failures: %w", err)
	}
	defer rows.Close()

	var failures []enrich.LookupError
	for rows.Next() {
		var f enrich.LookupError
		var borough string
		if err := rows.Scan(&f.IncidentID, &f.IncidentKey, &f.Year, &borough); err != nil {
			return nil, fmt.Errorf("scan lookup failure: %w", err)
		}
		f.Borough = domain.Borough(borough)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
