package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/aggregate"
	"github.com/couchcryptid/shooting-data-etl/internal/census"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/couchcryptid/shooting-data-etl/internal/enrich"
	"github.com/couchcryptid/shooting-data-etl/internal/observability"
	"github.com/couchcryptid/shooting-data-etl/internal/trend"
	"github.com/google/uuid"
)

// Extractor reads the full raw dataset from its source.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.RawRecord, error)
}

// Publisher emits a run's enriched incidents downstream.
type Publisher interface {
	PublishBatch(ctx context.Context, runID string, incidents []domain.EnrichedIncident) error
}

// Store persists a completed run's results.
type Store interface {
	SaveRun(ctx context.Context, result *RunResult) error
}

// RunResult captures everything a single run produced: record counts, the
// per-record failures, and the aggregate views persisted for reporting.
type RunResult struct {
	RunID         string
	Source        string
	DatasetSHA256 string
	StartedAt     time.Time
	FinishedAt    time.Time

	RawCount       int
	ParsedCount    int
	ParseFailures  int
	EnrichedCount  int
	LookupFailures []enrich.LookupError

	Rates           []aggregate.RateBucket
	YearCounts      []aggregate.Bucket[int]
	HourCounts      []aggregate.Bucket[int]
	WeekdayCounts   []aggregate.Bucket[time.Weekday]
	MonthCounts     []aggregate.Bucket[time.Month]
	PrecinctCounts  []aggregate.Bucket[int]
	TopPrecincts    []aggregate.Bucket[int]
	BottomPrecincts []aggregate.Bucket[int]
	Trends          []trend.Model
}

// Pipeline orchestrates the extract-enrich-aggregate-publish cycle.
type Pipeline struct {
	extractor Extractor
	publisher Publisher // nil when Kafka publishing is disabled
	store     Store
	table     *census.Table
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	lastRun   atomic.Pointer[RunResult]

	source          string
	refreshInterval time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, pub Publisher, st Store, table *census.Table, source string, refreshInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:       e,
		publisher:       pub,
		store:           st,
		table:           table,
		logger:          logger,
		metrics:         metrics,
		source:          source,
		refreshInterval: refreshInterval,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the result of the most recent successful run, or nil before
// the first one completes.
func (p *Pipeline) LastRun() *RunResult {
	return p.lastRun.Load()
}

// Run executes one full ETL pass, then repeats on the configured refresh
// interval. A zero interval means run once and return. A failure on the first
// run is fatal; refresh failures are logged and retried on the next tick.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "source", p.source, "refresh_interval", p.refreshInterval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := p.runOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	if p.refreshInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := p.runOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Error("refresh run failed", "error", err)
			}
		}
	}
}

// runOnce wraps a single run with outcome metrics.
func (p *Pipeline) runOnce(ctx context.Context) error {
	runID := uuid.NewString()
	started := time.Now()

	if err := p.processDataset(ctx, runID, started); err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return fmt.Errorf("run %s: %w", runID, err)
	}

	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.RunDuration.Observe(time.Since(started).Seconds())
	p.metrics.LastRunUnixtime.Set(float64(time.Now().Unix()))
	return nil
}

// processDataset runs the stages of a single run in order. Stage durations
// are observed individually so a slow run can be attributed.
func (p *Pipeline) processDataset(ctx context.Context, runID string, started time.Time) error {
	logger := p.logger.With("run_id", runID)
	logger.Info("run started", "source", p.source)

	stage := time.Now()
	raw, err := p.extractor.Extract(ctx)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(stage).Seconds())
	p.metrics.RecordsExtracted.Add(float64(len(raw)))

	stage = time.Now()
	incidents, parseFailures := p.parseRecords(raw, logger)
	p.metrics.StageDuration.WithLabelValues("parse").Observe(time.Since(stage).Seconds())

	stage = time.Now()
	enriched := enrich.Incidents(incidents, p.table)
	p.metrics.StageDuration.WithLabelValues("enrich").Observe(time.Since(stage).Seconds())
	p.metrics.RecordsEnriched.Add(float64(len(enriched.Incidents)))
	p.metrics.LookupFailures.Add(float64(len(enriched.Failures)))
	for _, f := range enriched.Failures {
		logger.Warn("population lookup failed",
			"incident_id", f.IncidentID, "year", f.Year, "borough", f.Borough)
	}

	result := &RunResult{
		RunID:          runID,
		Source:         p.source,
		DatasetSHA256:  fingerprint(raw),
		StartedAt:      started,
		RawCount:       len(raw),
		ParsedCount:    len(incidents),
		ParseFailures:  parseFailures,
		EnrichedCount:  len(enriched.Incidents),
		LookupFailures: enriched.Failures,
	}

	stage = time.Now()
	if err := p.buildAggregates(result, enriched.Incidents, logger); err != nil {
		return err
	}
	p.metrics.StageDuration.WithLabelValues("aggregate").Observe(time.Since(stage).Seconds())

	if p.publisher != nil {
		stage = time.Now()
		if err := p.publisher.PublishBatch(ctx, runID, enriched.Incidents); err != nil {
			return fmt.Errorf("publish incidents: %w", err)
		}
		p.metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(stage).Seconds())
		p.metrics.IncidentsPublished.Add(float64(len(enriched.Incidents)))
	}

	result.FinishedAt = time.Now()

	stage = time.Now()
	if err := p.store.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	p.metrics.StageDuration.WithLabelValues("persist").Observe(time.Since(stage).Seconds())

	p.ready.Store(true)
	p.lastRun.Store(result)
	logger.Info("run finished",
		"raw", result.RawCount,
		"parsed", result.ParsedCount,
		"parse_failures", result.ParseFailures,
		"enriched", result.EnrichedCount,
		"lookup_failures", len(result.LookupFailures),
	)
	return nil
}

// fingerprint hashes every field of every raw row, so two runs over the same
// dataset version carry the same hash regardless of how it was fetched.
func fingerprint(records []domain.RawRecord) string {
	h := sha256.New()
	for _, rec := range records {
		for _, field := range []string{
			rec.IncidentKey, rec.OccurDate, rec.OccurTime, rec.Borough, rec.Precinct,
			rec.MurderFlag, rec.PerpAgeGroup, rec.PerpSex, rec.PerpRace,
			rec.VicAgeGroup, rec.VicSex, rec.VicRace, rec.Latitude, rec.Longitude,
		} {
			h.Write([]byte(field))
			h.Write([]byte{'|'})
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// parseRecords converts raw rows into incidents. Rows that fail to parse are
// counted and skipped rather than aborting the run; the historic dataset
// carries a handful of malformed rows.
func (p *Pipeline) parseRecords(raw []domain.RawRecord, logger *slog.Logger) ([]domain.Incident, int) {
	incidents := make([]domain.Incident, 0, len(raw))
	failures := 0
	for _, rec := range raw {
		inc, err := domain.ParseIncident(rec)
		if err != nil {
			failures++
			p.metrics.ParseErrors.Inc()
			logger.Warn("skipping unparseable record", "error", err, "incident_key", rec.IncidentKey)
			continue
		}
		incidents = append(incidents, inc)
	}
	return incidents, failures
}

// buildAggregates fills the result's aggregate views. A population
// inconsistency aborts the run rather than being averaged away.
func (p *Pipeline) buildAggregates(result *RunResult, incidents []domain.EnrichedIncident, logger *slog.Logger) error {
	rates, err := aggregate.RatesByYearBorough(incidents)
	if err != nil {
		return fmt.Errorf("aggregate rates: %w", err)
	}
	result.Rates = rates

	result.YearCounts = aggregate.CountBy(incidents, aggregate.ByYear)
	result.HourCounts = aggregate.CountBy(incidents, aggregate.ByHour)
	result.WeekdayCounts = aggregate.CountBy(incidents, aggregate.ByWeekday)
	result.MonthCounts = aggregate.CountBy(incidents, aggregate.ByMonth)
	result.PrecinctCounts = aggregate.CountBy(incidents, aggregate.ByPrecinct)
	result.TopPrecincts = aggregate.TopN(result.PrecinctCounts, 5)
	result.BottomPrecincts = aggregate.BottomN(result.PrecinctCounts, 5)
	result.Trends = p.fitTrends(incidents, result.YearCounts, logger)
	return nil
}

// fitTrends fits a linear model to the citywide yearly series and to each
// borough's. Series with too few distinct years are skipped.
func (p *Pipeline) fitTrends(incidents []domain.EnrichedIncident, cityByYear []aggregate.Bucket[int], logger *slog.Logger) []trend.Model {
	models := make([]trend.Model, 0, len(domain.Boroughs())+1)

	if m, err := trend.Fit("citywide", cityByYear); err != nil {
		logger.Warn("trend fit skipped", "series", "citywide", "error", err)
	} else {
		models = append(models, m)
	}

	for _, b := range domain.Boroughs() {
		var subset []domain.EnrichedIncident
		for _, inc := range incidents {
			if inc.Borough == b {
				subset = append(subset, inc)
			}
		}
		m, err := trend.Fit(string(b), aggregate.CountBy(subset, aggregate.ByYear))
		if err != nil {
			logger.Warn("trend fit skipped", "series", string(b), "error", err)
			continue
		}
		models = append(models, m)
	}
	return models
}
