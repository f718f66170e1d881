package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// defaultDatasetURL is the NYC Open Data CSV export of NYPD Shooting Incident
// Data (Historic), dataset 833y-fsy8.
const defaultDatasetURL = "https://data.cityofnewyork.us/api/views/833y-fsy8/rows.csv?accessType=DOWNLOAD"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// DatasetPath points at a local CSV copy. When empty, the dataset is
	// downloaded from DatasetURL instead.
	DatasetPath     string
	DatasetURL      string
	DownloadTimeout time.Duration

	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	StatsDBPath string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// RefreshInterval re-runs the pipeline on a timer; 0 runs once and exits.
	RefreshInterval time.Duration
	// CensusMaxYear bounds the population table. Incidents dated past it
	// surface as enrichment lookup failures rather than extrapolating further.
	CensusMaxYear int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := parsePositiveDuration("DOWNLOAD_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseRefreshInterval()
	if err != nil {
		return nil, err
	}

	censusMaxYear, err := parseCensusMaxYear()
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		DatasetPath:     os.Getenv("DATASET_PATH"),
		DatasetURL:      envOrDefault("DATASET_URL", defaultDatasetURL),
		DownloadTimeout: downloadTimeout,
		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  envOrDefault("KAFKA_SINK_TOPIC", "enriched-shooting-incidents"),
		KafkaEnabled:    kafkaEnabled,
		StatsDBPath:     envOrDefault("STATS_DB_PATH", "shooting-stats.db"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RefreshInterval: refreshInterval,
		CensusMaxYear:   censusMaxYear,
	}

	if cfg.DatasetPath == "" && cfg.DatasetURL == "" {
		return nil, errors.New("one of DATASET_PATH or DATASET_URL is required")
	}
	if cfg.StatsDBPath == "" {
		return nil, errors.New("STATS_DB_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// envOrDefault returns the environment value for key, or fallback when unset
// or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseBrokers splits a comma-separated broker list, trimming whitespace and
// dropping empty entries.
func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseRefreshInterval() (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault("REFRESH_INTERVAL", "0"))
	if err != nil || d < 0 {
		return 0, errors.New("invalid REFRESH_INTERVAL")
	}
	return d, nil
}

// parseCensusMaxYear defaults to the current year so a freshly downloaded
// dataset vintage enriches end to end; pin it for reproducible runs.
func parseCensusMaxYear() (int, error) {
	v := os.Getenv("CENSUS_MAX_YEAR")
	if v == "" {
		return time.Now().Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1900 {
		return 0, errors.New("invalid CENSUS_MAX_YEAR")
	}
	return year, nil
}
