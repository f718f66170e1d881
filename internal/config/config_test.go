package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.DatasetPath)
	assert.Contains(t, cfg.DatasetURL, "data.cityofnewyork.us")
	assert.Equal(t, 5*time.Minute, cfg.DownloadTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "enriched-shooting-incidents", cfg.KafkaSinkTopic)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, "shooting-stats.db", cfg.StatsDBPath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval)
	assert.Equal(t, time.Now().Year(), cfg.CensusMaxYear)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("DATASET_PATH", "/data/shootings.csv")
	t.Setenv("DATASET_URL", "https://example.com/export.csv")
	t.Setenv("DOWNLOAD_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("STATS_DB_PATH", "/var/lib/etl/stats.db")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("REFRESH_INTERVAL", "6h")
	t.Setenv("CENSUS_MAX_YEAR", "2023")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/shootings.csv", cfg.DatasetPath)
	assert.Equal(t, "https://example.com/export.csv", cfg.DatasetURL)
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, "/var/lib/etl/stats.db", cfg.StatsDBPath)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 2023, cfg.CensusMaxYear)
}

func TestLoad_BrokerListTrimsEntries(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker1:9092 , ,broker2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidDownloadTimeout(t *testing.T) {
	t.Setenv("DOWNLOAD_TIMEOUT", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOWNLOAD_TIMEOUT")
}

func TestLoad_InvalidRefreshInterval(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "-5m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_INTERVAL")
}

func TestLoad_ZeroRefreshIntervalRunsOnce(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.RefreshInterval)
}

func TestLoad_InvalidCensusMaxYear(t *testing.T) {
	for _, v := range []string{"soon", "1776"} {
		t.Setenv("CENSUS_MAX_YEAR", v)
		_, err := Load()
		require.Error(t, err, "value %q", v)
		assert.Contains(t, err.Error(), "CENSUS_MAX_YEAR")
	}
}

func TestLoad_KafkaEnabledRequiresBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaDisabledByNonTrueValue(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "yes")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}
