//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/adapter/dataset"
	"github.com/couchcryptid/shooting-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/shooting-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/shooting-data-etl/internal/census"
	"github.com/couchcryptid/shooting-data-etl/internal/config"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	"github.com/couchcryptid/shooting-data-etl/internal/observability"
	"github.com/couchcryptid/shooting-data-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testSinkTopic = "shooting-incidents-enriched"

// fixtureCSV holds five raw rows: three clean incidents, one with an
// unparseable date, and one from 1999, before the census table begins.
const fixtureCSV = `INCIDENT_KEY,OCCUR_DATE,OCCUR_TIME,BORO,PRECINCT,STATISTICAL_MURDER_FLAG,PERP_AGE_GROUP,PERP_SEX,PERP_RACE,VIC_AGE_GROUP,VIC_SEX,VIC_RACE,Latitude,Longitude
1001,07/04/2019,21:30:00,BROOKLYN,75,false,25-44,M,BLACK,25-44,M,BLACK,40.670,-73.890
1002,11/11/2021,15:04:00,BROOKLYN,79,true,(null),(null),(null),18-24,F,BLACK,40.683,-73.950
1003,01/15/2021,02:00:00,QUEENS,103,false,UNKNOWN,U,UNKNOWN,25-44,M,BLACK,40.702,-73.801
1004,not-a-date,12:00:00,BRONX,40,false,(null),(null),(null),25-44,M,BLACK,40.821,-73.900
1005,06/15/1999,12:00:00,MANHATTAN,14,false,(null),(null),(null),25-44,F,WHITE,40.754,-73.987
`

// publishedMessage holds a deserialized message read from the sink topic.
type publishedMessage struct {
	Incident domain.EnrichedIncident
	Key      string
	Headers  map[string]string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-broker Kafka in a container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("shooting-etl-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err, "create topic %s", topic)
}

func writeFixtureDataset(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "incidents.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixtureCSV), 0o644))
	return path
}

// readPublished reads a single message from the sink consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var incident domain.EnrichedIncident
	require.NoError(t, json.Unmarshal(msg.Value, &incident), "unmarshal sink message")

	return publishedMessage{
		Incident: incident,
		Key:      string(msg.Key),
		Headers:  headers,
	}
}

func newSinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaWriterPublish verifies the adapter layer: kafka.Writer publishes an
// enriched incident with the expected key, value, and headers.
func TestKafkaWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	incident, err := domain.ParseIncident(domain.RawRecord{
		IncidentKey: "236168668",
		OccurDate:   "11/11/2021",
		OccurTime:   "15:04:00",
		Borough:     "BROOKLYN",
		Precinct:    "79",
		MurderFlag:  "false",
		VicAgeGroup: "18-24",
		VicSex:      "F",
		VicRace:     "BLACK",
	})
	require.NoError(t, err)
	enriched := incident.WithPopulation(2727786.0)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.PublishBatch(ctx, "run-integration-1", []domain.EnrichedIncident{enriched}))

	consumer := newSinkConsumer(t, broker)
	pm := readPublished(ctx, t, consumer)

	assert.Equal(t, enriched.ID, pm.Key, "messages are keyed by incident ID")
	assert.Equal(t, enriched.IncidentKey, pm.Incident.IncidentKey)
	assert.Equal(t, domain.Brooklyn, pm.Incident.Borough)
	assert.Equal(t, 2727786.0, pm.Incident.Population)

	assert.Equal(t, "BROOKLYN", pm.Headers["borough"])
	assert.Equal(t, "run-integration-1", pm.Headers["run_id"])
	_, err = time.Parse(time.RFC3339, pm.Headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")
}

// TestPipelineEndToEnd wires the full pipeline (file source → enrichment →
// Kafka sink → SQLite store) against a real broker and verifies that clean
// rows are published and the bad rows are accounted for, not silently lost.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSinkTopic)

	datasetPath := writeFixtureDataset(t)
	logger := discardLogger()

	cfg := &config.Config{
		KafkaBrokers:   []string{broker},
		KafkaSinkTopic: testSinkTopic,
	}

	table, err := census.BuildTable(census.DefaultSnapshots(), 2023)
	require.NoError(t, err)

	source := dataset.NewFileSource(datasetPath, logger)

	writer := kafka.NewWriter(cfg, logger)
	t.Cleanup(func() { _ = writer.Close() })

	store, err := sqlite.New(filepath.Join(t.TempDir(), "stats.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(source, writer, store, table, datasetPath, 0, logger, metrics)

	require.NoError(t, p.Run(ctx), "pipeline run")

	// The run row records what was read, what parsed, and what failed lookup.
	run, err := store.LatestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run, "run row must be persisted")
	assert.Equal(t, 5, run.RawCount)
	assert.Equal(t, 4, run.ParsedCount)
	assert.Equal(t, 1, run.ParseFailures)
	assert.Equal(t, 3, run.EnrichedCount)
	assert.Equal(t, 1, run.LookupFailures)

	// Every enriched incident lands on the sink topic exactly once.
	consumer := newSinkConsumer(t, broker)
	published := make(map[string]publishedMessage, run.EnrichedCount)
	for i := 0; i < run.EnrichedCount; i++ {
		pm := readPublished(ctx, t, consumer)
		published[pm.Incident.IncidentKey] = pm
	}
	require.Len(t, published, 3)

	readCtx, readCancel := context.WithTimeout(ctx, 5*time.Second)
	_, err = consumer.ReadMessage(readCtx)
	readCancel()
	assert.Error(t, err, "expected no message for the skipped rows")

	for key, pm := range published {
		assert.Equal(t, pm.Incident.ID, pm.Key, "message %s is keyed by incident ID", key)
		assert.Equal(t, run.RunID, pm.Headers["run_id"], "message %s carries the run that produced it", key)
		assert.Greater(t, pm.Incident.Population, 0.0, "message %s has a population attached", key)
		_, err := time.Parse(time.RFC3339, pm.Headers["processed_at"])
		assert.NoError(t, err, "invalid processed_at format")
	}

	// Spot-check the 2019 Brooklyn incident against the interpolated census line.
	brooklyn, ok := published["1001"]
	require.True(t, ok, "incident 1001 must be published")
	assert.Equal(t, domain.Brooklyn, brooklyn.Incident.Borough)
	assert.Equal(t, 2019, brooklyn.Incident.Year)
	assert.Equal(t, 75, brooklyn.Incident.Precinct)
	assert.InDelta(t, 2712936.6, brooklyn.Incident.Population, 0.5)

	// Aggregates for the run are queryable from the stats store.
	rates, err := store.RatesForRun(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, rates, 3, "one rate per (year, borough) pair")
	for _, rate := range rates {
		assert.InDelta(t, float64(rate.Count)*1_000_000/rate.Population, rate.RatePerMillion, 1e-9)
	}

	failures, err := store.FailuresForRun(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "1005", failures[0].IncidentKey)
	assert.Equal(t, 1999, failures[0].Year)
	assert.Equal(t, domain.Manhattan, failures[0].Borough)
}
