package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/shooting-data-etl/internal/config"
	"github.com/couchcryptid/shooting-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces messages to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishBatch serializes and publishes enriched incidents to the sink Kafka
// topic in a single WriteMessages call for efficiency.
func (w *Writer) PublishBatch(ctx context.Context, runID string, incidents []domain.EnrichedIncident) error {
	if len(incidents) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(incidents))
	for i := range incidents {
		msg, err := serializeToMessage(incidents[i], runID)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write incidents: %w", err)
	}
	w.logger.Info("published incident batch", "count", len(incidents), "run_id", runID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an EnrichedIncident into a Kafka message. The
// incident ID keys the message so replays of the same dataset land on the
// same partition.
func serializeToMessage(incident domain.EnrichedIncident, runID string) (kafkago.Message, error) {
	data, err := json.Marshal(incident)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(incident.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "borough", Value: []byte(incident.Borough)},
			{Key: "processed_at", Value: []byte(incident.ProcessedAt.Format(time.RFC3339))},
			{Key: "run_id", Value: []byte(runID)},
		},
	}, nil
}
