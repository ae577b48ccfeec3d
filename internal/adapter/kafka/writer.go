package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/mapshield-weather/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces snapshot events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the snapshot topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one snapshot keyed by site ID, so a site's events stay ordered
// within a partition.
func (w *Writer) Publish(ctx context.Context, snap domain.SiteWeatherSnapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish snapshot %s: %w", snap.ID, err)
	}
	w.logger.Debug("snapshot published", "site_id", snap.SiteID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a snapshot into a Kafka message.
func serializeToMessage(snap domain.SiteWeatherSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.SiteID),
		Value: data,
		Time:  snap.CreatedAt,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(snap.RiskLevel)},
			{Key: "refreshed_at", Value: []byte(snap.CreatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
