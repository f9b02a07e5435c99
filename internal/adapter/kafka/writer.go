package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
)

// Notifier publishes package events to a Kafka topic.
// It implements pipeline.Notifier.
type Notifier struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewNotifier creates a Kafka producer for the given brokers and topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Notifier{writer: w, logger: logger}
}

// Notify publishes a package.published event keyed by package name so every
// version of a package lands on the same partition.
func (n *Notifier) Notify(ctx context.Context, event domain.PackagePublished) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", domain.EventPackagePublished, err)
	}
	n.logger.Debug("published package event", "package", event.Package, "top_hash", event.TopHash)
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals a PackagePublished event into a Kafka message.
func serializeToMessage(event domain.PackagePublished) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize package event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Package),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(domain.EventPackagePublished)},
			{Key: "published_at", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}
