// Package kafka adapts the submissions and events topics to the engine's
// source and publisher interfaces.
package kafka

import (
	"context"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/parkcheck/conditions-engine/internal/config"
	"github.com/parkcheck/conditions-engine/internal/domain"
)

// Reader consumes raw submissions from the submissions topic. It implements
// engine.SubmissionSource. Offsets are committed explicitly through the
// message's Commit hook, never on fetch.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the submissions topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        cfg.KafkaGroupID,
		Topic:          cfg.KafkaSubmissionsTopic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // synchronous commits only
	})
	return &Reader{reader: r, logger: logger}
}

// Fetch blocks until one submission message is available or the context is
// cancelled.
func (r *Reader) Fetch(ctx context.Context) (domain.RawSubmission, error) {
	msg, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return domain.RawSubmission{}, err
	}
	raw := mapMessageToRawSubmission(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw, nil
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawSubmission converts a Kafka message into the engine's raw
// submission shape.
func mapMessageToRawSubmission(msg kafkago.Message) domain.RawSubmission {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawSubmission{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
