// Package consumer reacts to index-complete events from Kafka by reloading
// the persisted tables into a running search server.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/kafka"
)

// Reloader rebuilds the live index from persisted tables.
type Reloader interface {
	Reload(ctx context.Context) (indexer.Status, error)
}

// ReloadConsumer wraps a Kafka consumer that drives reloads.
type ReloadConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a ReloadConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *ReloadConsumer {
	return &ReloadConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "reload-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (rc *ReloadConsumer) Start(ctx context.Context) error {
	rc.logger.Info("reload consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that reloads r for every
// index event. Empty builds write no tables and are ignored.
func HandleMessage(r Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[indexer.IndexEvent](value)
		if err != nil {
			logger.Error("failed to decode index event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if event.Source == indexer.SourceEmpty || event.Documents == 0 {
			logger.Debug("ignoring empty index event", "built_at", event.BuiltAt)
			return nil
		}

		status, err := r.Reload(ctx)
		if err != nil {
			return fmt.Errorf("reloading index after %s build: %w", event.Source, err)
		}
		logger.Info("index reloaded",
			"event_documents", event.Documents,
			"documents", status.Documents,
			"source", status.Source,
		)
		return nil
	}
}
