package indexer

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search100/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/resilience"
)

// IndexEvent is published after every successful build.
type IndexEvent struct {
	Source     Source    `json:"source"`
	Documents  int       `json:"documents"`
	Terms      int       `json:"terms"`
	Skipped    int       `json:"skipped"`
	DurationMs int64     `json:"duration_ms"`
	BuiltAt    time.Time `json:"built_at"`
}

// Publisher sends events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// EventNotifier turns build statuses into IndexEvents on a Publisher.
type EventNotifier struct {
	publisher Publisher
	key       string
	// Retry governs redelivery of a failed publish.
	Retry resilience.RetryConfig
}

// NewEventNotifier publishes with key as the partition key, so every event
// of one corpus lands on the same partition in order.
func NewEventNotifier(p Publisher, key string) *EventNotifier {
	return &EventNotifier{publisher: p, key: key, Retry: resilience.DefaultRetryConfig()}
}

func (n *EventNotifier) NotifyIndexed(ctx context.Context, status Status) error {
	event := kafka.Event{
		Key: n.key,
		Value: IndexEvent{
			Source:     status.Source,
			Documents:  status.Documents,
			Terms:      status.Terms,
			Skipped:    len(status.SkippedFiles),
			DurationMs: status.Duration.Milliseconds(),
			BuiltAt:    status.BuiltAt,
		},
	}
	return resilience.Retry(ctx, "publish index event", n.Retry, func(ctx context.Context) error {
		return n.publisher.Publish(ctx, event)
	})
}
