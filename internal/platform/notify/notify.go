// Package notify publishes fusion run lifecycle events to Kafka so
// downstream consumers (report builders, registry exports) can react to
// fresh timelines without polling. Publishing is best-effort: a nil
// *RunNotifier is a valid receiver and drops every message.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const eventTypeRunCompleted = "fusion.run.completed"

// RunCompleted is the message body published after a fusion run finishes.
type RunCompleted struct {
	RunID          uuid.UUID `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	PatientsTotal  int       `json:"patients_total"`
	PatientsFused  int       `json:"patients_fused"`
	PatientsFailed int       `json:"patients_failed"`
	EventsEmitted  int       `json:"events_emitted"`
	RowsExcluded   int       `json:"rows_excluded"`
}

// RunNotifier writes run lifecycle messages to a Kafka topic.
type RunNotifier struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// New builds a notifier targeting the given brokers and topic. The writer
// connects lazily on first publish.
func New(brokers []string, topic string, logger zerolog.Logger) *RunNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}

	logger.Info().Strs("brokers", brokers).Str("topic", topic).Msg("run notifier configured")

	return &RunNotifier{
		writer: writer,
		logger: logger,
	}
}

// PublishRunCompleted sends a RunCompleted message keyed by run ID. A nil
// notifier is a no-op.
func (n *RunNotifier) PublishRunCompleted(ctx context.Context, evt RunCompleted) error {
	if n == nil || n.writer == nil {
		return nil
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode run completed event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.RunID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventTypeRunCompleted)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}

	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run completed: %w", err)
	}

	n.logger.Debug().
		Str("run_id", evt.RunID.String()).
		Int("patients_fused", evt.PatientsFused).
		Msg("run completed event published")

	return nil
}

// Close flushes and closes the underlying writer. A nil notifier is a no-op.
func (n *RunNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}
