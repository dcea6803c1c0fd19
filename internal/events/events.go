package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"student-fee-service/internal/config"
)

const (
	StudentCreated = "student.created"
	StudentUpdated = "student.updated"
	StudentDeleted = "student.deleted"
	FeeRecorded    = "fee.recorded"
	FeeUpdated     = "fee.updated"
)

// Event is the payload published after a committed change.
type Event struct {
	Type        string      `json:"type"`
	StudentID   string      `json:"studentId"`
	FeeRecordID string      `json:"feeRecordId,omitempty"`
	OccurredAt  time.Time   `json:"occurredAt"`
	Data        interface{} `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// New builds the publisher selected by cfg.Driver.
func New(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		logger.Info("event publishing disabled")
		return Nop{}, nil
	case "nats":
		return NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
