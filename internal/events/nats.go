package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes each event on <prefix>.<event type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

func NewNATSPublisher(url, subjectPrefix string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("student-fee-service"))
	if err != nil {
		return nil, err
	}

	if subjectPrefix == "" {
		subjectPrefix = "school"
	}

	logger.Info("NATS publisher initialized", "url", url, "subject_prefix", subjectPrefix)

	return &NATSPublisher{
		conn:   nc,
		prefix: subjectPrefix,
		logger: logger,
	}, nil
}

func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	subject := p.Subject(event.Type)
	if err := p.conn.Publish(subject, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "event published to NATS", "subject", subject, "student_id", event.StudentID)
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
