package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
)

// KafkaPublisher sends events to a single topic keyed by student id, so the
// events of one student stay ordered within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, ProducerConfig())
	if err != nil {
		return nil, err
	}

	logger.Info("kafka publisher initialized", "brokers", brokers, "topic", topic)

	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func ProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	return config
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.StudentID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "event sent to kafka", "topic", p.topic, "partition", partition, "offset", offset, "type", event.Type)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
