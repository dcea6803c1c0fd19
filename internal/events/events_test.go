package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"student-fee-service/internal/config"
	"student-fee-service/internal/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log := logger.Discard()

	t.Run("DefaultsToNop", func(t *testing.T) {
		p, err := New(config.EventsConfig{}, log)
		require.NoError(t, err)
		assert.IsType(t, Nop{}, p)
		assert.NoError(t, p.Publish(context.Background(), Event{Type: StudentCreated}))
		assert.NoError(t, p.Close())
	})

	t.Run("ExplicitNone", func(t *testing.T) {
		p, err := New(config.EventsConfig{Driver: "none"}, log)
		require.NoError(t, err)
		assert.IsType(t, Nop{}, p)
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		_, err := New(config.EventsConfig{Driver: "rabbitmq"}, log)
		assert.ErrorContains(t, err, "rabbitmq")
	})
}

func TestKafkaPublisher(t *testing.T) {
	t.Run("SendsEventKeyedByStudent", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, ProducerConfig())
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != "school.events" {
				return errors.New("unexpected topic " + msg.Topic)
			}
			key, err := msg.Key.Encode()
			if err != nil {
				return err
			}
			if string(key) != "stu-1" {
				return errors.New("unexpected key " + string(key))
			}
			return nil
		})

		p := NewKafkaPublisherWithProducer(producer, "school.events", logger.Discard())
		err := p.Publish(context.Background(), Event{
			Type:       FeeRecorded,
			StudentID:  "stu-1",
			OccurredAt: time.Now(),
		})
		require.NoError(t, err)
		require.NoError(t, p.Close())
	})

	t.Run("PayloadIsJSON", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, ProducerConfig())
		producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var got Event
			if err := json.Unmarshal(val, &got); err != nil {
				return err
			}
			if got.Type != StudentDeleted || got.StudentID != "stu-2" {
				return errors.New("unexpected payload " + string(val))
			}
			return nil
		})

		p := NewKafkaPublisherWithProducer(producer, "school.events", logger.Discard())
		require.NoError(t, p.Publish(context.Background(), Event{Type: StudentDeleted, StudentID: "stu-2"}))
		require.NoError(t, p.Close())
	})

	t.Run("BrokerFailure", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, ProducerConfig())
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		p := NewKafkaPublisherWithProducer(producer, "school.events", logger.Discard())
		err := p.Publish(context.Background(), Event{Type: StudentCreated, StudentID: "stu-3"})
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, p.Close())
	})
}
