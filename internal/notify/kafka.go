package notify

import (
	"context"

	"github.com/segmentio/kafka-go"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka writes every event to one topic, keyed by subject.
type Kafka struct {
	w messageWriter
}

// NewKafka creates a synchronous writer. Connections are made on first write.
func NewKafka(cfg config.KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.ConfigError("kafka brokers are required").Build()
	}
	return &Kafka{w: &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (k *Kafka) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := k.w.WriteMessages(ctx, kafka.Message{Key: []byte(subject), Value: payload}); err != nil {
		return errors.NetworkError("failed to publish to Kafka").WithCause(err).WithContext("subject", subject).Build()
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
