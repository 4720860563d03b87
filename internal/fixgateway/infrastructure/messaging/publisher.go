// Package messaging publishes fixgateway domain events to Kafka.
package messaging

import (
	"context"

	"github.com/google/uuid"
	"github.com/wyfcoding/fixsession/pkg/mq"
)

// KafkaEventPublisher implements application.EventPublisher on top of
// pkg/mq's producer wrapper. Events are keyed by the caller's key (the
// application service passes the session ID); only an event published
// with an empty key gets a fresh uuid, mirroring the teacher's use of
// uuid for request correlation in pkg/middleware.
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// Publish sends event as JSON to topic, using key if non-empty or a
// fresh uuid otherwise so every Kafka record still carries a partition
// key even for session-less events.
func (p *KafkaEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	if key == "" {
		key = uuid.New().String()
	}
	return p.producer.SendMessage(ctx, topic, key, event)
}
