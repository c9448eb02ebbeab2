package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"cynergists/internal/platform/kafka"
)

// KafkaSink fans audit entries out to a Kafka topic, keyed by tenant so a
// tenant's history stays ordered within a partition. Delivery is
// fire-and-forget: the durable record is the Store, not the topic.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaSink(producer *kafka.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Publish(_ context.Context, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return s.producer.ProduceAsync(&kafka.Message{
		Topic: s.topic,
		Key:   []byte(entry.TenantID.String()),
		Value: value,
		Headers: map[string]string{
			"event": string(entry.Event),
		},
	})
}
