package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/marketlens/marketlens/internal/models"
)

// Publisher emits usage events to the conversion-tracking pipeline.
type Publisher interface {
	Publish(ctx context.Context, event models.UsageEvent) error
}

// KafkaPublisher writes usage events to a Kafka topic.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.UsageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal usage event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.UserID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish usage event: %w", err)
	}
	return nil
}

// MockPublisher records events for testing.
type MockPublisher struct {
	mu     sync.Mutex
	Events []models.UsageEvent
}

func (m *MockPublisher) Publish(ctx context.Context, event models.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}
