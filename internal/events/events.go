package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicUsers    = "user_events"
	TopicCart     = "cart_events"
	TopicProducts = "product_events"
	TopicOrders   = "order_events"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}); err != nil {
		return fmt.Errorf("kafka: write to %s failed: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, any) error { return nil }

type Message struct {
	Topic string
	Key   string
	Event map[string]any
}

// Memory keeps published events in order; tests read them back with Messages.
type Memory struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (m *Memory) Publish(_ context.Context, topic, key string, event any) error {
	if m.Err != nil {
		return m.Err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, Message{Topic: topic, Key: key, Event: decoded})
	return nil
}

func (m *Memory) Messages(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Message
	for _, msg := range m.msgs {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Memory) Last(topic string) (Message, bool) {
	msgs := m.Messages(topic)
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}
