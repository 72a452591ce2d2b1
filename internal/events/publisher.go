package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Publisher defines the interface for publishing domain events
type Publisher interface {
	Publish(ctx context.Context, event *DomainEvent) error
	Close() error
}

// Bus is an in-process event bus backed by Watermill's gochannel pub/sub.
// When a mirror publisher is configured, every event is also forwarded to it
// so an external broker sees the same stream.
type Bus struct {
	pubsub *gochannel.GoChannel
	mirror message.Publisher
	logger *slog.Logger
	topic  string
}

// BusConfig holds configuration for the event bus
type BusConfig struct {
	Topic  string
	Mirror message.Publisher
	Logger *slog.Logger
}

// NewBus creates the in-process event bus.
func NewBus(config BusConfig) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewSlogLogger(config.Logger),
	)
	return &Bus{
		pubsub: pubsub,
		mirror: config.Mirror,
		logger: config.Logger,
		topic:  config.Topic,
	}
}

// Publish marshals the event and delivers it to all subscribers.
func (b *Bus) Publish(ctx context.Context, event *DomainEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal domain event: %w", err)
	}

	msg := message.NewMessage(event.ID, eventBytes)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format("2006-01-02T15:04:05Z07:00"))

	if err := b.pubsub.Publish(b.topic, msg); err != nil {
		b.logger.Error("Failed to publish domain event",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
		return fmt.Errorf("failed to publish domain event: %w", err)
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(b.topic, message.NewMessage(event.ID, eventBytes)); err != nil {
			// The in-process delivery already succeeded; a broker outage must
			// not fail the originating request.
			b.logger.Error("Failed to mirror domain event to broker",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err)
		}
	}

	b.logger.Debug("Published domain event",
		"event_id", event.ID,
		"event_type", event.Type,
		"topic", b.topic)

	return nil
}

// Subscribe returns the raw message stream for the bus topic.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, b.topic)
}

// Close closes the bus and the mirror publisher, if any.
func (b *Bus) Close() error {
	if b.mirror != nil {
		if err := b.mirror.Close(); err != nil {
			b.logger.Error("Failed to close mirror publisher", "error", err)
		}
	}
	return b.pubsub.Close()
}

// NewKafkaMirror creates a Kafka publisher suitable as a bus mirror.
func NewKafkaMirror(brokers []string, logger *slog.Logger) (message.Publisher, error) {
	publisher, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
	}
	return publisher, nil
}

// DecodeEvent unmarshals a bus message back into the event envelope. The Data
// field decodes as map[string]interface{}; use DecodeEventData for a typed
// payload.
func DecodeEvent(msg *message.Message) (*DomainEvent, error) {
	var event DomainEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode domain event: %w", err)
	}
	return &event, nil
}

// DecodeEventData re-marshals the envelope's Data into the given payload type.
func DecodeEventData(event *DomainEvent, out interface{}) error {
	raw, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to re-marshal event data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}
	return nil
}

// MockPublisher is a mock implementation for testing
type MockPublisher struct {
	Events []DomainEvent
}

// NewMockPublisher creates a new mock event publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Events: make([]DomainEvent, 0)}
}

// Publish stores the event in memory (for testing)
func (m *MockPublisher) Publish(ctx context.Context, event *DomainEvent) error {
	m.Events = append(m.Events, *event)
	return nil
}

// Close is a no-op for the mock publisher
func (m *MockPublisher) Close() error {
	return nil
}

// EventsOfType returns published events matching the given type (for testing)
func (m *MockPublisher) EventsOfType(eventType EventType) []DomainEvent {
	var matched []DomainEvent
	for _, event := range m.Events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// ClearEvents clears all published events (for testing)
func (m *MockPublisher) ClearEvents() {
	m.Events = make([]DomainEvent, 0)
}
