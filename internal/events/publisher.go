package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Type names a procurement lifecycle event.
type Type string

const (
	RFPSubmitted         Type = "rfp.submitted"
	RFPCancelled         Type = "rfp.cancelled"
	QuotationSaved       Type = "quotation.saved"
	PurchaseOrderCreated Type = "purchase_order.created"
	PurchaseOrderPaid    Type = "purchase_order.paid"
)

// Event is the envelope written to the topic.
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Key       string            `json:"key"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher emits lifecycle events. Key is the aggregate id and decides the partition.
type Publisher interface {
	Publish(ctx context.Context, eventType Type, key string, payload any) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to a single Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(writer, topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With().Str("component", "events").Str("topic", topic).Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType Type, key string, payload any) error {
	event, err := newEvent(eventType, key, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("event_type", string(eventType)).
			Str("key", key).
			Msg("failed to publish event")
		return err
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("event_type", string(eventType)).
		Str("key", key).
		Msg("event published")
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func newEvent(eventType Type, key string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Key:       key,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Type, string, any) error { return nil }
func (Nop) Close() error                                     { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, eventType Type, key string, payload any) error {
	event, err := newEvent(eventType, key, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, *event)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of what has been published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of every recorded event in order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	out := make([]Type, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}
