package nats

import (
	"context"
	"fmt"
	"log"

	"bibleai-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler processes one event; an error asks for redelivery.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber consumes engine events with a durable consumer.
type Subscriber struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	consumes []jetstream.ConsumeContext
}

func NewSubscriber(url string) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js}, nil
}

// Subscribe registers handler for an event type. Undecodable messages are terminated, not redelivered.
func (s *Subscriber) Subscribe(ctx context.Context, eventType, durableName string, handler EventHandler) error {
	if _, err := s.js.CreateOrUpdateStream(ctx, StreamConfig()); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: Subject(eventType),
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		handle(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.consumes = append(s.consumes, cc)

	log.Printf("Subscribed to %s with durable %s", Subject(eventType), durableName)
	return nil
}

// acker is the slice of jetstream.Msg that handle needs
type acker interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
	Term() error
}

func handle(ctx context.Context, msg acker, handler EventHandler) {
	event, err := events.Decode(msg.Data())
	if err != nil {
		log.Printf("Error decoding event on %s: %v", msg.Subject(), err)
		_ = msg.Term()
		return
	}

	if err := handler(ctx, event); err != nil {
		log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// Close stops the consumers and closes the connection.
func (s *Subscriber) Close() {
	for _, cc := range s.consumes {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
