// Package broker carries accepted chat messages from the writer to every
// hub that fans them out, in acceptance order.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/synapse/internal/model"
)

// Broker publishes accepted messages and delivers them to subscribers.
type Broker interface {
	Publish(ctx context.Context, payload model.ChatMessage) error
	Subscribe(ctx context.Context, receiveMsg chan<- model.ChatMessage) error
}

// JetStream is a Broker backed by a NATS JetStream stream.
type JetStream struct {
	js     jetstream.JetStream
	stream jetstream.Stream
}

// NewJetStream creates or updates the message stream and returns a broker
// over it.
func NewJetStream(ctx context.Context, js jetstream.JetStream) (*JetStream, error) {
	if js == nil {
		return nil, errors.New("jetstream interface is nil")
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectAllRooms},
		MaxBytes: 1 << 30, // 1GB max storage
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &JetStream{js: js, stream: stream}, nil
}

func (b *JetStream) Publish(ctx context.Context, payload model.ChatMessage) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not encode payload to JSON: %w", err)
	}

	subject := SubjectRoom(payload.RoomID)
	_, err = b.js.Publish(ctx,
		subject,
		p,
		jetstream.WithMsgID(uuid.NewString()),
	)
	if err != nil {
		return fmt.Errorf("failed to publish to stream [%s]: %w", subject, err)
	}

	return nil
}

// Subscribe starts an ordered consumer that only sees messages published
// from now on. It stops when ctx is done.
func (b *JetStream) Subscribe(ctx context.Context, receiveMsg chan<- model.ChatMessage) error {
	consumer, err := b.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectAllRooms},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create ordered consumer: %w", err)
	}

	consumeHandler := func(msg jetstream.Msg) {
		var payload model.ChatMessage

		if err := json.Unmarshal(msg.Data(), &payload); err != nil {
			log.Printf("could not decode payload: %v", err)
			return
		}

		select {
		case receiveMsg <- payload:
		case <-ctx.Done():
		}
	}

	optErrHandler := jetstream.ConsumeErrHandler(func(cc jetstream.ConsumeContext, err error) {
		log.Printf("consumer error: %v", err)
	})

	consumeCtx, err := consumer.Consume(consumeHandler, optErrHandler)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Drain()
	}()

	return nil
}
