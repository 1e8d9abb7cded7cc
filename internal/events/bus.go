// StaySpot Realtime - Marketplace Messaging and Notification Client
// Copyright 2026 ashika557
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashika557/stayspot-realtime

package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Bus is an in-process pub/sub fabric built on watermill's gochannel
// transport. All daemon components share a single Bus; it carries no
// persistence and drops nothing as long as subscribers keep draining.
type Bus struct {
	pubsub *gochannel.GoChannel

	mu     sync.RWMutex
	closed bool
}

// NewBus creates the shared event bus. Subscribers registered after a
// publish do not see earlier messages.
func NewBus() *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			// Enough headroom that a briefly stalled subscriber does not
			// block the socket read loop.
			OutputChannelBuffer: 256,
		},
		NewLoggerAdapter(),
	)
	return &Bus{pubsub: pubsub}
}

// Publish JSON-encodes payload and publishes it to topic. Returns an
// error after Close.
func (b *Bus) Publish(topic string, payload any) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event for topic %s: %w", topic, err)
	}

	msg := message.NewMessage(uuid.New().String(), data)
	if err := b.pubsub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish to topic %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns a channel of raw watermill messages for topic. The
// channel closes when ctx is cancelled or the bus is closed. Callers
// must Ack or Nack every message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	return b.pubsub.Subscribe(ctx, topic)
}

// Close shuts the bus down. Publishing after Close fails; subscriber
// channels are closed. Close is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.pubsub.Close()
}

// Decode unmarshals a bus message payload into T and acks the message.
// On decode failure the message is still acked; a malformed in-process
// event can never become valid on redelivery.
func Decode[T any](msg *message.Message) (T, error) {
	var payload T
	err := json.Unmarshal(msg.Payload, &payload)
	msg.Ack()
	if err != nil {
		return payload, fmt.Errorf("decode event %s: %w", msg.UUID, err)
	}
	return payload, nil
}
