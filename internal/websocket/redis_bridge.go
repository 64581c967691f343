package websocket

import (
	"context"

	"carelink/internal/events"
)

// RedisBridge re-broadcasts events published by peer processes into the
// local hub, so a horizontally scaled deployment delivers to every socket
// regardless of which process handled the originating request.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context, patterns []string) error {
	return b.subscriber.Subscribe(ctx, patterns, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
