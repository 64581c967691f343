package presence

import (
	"context"

	"carelink/internal/events"
	"carelink/internal/registry"
	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

// PeerSink is the local fan-out surface (the websocket hub).
type PeerSink interface {
	Broadcast(channel string, payload []byte)
	BroadcastToUserExcept(channel, excludeUserID string, payload []byte)
}

// TypingEvent is the ephemeral payload peers receive. Nothing here is
// persisted; a typing event that misses its window is simply lost.
type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	IsTyping       bool   `json:"is_typing"`
}

// PresenceEvent announces online/offline transitions to conversation peers.
type PresenceEvent struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// Broadcaster pushes typing and online-status events to connected peers.
// Delivery is fire-and-forget: no retry, no persistence, no guarantee.
type Broadcaster struct {
	sink      PeerSink
	registry  *registry.Registry
	convRepo  repository.ConversationRepository
	publisher events.Publisher
	log       *logger.Logger
}

func NewBroadcaster(sink PeerSink, reg *registry.Registry, convRepo repository.ConversationRepository, publisher events.Publisher, log *logger.Logger) *Broadcaster {
	return &Broadcaster{sink: sink, registry: reg, convRepo: convRepo, publisher: publisher, log: log}
}

// BroadcastTyping pushes a typing on/off event to the other connected
// participants. Only membership failures surface; delivery never does.
func (b *Broadcaster) BroadcastTyping(ctx context.Context, conversationID, userID uuid.UUID, displayName string, isTyping bool) error {
	p, err := b.convRepo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !p.Active() {
		return care_errors.ErrForbidden
	}

	payload, err := events.Encode(events.TypeTyping, conversationID.String(), userID.String(), TypingEvent{
		ConversationID: conversationID.String(),
		UserID:         userID.String(),
		DisplayName:    displayName,
		IsTyping:       isTyping,
	})
	if err != nil {
		return err
	}

	channel := events.ConversationChannel(conversationID.String())
	b.sink.BroadcastToUserExcept(channel, userID.String(), payload)
	b.publish(ctx, channel, payload)
	return nil
}

// ConnectedParticipants answers the presence endpoint: which of the
// conversation's active participants are online right now.
func (b *Broadcaster) ConnectedParticipants(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	participants, err := b.convRepo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return b.registry.ConnectedAmong(ids), nil
}

// NotifyPresence announces an online/offline transition on the channels of
// the user's conversations.
func (b *Broadcaster) NotifyPresence(ctx context.Context, userID uuid.UUID, online bool) {
	eventType := events.TypePresenceOffline
	if online {
		eventType = events.TypePresenceOnline
	}

	conversations, _, err := b.convRepo.GetUserConversations(ctx, userID, "", 1, 100)
	if err != nil {
		b.log.Warnf("presence: listing conversations for %s failed: %v", userID, err)
		return
	}

	for _, conv := range conversations {
		payload, err := events.Encode(eventType, conv.ID.String(), userID.String(), PresenceEvent{
			UserID: userID.String(),
			Online: online,
		})
		if err != nil {
			continue
		}
		channel := events.ConversationChannel(conv.ID.String())
		b.sink.BroadcastToUserExcept(channel, userID.String(), payload)
		b.publish(ctx, channel, payload)
	}
}

func (b *Broadcaster) publish(ctx context.Context, channel string, payload []byte) {
	if b.publisher == nil {
		return
	}
	if err := b.publisher.Publish(ctx, channel, payload); err != nil {
		b.log.Warnf("presence: bus publish on %s failed: %v", channel, err)
	}
}
