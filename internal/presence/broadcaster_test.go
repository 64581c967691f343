package presence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"carelink/internal/domain/conversation"
	"carelink/internal/events"
	"carelink/internal/registry"
	care_errors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

type sinkEvent struct {
	channel string
	exclude string
	payload []byte
}

type recordingSink struct {
	events []sinkEvent
}

func (s *recordingSink) Broadcast(channel string, payload []byte) {
	s.events = append(s.events, sinkEvent{channel: channel, payload: payload})
}

func (s *recordingSink) BroadcastToUserExcept(channel, excludeUserID string, payload []byte) {
	s.events = append(s.events, sinkEvent{channel: channel, exclude: excludeUserID, payload: payload})
}

// stubConvRepo backs the broadcaster with a single conversation's membership.
type stubConvRepo struct {
	convID       uuid.UUID
	participants []conversation.Participant
}

func (s *stubConvRepo) Create(ctx context.Context, c *conversation.Conversation, participants []conversation.Participant) error {
	return nil
}

func (s *stubConvRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	if id != s.convID {
		return conversation.Conversation{}, care_errors.ErrNotFound
	}
	return conversation.Conversation{ID: s.convID, IsActive: true}, nil
}

func (s *stubConvRepo) GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	return conversation.Conversation{}, care_errors.ErrNotFound
}

func (s *stubConvRepo) Update(ctx context.Context, c conversation.Conversation) error { return nil }

func (s *stubConvRepo) TouchUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

func (s *stubConvRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, convType string, page, limit int) ([]conversation.Conversation, int64, error) {
	for _, p := range s.participants {
		if p.UserID == userID && p.Active() {
			return []conversation.Conversation{{ID: s.convID}}, 1, nil
		}
	}
	return nil, 0, nil
}

func (s *stubConvRepo) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	return nil
}

func (s *stubConvRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	for _, p := range s.participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return conversation.Participant{}, care_errors.ErrNotFound
}

func (s *stubConvRepo) UpdateParticipant(ctx context.Context, p conversation.Participant) error {
	return nil
}

func (s *stubConvRepo) GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var out []conversation.Participant
	for _, p := range s.participants {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubConvRepo) SetParticipantLeft(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	return nil
}

func TestBroadcastTyping(t *testing.T) {
	convID := uuid.New()
	typist := uuid.New()
	peer := uuid.New()
	repo := &stubConvRepo{
		convID: convID,
		participants: []conversation.Participant{
			{ConversationID: convID, UserID: typist},
			{ConversationID: convID, UserID: peer},
		},
	}
	sink := &recordingSink{}
	b := NewBroadcaster(sink, registry.New(time.Minute), repo, nil, logger.NewNop())

	if err := b.BroadcastTyping(context.Background(), convID, typist, "Alice", true); err != nil {
		t.Fatalf("broadcast typing: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("sink events = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.channel != events.ConversationChannel(convID.String()) {
		t.Fatalf("channel = %s", ev.channel)
	}
	if ev.exclude != typist.String() {
		t.Fatalf("typist not excluded: %s", ev.exclude)
	}

	var envelope events.Envelope
	if err := json.Unmarshal(ev.payload, &envelope); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if envelope.Type != events.TypeTyping {
		t.Fatalf("event type = %s", envelope.Type)
	}
}

func TestBroadcastTypingRequiresMembership(t *testing.T) {
	convID := uuid.New()
	left := uuid.New()
	repo := &stubConvRepo{
		convID: convID,
		participants: []conversation.Participant{
			{ConversationID: convID, UserID: left, LeftAt: leftAt()},
		},
	}
	sink := &recordingSink{}
	b := NewBroadcaster(sink, registry.New(time.Minute), repo, nil, logger.NewNop())

	err := b.BroadcastTyping(context.Background(), convID, uuid.New(), "Ghost", true)
	if !errors.Is(err, care_errors.ErrNotFound) {
		t.Fatalf("outsider: got %v, want ErrNotFound", err)
	}

	err = b.BroadcastTyping(context.Background(), convID, left, "Gone", true)
	if !errors.Is(err, care_errors.ErrForbidden) {
		t.Fatalf("left participant: got %v, want ErrForbidden", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("events leaked: %d", len(sink.events))
	}
}

func TestConnectedParticipants(t *testing.T) {
	convID := uuid.New()
	online := uuid.New()
	offline := uuid.New()
	repo := &stubConvRepo{
		convID: convID,
		participants: []conversation.Participant{
			{ConversationID: convID, UserID: online},
			{ConversationID: convID, UserID: offline},
		},
	}
	reg := registry.New(time.Minute)
	reg.Register(online)
	b := NewBroadcaster(&recordingSink{}, reg, repo, nil, logger.NewNop())

	got, err := b.ConnectedParticipants(context.Background(), convID)
	if err != nil {
		t.Fatalf("connected participants: %v", err)
	}
	if len(got) != 1 || got[0] != online {
		t.Fatalf("got %v, want only the online member", got)
	}
}

func TestNotifyPresenceFansOutToConversations(t *testing.T) {
	convID := uuid.New()
	userID := uuid.New()
	repo := &stubConvRepo{
		convID: convID,
		participants: []conversation.Participant{
			{ConversationID: convID, UserID: userID},
		},
	}
	sink := &recordingSink{}
	b := NewBroadcaster(sink, registry.New(time.Minute), repo, nil, logger.NewNop())

	b.NotifyPresence(context.Background(), userID, true)
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}

	var envelope events.Envelope
	if err := json.Unmarshal(sink.events[0].payload, &envelope); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if envelope.Type != events.TypePresenceOnline {
		t.Fatalf("event type = %s", envelope.Type)
	}
}

func leftAt() sql.NullTime {
	return sql.NullTime{Time: time.Now(), Valid: true}
}
