package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"carelink/internal/domain/conversation"
	"carelink/internal/domain/message"
	"carelink/internal/domain/notification"
	"carelink/internal/domain/user"
)

type ConversationRepository interface {
	// Create persists the conversation and its initial participant rows
	// atomically. A DIRECT pair collision maps to ErrAlreadyExists.
	Create(ctx context.Context, c *conversation.Conversation, participants []conversation.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error)
	Update(ctx context.Context, c conversation.Conversation) error
	TouchUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error

	// GetUserConversations returns conversations where the user has an
	// active (left_at IS NULL) participant row, most recently updated first.
	GetUserConversations(ctx context.Context, userID uuid.UUID, convType string, page, limit int) ([]conversation.Conversation, int64, error)

	AddParticipant(ctx context.Context, p *conversation.Participant) error
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	UpdateParticipant(ctx context.Context, p conversation.Participant) error
	GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error)
	SetParticipantLeft(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	// Create persists the message, its per-recipient status snapshot and the
	// conversation updated_at bump in one transaction.
	Create(ctx context.Context, m *message.Message, statuses []message.UserStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Update(ctx context.Context, m message.Message) error

	GetConversationMessages(ctx context.Context, conversationID uuid.UUID, textFilter string, page, limit int) ([]message.Message, int64, error)

	// MarkRead flips one status row to READ; already-READ rows keep their
	// original read_at. MarkAllRead does the same for every non-READ row the
	// user has in the conversation.
	MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
	GetStatus(ctx context.Context, messageID, userID uuid.UUID) (message.UserStatus, error)
	UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error)
	ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, now time.Time, page, limit int) ([]notification.Notification, int64, error)
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) error

	CreateDeliveryLog(ctx context.Context, l *notification.DeliveryLog) error
	// MarkPendingPolled flips the recipient's PENDING delivery rows to POLLED.
	MarkPendingPolled(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error)
	DeliveryStats(ctx context.Context, since time.Time) (notification.DeliveryStats, error)
	DeleteDeliveryLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetFamilyMembers(ctx context.Context, familyID uuid.UUID) ([]user.User, error)
}
