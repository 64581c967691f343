package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carelink/internal/domain/conversation"
	"carelink/internal/domain/message"
	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

// MessageNotifier receives the post-commit hook for new messages. Delivery
// failures inside it never surface to the sender; the message is already
// durably stored by the time it runs.
type MessageNotifier interface {
	MessageCreated(ctx context.Context, conv conversation.Conversation, msg message.Message, recipients []uuid.UUID)
}

type MessageService struct {
	repo     repository.MessageRepository
	convRepo repository.ConversationRepository
	access   *AccessControl
	notifier MessageNotifier
	log      *logger.Logger
	clock    func() time.Time
}

func NewMessageService(repo repository.MessageRepository, convRepo repository.ConversationRepository, access *AccessControl, notifier MessageNotifier, log *logger.Logger) *MessageService {
	return &MessageService{
		repo:     repo,
		convRepo: convRepo,
		access:   access,
		notifier: notifier,
		log:      log,
		clock:    time.Now,
	}
}

type CreateMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	ReplyToID      uuid.NullUUID
	Attachments    message.Attachments
}

// Create persists the message together with its delivery-status snapshot:
// one SENT row per active participant at creation time, sender excluded
// (so unread counts are just "rows not READ"). Participants joining later
// never get rows for this message. The status rows, the message and the
// conversation updated_at bump commit atomically.
func (s *MessageService) Create(ctx context.Context, in CreateMessageInput) (message.Message, error) {
	if in.Content == "" && len(in.Attachments) == 0 {
		return message.Message{}, care_errors.ErrInvalidInput
	}

	conv, err := s.convRepo.GetByID(ctx, in.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	if !conv.IsActive {
		return message.Message{}, care_errors.ErrInvalidState
	}
	if err := s.access.EnsureCanWrite(ctx, in.ConversationID, in.SenderID); err != nil {
		return message.Message{}, err
	}

	if in.ReplyToID.Valid {
		parent, err := s.repo.GetByID(ctx, in.ReplyToID.UUID)
		if err != nil {
			return message.Message{}, err
		}
		if parent.ConversationID != in.ConversationID {
			return message.Message{}, care_errors.ErrInvalidInput
		}
	}

	participants, err := s.convRepo.GetActiveParticipants(ctx, in.ConversationID)
	if err != nil {
		return message.Message{}, err
	}

	now := s.clock()
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		ReplyToID:      in.ReplyToID,
		Attachments:    in.Attachments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	statuses := make([]message.UserStatus, 0, len(participants))
	recipients := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.UserID == in.SenderID {
			continue
		}
		statuses = append(statuses, message.UserStatus{
			UserID:    p.UserID,
			Status:    message.StatusSent,
			UpdatedAt: now,
		})
		recipients = append(recipients, p.UserID)
	}

	if err := s.repo.Create(ctx, &msg, statuses); err != nil {
		return message.Message{}, err
	}

	if s.notifier != nil {
		s.notifier.MessageCreated(ctx, conv, msg, recipients)
	}

	return msg, nil
}

// GetForConversation lists non-deleted messages, optionally filtered by a
// case-insensitive substring. Non-participants get ErrNotFound.
func (s *MessageService) GetForConversation(ctx context.Context, conversationID, callerID uuid.UUID, textFilter string, page, limit int) ([]message.Message, int64, error) {
	if err := s.access.EnsureParticipant(ctx, conversationID, callerID); err != nil {
		if errors.Is(err, care_errors.ErrForbidden) {
			return nil, 0, care_errors.ErrNotFound
		}
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return s.repo.GetConversationMessages(ctx, conversationID, textFilter, page, limit)
}

// Edit updates a message's content. Only the sender may edit, and a
// soft-deleted message cannot be edited.
func (s *MessageService) Edit(ctx context.Context, messageID, callerID uuid.UUID, content string) (message.Message, error) {
	if content == "" {
		return message.Message{}, care_errors.ErrInvalidInput
	}
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.SenderID != callerID {
		return message.Message{}, care_errors.ErrForbidden
	}
	if msg.IsDeleted {
		return message.Message{}, care_errors.ErrInvalidState
	}

	now := s.clock()
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = nullTime(now)
	msg.UpdatedAt = now
	if err := s.repo.Update(ctx, msg); err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

// Delete is soft: content is replaced with the tombstone, the row stays.
// The sender or a managing participant may delete.
func (s *MessageService) Delete(ctx context.Context, messageID, callerID uuid.UUID, callerRole string) error {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.IsDeleted {
		return nil
	}
	if msg.SenderID != callerID {
		if err := s.access.EnsureCanManage(ctx, msg.ConversationID, callerID, callerRole); err != nil {
			return err
		}
	}

	now := s.clock()
	msg.Content = message.DeletedTombstone
	msg.IsDeleted = true
	msg.DeletedAt = nullTime(now)
	msg.UpdatedAt = now
	return s.repo.Update(ctx, msg)
}

// MarkRead upserts the caller's status row to READ. Idempotent: a repeat
// call keeps the original read_at.
func (s *MessageService) MarkRead(ctx context.Context, messageID, userID uuid.UUID) error {
	if _, err := s.repo.GetStatus(ctx, messageID, userID); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, messageID, userID, s.clock())
}

// MarkAllRead flips every unread status row the user has in a conversation.
func (s *MessageService) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.access.EnsureParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	return s.repo.MarkAllRead(ctx, conversationID, userID, s.clock())
}

// UnreadCount counts the user's status rows that are not READ. The sender
// never has a row for their own messages, so no sender filter is needed.
func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, conversationID, userID)
}

// AddReaction records (emoji, user) at most once. Reacting to a deleted
// message is rejected.
func (s *MessageService) AddReaction(ctx context.Context, messageID, callerID uuid.UUID, callerName, emoji string) (message.Message, error) {
	if emoji == "" {
		return message.Message{}, care_errors.ErrInvalidInput
	}
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.IsDeleted {
		return message.Message{}, care_errors.ErrInvalidState
	}
	if err := s.access.EnsureParticipant(ctx, msg.ConversationID, callerID); err != nil {
		return message.Message{}, err
	}

	if !msg.Reactions.Add(emoji, callerID, callerName, s.clock()) {
		return msg, nil
	}
	msg.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, msg); err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

// RemoveReaction deletes the caller's reaction; removing the last one for
// an emoji drops the emoji key entirely.
func (s *MessageService) RemoveReaction(ctx context.Context, messageID, callerID uuid.UUID, emoji string) (message.Message, error) {
	msg, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if msg.IsDeleted {
		return message.Message{}, care_errors.ErrInvalidState
	}
	if err := s.access.EnsureParticipant(ctx, msg.ConversationID, callerID); err != nil {
		return message.Message{}, err
	}

	if !msg.Reactions.Remove(emoji, callerID) {
		return msg, nil
	}
	msg.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, msg); err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}
