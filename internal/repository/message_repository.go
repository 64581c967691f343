package repository

import (
	"context"
	"errors"
	"time"

	"carelink/internal/domain/conversation"
	"carelink/internal/domain/message"
	care_errors "carelink/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message, statuses []message.UserStatus) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		for i := range statuses {
			statuses[i].MessageID = m.ID
			statuses[i].ConversationID = m.ConversationID
			if err := tx.Create(&statuses[i]).Error; err != nil {
				return err
			}
		}
		return tx.Model(&conversation.Conversation{}).
			Where("id = ?", m.ConversationID).
			Update("updated_at", m.CreatedAt).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return care_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, care_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m message.Message) error {
	res := r.db.WithContext(ctx).Save(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return care_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, textFilter string, page, limit int) ([]message.Message, int64, error) {
	var messages []message.Message
	var total int64

	q := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND is_deleted = false", conversationID)
	if textFilter != "" {
		q = q.Where("content ILIKE ?", "%"+textFilter+"%")
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&messages).Error; err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) error {
	// Guarding on status keeps the first read_at; a second call is a no-op.
	return r.db.WithContext(ctx).
		Model(&message.UserStatus{}).
		Where("message_id = ? AND user_id = ? AND status != ?", messageID, userID, message.StatusRead).
		Updates(map[string]interface{}{
			"status":     message.StatusRead,
			"read_at":    at,
			"updated_at": at,
		}).Error
}

func (r *PostgresMessageRepository) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&message.UserStatus{}).
		Where("conversation_id = ? AND user_id = ? AND status != ?", conversationID, userID, message.StatusRead).
		Updates(map[string]interface{}{
			"status":     message.StatusRead,
			"read_at":    at,
			"updated_at": at,
		}).Error
}

func (r *PostgresMessageRepository) GetStatus(ctx context.Context, messageID, userID uuid.UUID) (message.UserStatus, error) {
	var s message.UserStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.UserStatus{}, care_errors.ErrNotFound
		}
		return message.UserStatus{}, err
	}
	return s, nil
}

func (r *PostgresMessageRepository) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&message.UserStatus{}).
		Where("conversation_id = ? AND user_id = ? AND status != ?", conversationID, userID, message.StatusRead).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
