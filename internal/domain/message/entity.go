package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeletedTombstone replaces the content of soft-deleted messages.
const DeletedTombstone = "This message has been deleted"

// Message represents the messages table
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null"`
	Content        string    `gorm:"type:text"`
	ReplyToID      uuid.NullUUID `gorm:"type:uuid"`
	Attachments    Attachments   `gorm:"type:jsonb"`
	Reactions      Reactions     `gorm:"type:jsonb"`
	IsEdited       bool          `gorm:"default:false"`
	EditedAt       sql.NullTime
	IsDeleted      bool `gorm:"default:false;index"`
	DeletedAt      sql.NullTime
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// Delivery statuses for UserStatus rows.
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
)

// UserStatus represents the message_user_statuses table: one row per active
// participant (sender excluded) snapshotted at message-creation time.
// Participants who join later do not get rows for older messages.
type UserStatus struct {
	MessageID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_status_user"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_status_user"`
	Status         string    `gorm:"type:varchar(16);not null"`
	ReadAt         sql.NullTime
	UpdatedAt      time.Time
}

func (Message) TableName() string {
	return "messages"
}

func (UserStatus) TableName() string {
	return "message_user_statuses"
}
