package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification types.
const (
	TypeMessage            = "MESSAGE"
	TypeCareUpdate         = "CARE_UPDATE"
	TypeEmergencyAlert     = "EMERGENCY_ALERT"
	TypeSystemAnnouncement = "SYSTEM_ANNOUNCEMENT"
	TypeFamilyActivity     = "FAMILY_ACTIVITY"
)

func ValidType(t string) bool {
	switch t {
	case TypeMessage, TypeCareUpdate, TypeEmergencyAlert, TypeSystemAnnouncement, TypeFamilyActivity:
		return true
	}
	return false
}

// Notification represents the notifications table. Rows are created once by
// the dispatcher and only ever mutated by mark-read; expiry is logical.
type Notification struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	RecipientID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Type         string    `gorm:"type:varchar(32);not null"`
	Title        string    `gorm:"type:varchar(255);not null"`
	Message      string    `gorm:"type:text"`
	IsActionable bool      `gorm:"default:false"`
	ActionURL    sql.NullString
	ExpiresAt    sql.NullTime
	IsRead       bool `gorm:"default:false;index"`
	ReadAt       sql.NullTime
	CreatedAt    time.Time
}

// Expired reports whether the notification has logically expired.
func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt.Valid && n.ExpiresAt.Time.Before(now)
}

// Delivery outcomes.
const (
	DeliveryDelivered = "DELIVERED"
	DeliveryPolled    = "POLLED"
	DeliveryFailed    = "FAILED"
	DeliveryPending   = "PENDING"
)

// DeliveryLog is append-only: one row per delivery attempt, written once at
// dispatch time. The poll endpoint flips PENDING rows to POLLED; nothing
// else mutates a row after creation.
type DeliveryLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	NotificationID uuid.UUID `gorm:"type:uuid;not null;index"`
	RecipientID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Status         string    `gorm:"type:varchar(16);not null;index"`
	WasConnected   bool
	ConnectionID   sql.NullString
	LatencyMs      sql.NullInt64
	Error          sql.NullString
	CreatedAt      time.Time `gorm:"index"`
	DeliveredAt    sql.NullTime
}

func (Notification) TableName() string {
	return "notifications"
}

func (DeliveryLog) TableName() string {
	return "delivery_logs"
}
