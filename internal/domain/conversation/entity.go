package conversation

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation types.
const (
	TypeDirect       = "DIRECT"
	TypeFamilyChat   = "FAMILY_CHAT"
	TypeAnnouncement = "ANNOUNCEMENT"
	TypeCareUpdate   = "CARE_UPDATE"
)

func ValidType(t string) bool {
	switch t {
	case TypeDirect, TypeFamilyChat, TypeAnnouncement, TypeCareUpdate:
		return true
	}
	return false
}

// Conversation represents the conversations table
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type      string    `gorm:"type:varchar(32);not null;index"`
	Title     sql.NullString
	FamilyID  uuid.NullUUID `gorm:"type:uuid;index"`
	CreatedBy uuid.UUID     `gorm:"type:uuid"`
	IsActive  bool          `gorm:"default:true"`
	// DirectKey is the sorted "<uuid>:<uuid>" pair for DIRECT conversations,
	// NULL otherwise. The unique index on it serializes concurrent
	// first-contact creates; deactivating the conversation nulls it out so
	// the pair can start over.
	DirectKey sql.NullString `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time

	// Relationships
	Participants []Participant
}

// Participant represents the participants table. Rows are never deleted;
// leaving sets LeftAt so history stays auditable.
type Participant struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_participant_user"`
	CanWrite       bool      `gorm:"default:true"`
	CanManage      bool      `gorm:"default:false"`
	JoinedAt       time.Time
	LeftAt         sql.NullTime `gorm:"index:idx_participant_user"`
}

// Active reports whether the participant is currently in the conversation.
func (p Participant) Active() bool {
	return !p.LeftAt.Valid
}

// Permissions is a user's effective permission set in a conversation.
type Permissions struct {
	CanWrite  bool
	CanManage bool
}

// DirectKey builds the unordered-pair key for a DIRECT conversation.
func DirectKey(a, b uuid.UUID) string {
	s1, s2 := a.String(), b.String()
	if strings.Compare(s1, s2) > 0 {
		s1, s2 = s2, s1
	}
	return s1 + ":" + s2
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}
