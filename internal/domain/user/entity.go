package user

import (
	"time"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleAdmin     = "ADMIN"
	RoleVolunteer = "VOLUNTEER"
	RoleMember    = "MEMBER"
)

func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleVolunteer, RoleMember:
		return true
	}
	return false
}

// User is the minimal identity row this core needs: role resolution when the
// claims provider omits the role, display names for typing events, and
// family membership for family fan-outs. Account management lives elsewhere.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName string    `gorm:"type:varchar(255)"`
	Role        string    `gorm:"type:varchar(32);not null;default:'MEMBER'"`
	FamilyID    uuid.NullUUID `gorm:"type:uuid;index"`
	IsActive    bool          `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (User) TableName() string {
	return "users"
}
