package services

import (
	"context"
	"errors"

	"carelink/internal/domain/conversation"
	"carelink/internal/domain/user"
	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl answers membership and role questions for the messaging
// core. Conversation-type creation rules:
//
//	ANNOUNCEMENT  admin only
//	FAMILY_CHAT   admin/volunteer for any family; member only for own family
//	DIRECT        any authenticated user
//	CARE_UPDATE   admin/volunteer
type AccessControl struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
}

func NewAccessControl(conversations repository.ConversationRepository, users repository.UserRepository) *AccessControl {
	return &AccessControl{conversations: conversations, users: users}
}

// CanCreateConversation enforces the per-type creation policy.
func (a *AccessControl) CanCreateConversation(ctx context.Context, creatorID uuid.UUID, role, convType string, familyID uuid.NullUUID) error {
	switch convType {
	case conversation.TypeAnnouncement:
		if role != user.RoleAdmin {
			return care_errors.ErrForbidden
		}
	case conversation.TypeCareUpdate:
		if role != user.RoleAdmin && role != user.RoleVolunteer {
			return care_errors.ErrForbidden
		}
	case conversation.TypeFamilyChat:
		if !familyID.Valid {
			return care_errors.ErrInvalidInput
		}
		if role == user.RoleAdmin || role == user.RoleVolunteer {
			return nil
		}
		creator, err := a.users.GetByID(ctx, creatorID)
		if err != nil {
			return err
		}
		if !creator.FamilyID.Valid || creator.FamilyID.UUID != familyID.UUID {
			return care_errors.ErrForbidden
		}
	case conversation.TypeDirect:
		// Any authenticated user.
	default:
		return care_errors.ErrInvalidInput
	}
	return nil
}

// activeParticipant fetches the participant row and treats left rows as absent.
func (a *AccessControl) activeParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	p, err := a.conversations.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return conversation.Participant{}, err
	}
	if !p.Active() {
		return conversation.Participant{}, care_errors.ErrNotFound
	}
	return p, nil
}

// EnsureParticipant fails with ErrForbidden unless the user is an active participant.
func (a *AccessControl) EnsureParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	_, err := a.activeParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, care_errors.ErrNotFound) {
			return care_errors.ErrForbidden
		}
		return err
	}
	return nil
}

// EnsureCanWrite requires an active participant row with can_write.
func (a *AccessControl) EnsureCanWrite(ctx context.Context, conversationID, userID uuid.UUID) error {
	p, err := a.activeParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, care_errors.ErrNotFound) {
			return care_errors.ErrForbidden
		}
		return err
	}
	if !p.CanWrite {
		return care_errors.ErrForbidden
	}
	return nil
}

// EnsureCanManage requires an active participant row with can_manage.
// Admins manage any conversation.
func (a *AccessControl) EnsureCanManage(ctx context.Context, conversationID, userID uuid.UUID, role string) error {
	if role == user.RoleAdmin {
		return nil
	}
	p, err := a.activeParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, care_errors.ErrNotFound) {
			return care_errors.ErrForbidden
		}
		return err
	}
	if !p.CanManage {
		return care_errors.ErrForbidden
	}
	return nil
}
