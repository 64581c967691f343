package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"carelink/internal/domain/conversation"
	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

type ConversationService struct {
	repo   repository.ConversationRepository
	access *AccessControl
	log    *logger.Logger
	clock  func() time.Time
}

func NewConversationService(repo repository.ConversationRepository, access *AccessControl, log *logger.Logger) *ConversationService {
	return &ConversationService{repo: repo, access: access, log: log, clock: time.Now}
}

type CreateConversationInput struct {
	Type           string
	Title          string
	FamilyID       uuid.NullUUID
	CreatorID      uuid.UUID
	CreatorRole    string
	ParticipantIDs []uuid.UUID
}

// Create validates the per-type policy and persists the conversation with
// its initial participants. DIRECT creation is idempotent per unordered
// pair: a second create returns the existing conversation, and a concurrent
// create loses the unique-index race and re-fetches the winner's row.
//
// A DIRECT request whose two participants do not include the creator is
// rejected rather than silently rewritten.
func (s *ConversationService) Create(ctx context.Context, in CreateConversationInput) (conversation.Conversation, error) {
	if !conversation.ValidType(in.Type) {
		return conversation.Conversation{}, care_errors.ErrInvalidInput
	}

	participantIDs := dedupeIDs(in.ParticipantIDs)
	if len(participantIDs) == 0 {
		return conversation.Conversation{}, care_errors.ErrInvalidInput
	}

	if err := s.access.CanCreateConversation(ctx, in.CreatorID, in.CreatorRole, in.Type, in.FamilyID); err != nil {
		return conversation.Conversation{}, err
	}

	if in.Type == conversation.TypeDirect {
		return s.createDirect(ctx, in, participantIDs)
	}

	now := s.clock()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      in.Type,
		Title:     nullString(in.Title),
		FamilyID:  in.FamilyID,
		CreatedBy: in.CreatorID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := s.buildParticipants(in, participantIDs, now)
	if err := s.repo.Create(ctx, &conv, participants); err != nil {
		return conversation.Conversation{}, err
	}
	conv.Participants = participants
	return conv, nil
}

func (s *ConversationService) createDirect(ctx context.Context, in CreateConversationInput, participantIDs []uuid.UUID) (conversation.Conversation, error) {
	if len(participantIDs) != 2 {
		return conversation.Conversation{}, care_errors.ErrInvalidInput
	}
	if participantIDs[0] != in.CreatorID && participantIDs[1] != in.CreatorID {
		return conversation.Conversation{}, care_errors.ErrInvalidInput
	}

	key := conversation.DirectKey(participantIDs[0], participantIDs[1])
	if existing, err := s.repo.GetByDirectKey(ctx, key); err == nil {
		return existing, nil
	} else if !errors.Is(err, care_errors.ErrNotFound) {
		return conversation.Conversation{}, err
	}

	now := s.clock()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      conversation.TypeDirect,
		Title:     nullString(in.Title),
		CreatedBy: in.CreatorID,
		IsActive:  true,
		DirectKey: sql.NullString{String: key, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	participants := s.buildParticipants(in, participantIDs, now)

	err := s.repo.Create(ctx, &conv, participants)
	if err == nil {
		conv.Participants = participants
		return conv, nil
	}
	if errors.Is(err, care_errors.ErrAlreadyExists) {
		// Race loser: the winner committed between our lookup and insert.
		existing, ferr := s.repo.GetByDirectKey(ctx, key)
		if ferr != nil {
			return conversation.Conversation{}, err
		}
		return existing, nil
	}
	return conversation.Conversation{}, err
}

func (s *ConversationService) buildParticipants(in CreateConversationInput, participantIDs []uuid.UUID, now time.Time) []conversation.Participant {
	participants := make([]conversation.Participant, 0, len(participantIDs))
	for _, id := range participantIDs {
		canWrite := true
		if in.Type == conversation.TypeAnnouncement && id != in.CreatorID {
			// Announcements are read-only for everyone but the author.
			canWrite = false
		}
		participants = append(participants, conversation.Participant{
			UserID:    id,
			CanWrite:  canWrite,
			CanManage: id == in.CreatorID,
			JoinedAt:  now,
		})
	}
	return participants
}

// GetForUser lists conversations where the caller has an active participant
// row, most recently active first.
func (s *ConversationService) GetForUser(ctx context.Context, userID uuid.UUID, convType string, page, limit int) ([]conversation.Conversation, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	if convType != "" && !conversation.ValidType(convType) {
		return nil, 0, care_errors.ErrInvalidInput
	}
	return s.repo.GetUserConversations(ctx, userID, convType, page, limit)
}

// GetByID returns the conversation only to active participants. Outsiders
// get ErrNotFound so existence leaks nothing.
func (s *ConversationService) GetByID(ctx context.Context, conversationID, callerID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	ok, err := s.IsUserParticipant(ctx, conversationID, callerID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !ok {
		return conversation.Conversation{}, care_errors.ErrNotFound
	}
	return conv, nil
}

// IsUserParticipant treats rows with left_at set as absent.
func (s *ConversationService) IsUserParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	p, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, care_errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Active(), nil
}

// GetUserPermissions returns nil when no active participant row exists.
func (s *ConversationService) GetUserPermissions(ctx context.Context, conversationID, userID uuid.UUID) (*conversation.Permissions, error) {
	p, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, care_errors.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !p.Active() {
		return nil, nil
	}
	return &conversation.Permissions{CanWrite: p.CanWrite, CanManage: p.CanManage}, nil
}

// AddParticipant adds a member. A left participant re-joins in place (the
// old row keeps its audit trail); an active duplicate is a conflict.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, callerID uuid.UUID, callerRole string, userID uuid.UUID, canWrite, canManage bool) error {
	if err := s.access.EnsureCanManage(ctx, conversationID, callerID, callerRole); err != nil {
		return err
	}
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv.Type == conversation.TypeDirect {
		return care_errors.ErrInvalidState
	}

	now := s.clock()
	existing, err := s.repo.GetParticipant(ctx, conversationID, userID)
	if err == nil {
		if existing.Active() {
			return care_errors.ErrConflict
		}
		existing.LeftAt = sql.NullTime{}
		existing.JoinedAt = now
		existing.CanWrite = canWrite
		existing.CanManage = canManage
		return s.repo.UpdateParticipant(ctx, existing)
	}
	if !errors.Is(err, care_errors.ErrNotFound) {
		return err
	}

	return s.repo.AddParticipant(ctx, &conversation.Participant{
		ConversationID: conversationID,
		UserID:         userID,
		CanWrite:       canWrite,
		CanManage:      canManage,
		JoinedAt:       now,
	})
}

// RemoveParticipant sets left_at; the row is never deleted. A participant
// may remove themselves; removing others needs manage rights.
func (s *ConversationService) RemoveParticipant(ctx context.Context, conversationID, callerID uuid.UUID, callerRole string, userID uuid.UUID) error {
	if callerID != userID {
		if err := s.access.EnsureCanManage(ctx, conversationID, callerID, callerRole); err != nil {
			return err
		}
	}
	return s.repo.SetParticipantLeft(ctx, conversationID, userID, s.clock())
}

type UpdateConversationInput struct {
	Title    *string
	IsActive *bool
}

func (s *ConversationService) Update(ctx context.Context, conversationID, callerID uuid.UUID, callerRole string, in UpdateConversationInput) (conversation.Conversation, error) {
	if err := s.access.EnsureCanManage(ctx, conversationID, callerID, callerRole); err != nil {
		return conversation.Conversation{}, err
	}
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if in.Title != nil {
		conv.Title = nullString(*in.Title)
	}
	if in.IsActive != nil {
		conv.IsActive = *in.IsActive
	}
	if !conv.IsActive {
		// Dedupe only spans active conversations; release the pair key.
		conv.DirectKey = sql.NullString{}
	}
	conv.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

// Delete is soft: is_active flips false, nothing is removed.
func (s *ConversationService) Delete(ctx context.Context, conversationID, callerID uuid.UUID, callerRole string) error {
	if err := s.access.EnsureCanManage(ctx, conversationID, callerID, callerRole); err != nil {
		return err
	}
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	conv.IsActive = false
	// Release the pair key so the two users can start a fresh DIRECT
	// conversation; the unique index would otherwise block them forever.
	conv.DirectKey = sql.NullString{}
	conv.UpdatedAt = s.clock()
	return s.repo.Update(ctx, conv)
}

// ActiveParticipantIDs lists the current membership, used by presence and
// the message fan-out snapshot.
func (s *ConversationService) ActiveParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	participants, err := s.repo.GetActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
