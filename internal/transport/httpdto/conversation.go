package httpdto

import (
	"time"

	"carelink/internal/domain/conversation"
)

type CreateConversationRequest struct {
	Type         string   `json:"type" binding:"required"`
	Title        string   `json:"title"`
	FamilyID     string   `json:"family_id"`
	Participants []string `json:"participants" binding:"required"`
}

type UpdateConversationRequest struct {
	Title    *string `json:"title"`
	IsActive *bool   `json:"is_active"`
}

type AddParticipantRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	CanWrite  *bool  `json:"can_write"`
	CanManage bool   `json:"can_manage"`
}

type TypingRequest struct {
	IsTyping    bool   `json:"is_typing"`
	DisplayName string `json:"display_name"`
}

type ParticipantResponse struct {
	UserID    string     `json:"user_id"`
	CanWrite  bool       `json:"can_write"`
	CanManage bool       `json:"can_manage"`
	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
}

type ConversationResponse struct {
	ID           string                `json:"id"`
	Type         string                `json:"type"`
	Title        string                `json:"title,omitempty"`
	FamilyID     string                `json:"family_id,omitempty"`
	CreatedBy    string                `json:"created_by"`
	IsActive     bool                  `json:"is_active"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	Participants []ParticipantResponse `json:"participants,omitempty"`
}

type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
	Total         int64                  `json:"total"`
}

type PresenceResponse struct {
	ConversationID string   `json:"conversation_id"`
	OnlineUserIDs  []string `json:"online_user_ids"`
}

func FromConversation(c conversation.Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:        c.ID.String(),
		Type:      c.Type,
		CreatedBy: c.CreatedBy.String(),
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.Title.Valid {
		resp.Title = c.Title.String
	}
	if c.FamilyID.Valid {
		resp.FamilyID = c.FamilyID.UUID.String()
	}
	for _, p := range c.Participants {
		pr := ParticipantResponse{
			UserID:    p.UserID.String(),
			CanWrite:  p.CanWrite,
			CanManage: p.CanManage,
			JoinedAt:  p.JoinedAt,
		}
		if p.LeftAt.Valid {
			t := p.LeftAt.Time
			pr.LeftAt = &t
		}
		resp.Participants = append(resp.Participants, pr)
	}
	return resp
}

func FromConversationSlice(items []conversation.Conversation) []ConversationResponse {
	out := make([]ConversationResponse, 0, len(items))
	for _, c := range items {
		out = append(out, FromConversation(c))
	}
	return out
}
