package httpdto

import (
	"time"

	"carelink/internal/domain/message"
)

type CreateMessageRequest struct {
	Content     string              `json:"content"`
	ReplyToID   string              `json:"reply_to_id"`
	Attachments message.Attachments `json:"attachments"`
}

type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactionRequest struct {
	Emoji       string `json:"emoji" binding:"required"`
	DisplayName string `json:"display_name"`
}

type MessageResponse struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	SenderID       string              `json:"sender_id"`
	Content        string              `json:"content"`
	ReplyToID      string              `json:"reply_to_id,omitempty"`
	Attachments    message.Attachments `json:"attachments,omitempty"`
	Reactions      message.Reactions   `json:"reactions,omitempty"`
	IsEdited       bool                `json:"is_edited"`
	EditedAt       *time.Time          `json:"edited_at,omitempty"`
	IsDeleted      bool                `json:"is_deleted"`
	CreatedAt      time.Time           `json:"created_at"`
}

type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
	Total    int64             `json:"total"`
}

type UnreadCountResponse struct {
	ConversationID string `json:"conversation_id"`
	Unread         int64  `json:"unread"`
}

func FromMessage(m message.Message) MessageResponse {
	resp := MessageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID.String(),
		SenderID:       m.SenderID.String(),
		Content:        m.Content,
		Attachments:    m.Attachments,
		Reactions:      m.Reactions,
		IsEdited:       m.IsEdited,
		IsDeleted:      m.IsDeleted,
		CreatedAt:      m.CreatedAt,
	}
	if m.ReplyToID.Valid {
		resp.ReplyToID = m.ReplyToID.UUID.String()
	}
	if m.EditedAt.Valid {
		t := m.EditedAt.Time
		resp.EditedAt = &t
	}
	return resp
}

func FromMessageSlice(items []message.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, m := range items {
		out = append(out, FromMessage(m))
	}
	return out
}
