package httpdto

import (
	"time"

	"carelink/internal/domain/notification"
)

type TestNotificationRequest struct {
	RecipientID  string     `json:"recipient_id" binding:"required"`
	Type         string     `json:"type" binding:"required"`
	Title        string     `json:"title" binding:"required"`
	Message      string     `json:"message"`
	IsActionable bool       `json:"is_actionable"`
	ActionURL    string     `json:"action_url"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type NotificationResponse struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	IsActionable bool       `json:"is_actionable"`
	ActionURL    string     `json:"action_url,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	IsRead       bool       `json:"is_read"`
	ReadAt       *time.Time `json:"read_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int64                  `json:"total"`
}

func FromNotification(n notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:           n.ID.String(),
		Type:         n.Type,
		Title:        n.Title,
		Message:      n.Message,
		IsActionable: n.IsActionable,
		IsRead:       n.IsRead,
		CreatedAt:    n.CreatedAt,
	}
	if n.ActionURL.Valid {
		resp.ActionURL = n.ActionURL.String
	}
	if n.ExpiresAt.Valid {
		t := n.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	if n.ReadAt.Valid {
		t := n.ReadAt.Time
		resp.ReadAt = &t
	}
	return resp
}

func FromNotificationSlice(items []notification.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, FromNotification(n))
	}
	return out
}
