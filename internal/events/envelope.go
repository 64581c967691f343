package events

import (
	"encoding/json"
	"time"
)

// Event types carried over the wire (websocket frames and redis channels).
const (
	TypeMessageNew      = "message.new"
	TypeMessageEdited   = "message.edited"
	TypeMessageDeleted  = "message.deleted"
	TypeTyping          = "typing"
	TypePresenceOnline  = "presence.online"
	TypePresenceOffline = "presence.offline"
	TypeNotification    = "notification"
)

// Envelope wraps every real-time event.
type Envelope struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals the envelope with an arbitrary payload.
func Encode(eventType, conversationID, userID string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{
		Type:           eventType,
		ConversationID: conversationID,
		UserID:         userID,
		OccurredAt:     time.Now().UTC(),
		Payload:        raw,
	})
}

// Channel naming for the cross-process bus.
func UserChannel(userID string) string {
	return "channel:user:" + userID
}

func ConversationChannel(conversationID string) string {
	return "channel:conversation:" + conversationID
}
