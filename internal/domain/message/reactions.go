package message

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reaction is one user's reaction under an emoji key.
type Reaction struct {
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Reactions maps emoji -> reacting users. Invariant: a (emoji, user) pair
// appears at most once, and emptied emoji keys are removed entirely.
type Reactions map[string][]Reaction

// Add inserts a reaction. Returns false if the (emoji, user) pair already exists.
func (r *Reactions) Add(emoji string, userID uuid.UUID, userName string, at time.Time) bool {
	if *r == nil {
		*r = make(Reactions)
	}
	for _, existing := range (*r)[emoji] {
		if existing.UserID == userID {
			return false
		}
	}
	(*r)[emoji] = append((*r)[emoji], Reaction{UserID: userID, UserName: userName, CreatedAt: at})
	return true
}

// Remove deletes a user's reaction. Returns false if it was not present.
// Removing the last reaction for an emoji drops the emoji key.
func (r Reactions) Remove(emoji string, userID uuid.UUID) bool {
	list, ok := r[emoji]
	if !ok {
		return false
	}
	for i, existing := range list {
		if existing.UserID == userID {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(r, emoji)
			} else {
				r[emoji] = list
			}
			return true
		}
	}
	return false
}

func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

func (r *Reactions) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported reactions column type %T", value)
	}
	if len(data) == 0 {
		*r = nil
		return nil
	}
	return json.Unmarshal(data, r)
}
