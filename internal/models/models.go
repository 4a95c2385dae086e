package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the recognized conversation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type MessageType string

const (
	MessagePrompt   MessageType = "prompt"
	MessageResponse MessageType = "response"
)

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	Type           MessageType `json:"message_type"`
	Flagged        bool        `json:"flagged"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Conversation struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	EndAt     *time.Time `json:"end_at,omitempty"`
}

type User struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
