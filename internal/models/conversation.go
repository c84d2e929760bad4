package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Role identifies who sent a chat message.
type Role string

const (
	RoleUser   Role = "user"
	RoleTutor  Role = "tutor"
	RoleSystem Role = "system"
)

// KindText is the only message kind the tutoring logic interprets.
const KindText = "text"

// ParseRole validates a sender role string.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleTutor, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("unknown sender role %q", s)
}

// Conversation is one tutoring session on one problem.
// FullChatLog is a cache re-derived from ChatMessage rows on every append.
type Conversation struct {
	ID          string         `gorm:"column:conversation_id;primaryKey;size:36" json:"conversation_id"`
	UserID      int64          `gorm:"column:user_id;index" json:"user_id"`
	ProblemID   uint           `gorm:"column:p_id;index" json:"p_id"`
	StartedAt   time.Time      `gorm:"column:started_at" json:"started_at"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	FullChatLog datatypes.JSON `gorm:"column:full_chat_log" json:"full_chat_log"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Completed reports whether the session has been closed.
func (c *Conversation) Completed() bool { return c.CompletedAt != nil }

// ChatMessage is an immutable transcript entry. IDs are assigned
// monotonically by the store, so ID order is creation order.
type ChatMessage struct {
	ID             uint      `gorm:"column:chat_id;primaryKey;autoIncrement" json:"chat_id"`
	ConversationID string    `gorm:"column:conversation_id;size:36;not null;index" json:"conversation_id"`
	UserID         int64     `gorm:"column:user_id" json:"user_id"`
	ProblemID      uint      `gorm:"column:p_id" json:"p_id"`
	Role           Role      `gorm:"column:sender_role;size:16;not null" json:"sender_role"`
	Message        string    `gorm:"column:message;type:text" json:"message"`
	Kind           string    `gorm:"column:message_type;size:16;default:text" json:"message_type"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// MessageSummary is one element of a conversation's full_chat_log snapshot.
type MessageSummary struct {
	ChatID    uint      `json:"chat_id"`
	Role      Role      `json:"sender_role"`
	Message   string    `json:"message"`
	Kind      string    `json:"message_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary projects a message into its snapshot form.
func (m ChatMessage) Summary() MessageSummary {
	return MessageSummary{
		ChatID:    m.ID,
		Role:      m.Role,
		Message:   m.Message,
		Kind:      m.Kind,
		CreatedAt: m.CreatedAt,
	}
}
