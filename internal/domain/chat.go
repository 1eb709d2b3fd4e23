package domain

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one utterance in an assistant conversation. Conversations
// are keyed by a client-chosen SessionID so anonymous visitors can chat;
// UserID is set when the author was signed in.
type ChatMessage struct {
	ID        int64     `json:"id"                gorm:"primaryKey;autoIncrement"`
	UserID    *int64    `json:"user_id,omitempty" gorm:"index"`
	SessionID string    `json:"session_id"        gorm:"size:64;not null;index:idx_chat_session,priority:1"`
	Role      ChatRole  `json:"role"              gorm:"size:16;not null;check:role IN ('user','assistant')"`
	Content   string    `json:"content"           gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"        gorm:"index:idx_chat_session,priority:2"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }
