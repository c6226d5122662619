package models

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry of a conversation transcript
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	IsFile    bool      `json:"isFile"`
	FileName  string    `json:"fileName,omitempty"`
}

// Conversation is the transcript of one (user, conversation) pair.
// Every append moves ExpiresAt forward.
type Conversation struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Expired reports whether the conversation is past its expiry at now
func (c *Conversation) Expired(now time.Time) bool {
	return c.ExpiresAt.Before(now)
}
