package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	// DefaultTitle is the placeholder title a chat carries until its first
	// message derives a real one.
	DefaultTitle = "New Chat"

	// TitleLimit is how many runes of the first message become the title.
	TitleLimit = 30
)

// DeriveTitle builds a chat title from the first message's content.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= TitleLimit {
		return content
	}
	return string(runes[:TitleLimit])
}

type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatSummary is the list form of a chat: no message bodies.
type ChatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Chat) Summary() ChatSummary {
	return ChatSummary{ID: c.ID, Title: c.Title, UpdatedAt: c.UpdatedAt}
}
