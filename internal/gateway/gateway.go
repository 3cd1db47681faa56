package gateway

import (
	"context"

	"github.com/calliope-ai/calliope/internal/models"
)

// SendResult is what the backend returns for a posted message: the canonical
// user message record, the assistant reply, and the chat as updated by the
// exchange (title and updated_at may have changed).
type SendResult struct {
	Message *models.Message    `json:"message"`
	Reply   *models.Message    `json:"reply"`
	Chat    models.ChatSummary `json:"chat"`
}

// Gateway is the persistence backend the session manager synchronizes with.
type Gateway interface {
	ListChats(ctx context.Context) ([]models.ChatSummary, error)
	CreateChat(ctx context.Context, title string) (*models.Chat, error)
	Messages(ctx context.Context, chatID string) ([]models.Message, error)
	PostMessage(ctx context.Context, chatID, content string) (*SendResult, error)
	RenameChat(ctx context.Context, chatID, title string) error
	DeleteChat(ctx context.Context, chatID string) error
}
