package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calliope-ai/calliope/internal/models"
	"go.uber.org/zap"
)

// Send posts a user message to the current chat, creating one first when
// nothing is selected. The user message is appended optimistically and
// reconciled with the canonical record once the gateway answers.
//
// Exactly one send may be outstanding at a time; a second call returns
// ErrBusy. A gateway failure does not bubble up as an error: the transcript
// gets a synthetic assistant message describing the failure instead, and the
// user's message stays in place. The returned message is the assistant entry
// appended by this call, canonical or synthetic.
func (m *Manager) Send(ctx context.Context, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	m.mu.Lock()
	if m.sending {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.sending = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.sending = false
		m.mu.Unlock()
	}()

	m.mu.Lock()
	if m.find(m.current) == nil {
		m.mu.Unlock()
		created, err := m.gw.CreateChat(ctx, models.DefaultTitle)
		if err != nil {
			return nil, fmt.Errorf("create chat: %w: %w", ErrGateway, err)
		}
		m.mu.Lock()
		m.insert(created)
	}

	c := m.find(m.current)
	chatID := c.ID
	localID := newLocalID()
	now := time.Now()
	c.Messages = append(c.Messages, models.Message{
		ID:        localID,
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: now,
	})
	if c.Title == models.DefaultTitle && len(c.Messages) == 1 {
		c.Title = models.DeriveTitle(content)
	}
	c.UpdatedAt = now
	m.promote(chatID)
	m.mu.Unlock()

	result, err := m.gw.PostMessage(ctx, chatID, content)

	m.mu.Lock()
	defer m.mu.Unlock()

	c = m.find(chatID)
	if c == nil {
		// Chat was deleted while the send was outstanding.
		return nil, nil
	}

	if err != nil {
		m.logger.Warn("send failed", zap.String("chat_id", chatID), zap.Error(err))
		synthetic := models.Message{
			ID:        newLocalID(),
			ChatID:    chatID,
			Role:      models.RoleAssistant,
			Content:   fmt.Sprintf("Sorry, your message could not be delivered: %v. Please try again.", err),
			CreatedAt: time.Now(),
		}
		c.Messages = append(c.Messages, synthetic)
		c.UpdatedAt = synthetic.CreatedAt
		return &synthetic, nil
	}

	// Swap the optimistic message for the canonical record, correlated by
	// the local id, then append the reply.
	replaced := false
	for i := range c.Messages {
		if c.Messages[i].ID == localID {
			c.Messages[i] = *result.Message
			replaced = true
			break
		}
	}
	if !replaced {
		c.Messages = append(c.Messages, *result.Message)
	}
	c.Messages = append(c.Messages, *result.Reply)
	c.Title = result.Chat.Title
	c.UpdatedAt = result.Chat.UpdatedAt
	m.promote(chatID)

	reply := *result.Reply
	return &reply, nil
}
