package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calliope-ai/calliope/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer produces the assistant's reply to the latest user message given
// the conversation so far.
type Completer interface {
	Complete(ctx context.Context, history []models.Message, content string) (string, error)
}

const systemPrompt = `You are a helpful AI assistant. Answer the user's
message directly and concisely, using the conversation history for context.`

// Service generates completions through an OpenAI-compatible endpoint.
type Service struct {
	llm     llms.LLM
	timeout time.Duration
}

func New(baseURL, token, model string) (*Service, error) {
	llm, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return &Service{llm: llm, timeout: 30 * time.Second}, nil
}

func (s *Service) Complete(ctx context.Context, history []models.Message, content string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString(systemPrompt)
	prompt.WriteString("\n\nConversation history:\n")
	for _, msg := range history {
		fmt.Fprintf(&prompt, "%s: %s\n", msg.Role, msg.Content)
	}
	fmt.Fprintf(&prompt, "\nCurrent message:\n%s: %s\n\nResponse:", models.RoleUser, content)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt.String())
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	return strings.TrimSpace(completion), nil
}
