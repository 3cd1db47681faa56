package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/calliope-ai/calliope/internal/api"
	"github.com/calliope-ai/calliope/internal/gateway"
	"github.com/calliope-ai/calliope/internal/models"
	"github.com/calliope-ai/calliope/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "test-token"

type stubCompleter struct {
	completeFn func(ctx context.Context, history []models.Message, content string) (string, error)
}

func (s *stubCompleter) Complete(ctx context.Context, history []models.Message, content string) (string, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, history, content)
	}
	return "echo: " + content, nil
}

func newServer(t *testing.T, completer *stubCompleter) *httptest.Server {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := api.NewHandler(st, completer, testToken, zap.NewNop())
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *gateway.Client {
	return gateway.NewClient(srv.URL, testToken, time.Second, zap.NewNop())
}

func TestRejectsMissingOrWrongToken(t *testing.T) {
	srv := newServer(t, &stubCompleter{})

	resp, err := http.Get(srv.URL + "/api/chats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/chats", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChatLifecycle(t *testing.T) {
	srv := newServer(t, &stubCompleter{})
	client := newTestClient(srv)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTitle, chat.Title)
	assert.NotEmpty(t, chat.ID)

	result, err := client.PostMessage(ctx, chat.ID, "What's the tallest mountain on Earth?")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, result.Message.Role)
	assert.Equal(t, "What's the tallest mountain on Earth?", result.Message.Content)
	assert.Equal(t, models.RoleAssistant, result.Reply.Role)
	assert.Equal(t, "echo: What's the tallest mountain on Earth?", result.Reply.Content)

	// First message derives the title server-side.
	assert.Equal(t, models.DeriveTitle("What's the tallest mountain on Earth?"), result.Chat.Title)

	// A second message leaves the title alone.
	result, err = client.PostMessage(ctx, chat.ID, "And the second tallest?")
	require.NoError(t, err)
	assert.Equal(t, models.DeriveTitle("What's the tallest mountain on Earth?"), result.Chat.Title)

	msgs, err := client.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)

	chats, err := client.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	require.NoError(t, client.RenameChat(ctx, chat.ID, "Mountains"))
	chats, err = client.ListChats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mountains", chats[0].Title)

	require.NoError(t, client.DeleteChat(ctx, chat.ID))
	chats, err = client.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestPostMessageValidation(t *testing.T) {
	srv := newServer(t, &stubCompleter{})
	client := newTestClient(srv)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, "chat")
	require.NoError(t, err)

	_, err = client.PostMessage(ctx, chat.ID, "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	_, err = client.PostMessage(ctx, chat.ID, strings.Repeat("x", 10000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	_, err = client.PostMessage(ctx, "missing", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	// Nothing was stored for the rejected posts.
	msgs, err := client.Messages(ctx, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRenameValidationAndNotFound(t *testing.T) {
	srv := newServer(t, &stubCompleter{})
	client := newTestClient(srv)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, "chat")
	require.NoError(t, err)

	err = client.RenameChat(ctx, chat.ID, "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")

	err = client.RenameChat(ctx, "missing", "title")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestCompleterFailureKeepsUserMessage(t *testing.T) {
	completer := &stubCompleter{
		completeFn: func(context.Context, []models.Message, string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	srv := newServer(t, completer)
	client := newTestClient(srv)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, "chat")
	require.NoError(t, err)

	_, err = client.PostMessage(ctx, chat.ID, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprint(http.StatusBadGateway))

	// The user message was already persisted when the completion failed.
	msgs, err := client.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
}
