package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/calliope-ai/calliope/internal/gateway"
	"github.com/calliope-ai/calliope/internal/llm"
	"github.com/calliope-ai/calliope/internal/models"
	"github.com/calliope-ai/calliope/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	maxContentLen = 8192
	maxTitleLen   = 200
	historyLimit  = 20
)

type Handler struct {
	store     *store.Store
	completer llm.Completer
	logger    *zap.Logger
	token     string
}

func NewHandler(st *store.Store, completer llm.Completer, token string, logger *zap.Logger) *Handler {
	return &Handler{
		store:     st,
		completer: completer,
		logger:    logger,
		token:     token,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireToken)
		r.Get("/chats", h.ListChats)
		r.Post("/chats", h.CreateChat)
		r.Patch("/chats/{id}", h.RenameChat)
		r.Delete("/chats/{id}", h.DeleteChat)
		r.Get("/chats/{id}/messages", h.GetMessages)
		r.Post("/chats/{id}/messages", h.PostMessage)
	})
	return r
}

// requireToken checks the opaque bearer credential. The server does not
// inspect the token beyond comparing it with the configured value.
func (h *Handler) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token != h.token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type createChatRequest struct {
	Title string `json:"title"`
}

type renameChatRequest struct {
	Title string `json:"title"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.store.ListChats()
	if err != nil {
		h.logger.Error("Failed to list chats", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, chats)
}

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		req.Title = models.DefaultTitle
	}
	if err := validateTitle(req.Title); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chat, err := h.store.CreateChat(req.Title)
	if err != nil {
		h.logger.Error("Failed to create chat", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusCreated, chat)
}

func (h *Handler) RenameChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	var req renameChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateTitle(req.Title); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch err := h.store.RenameChat(chatID, strings.TrimSpace(req.Title)); {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Chat not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("Failed to rename chat", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	switch err := h.store.DeleteChat(chatID); {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Chat not found", http.StatusNotFound)
	case err != nil:
		h.logger.Error("Failed to delete chat", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	if _, err := h.store.GetChat(chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to load chat", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	messages, err := h.store.Messages(chatID)
	if err != nil {
		h.logger.Error("Failed to load messages", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.respond(w, http.StatusOK, messages)
}

// PostMessage stores the user message, derives the chat title from the first
// message, generates the assistant reply and returns all three records.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validateContent(req.Content); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content := strings.TrimSpace(req.Content)

	chat, err := h.store.GetChat(chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		h.logger.Error("Failed to load chat", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	history, err := h.store.History(chatID, historyLimit)
	if err != nil {
		h.logger.Error("Failed to load history", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	userMsg := &models.Message{
		ChatID:  chatID,
		Role:    models.RoleUser,
		Content: content,
	}
	if err := h.store.SaveMessage(userMsg); err != nil {
		h.logger.Error("Failed to save user message", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if chat.Title == models.DefaultTitle && len(history) == 0 {
		if err := h.store.RenameChat(chatID, models.DeriveTitle(content)); err != nil {
			h.logger.Error("Failed to derive title", zap.String("chat_id", chatID), zap.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}

	completion, err := h.completer.Complete(r.Context(), history, content)
	if err != nil {
		h.logger.Error("Failed to generate reply", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Failed to generate reply", http.StatusBadGateway)
		return
	}

	reply := &models.Message{
		ChatID:  chatID,
		Role:    models.RoleAssistant,
		Content: completion,
	}
	if err := h.store.SaveMessage(reply); err != nil {
		h.logger.Error("Failed to save reply", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	updated, err := h.store.GetChat(chatID)
	if err != nil {
		h.logger.Error("Failed to reload chat", zap.String("chat_id", chatID), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.respond(w, http.StatusOK, gateway.SendResult{
		Message: userMsg,
		Reply:   reply,
		Chat:    updated.Summary(),
	})
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func validateContent(content string) error {
	var errs error
	if strings.TrimSpace(content) == "" {
		errs = multierr.Append(errs, errors.New("content is required"))
	}
	if len(content) > maxContentLen {
		errs = multierr.Append(errs, errors.New("content is too long"))
	}
	return errs
}

func validateTitle(title string) error {
	var errs error
	if strings.TrimSpace(title) == "" {
		errs = multierr.Append(errs, errors.New("title is required"))
	}
	if len(title) > maxTitleLen {
		errs = multierr.Append(errs, errors.New("title is too long"))
	}
	return errs
}
