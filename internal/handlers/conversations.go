package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hairwise/internal/contextutil"
	"hairwise/internal/storage"
)

// conversationListLimit caps the conversation list response.
const conversationListLimit = 20

// ConversationsHandler serves conversation listing and message history.
type ConversationsHandler struct {
	conversations storage.ConversationStore
	messages      storage.MessageStore
}

// NewConversationsHandler creates a new ConversationsHandler.
func NewConversationsHandler(conversations storage.ConversationStore, messages storage.MessageStore) *ConversationsHandler {
	return &ConversationsHandler{
		conversations: conversations,
		messages:      messages,
	}
}

// ConversationResponse represents a conversation in list responses.
type ConversationResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// MessageResponse represents a message in history responses.
type MessageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url,omitempty"`
	CreatedAt string `json:"created_at"`
}

// List returns the user's conversations, most recently updated first.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	conversations, err := h.conversations.ListByUser(ctx, userID, conversationListLimit)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load conversations")
		return
	}

	resp := make([]ConversationResponse, len(conversations))
	for i, conv := range conversations {
		resp[i] = ConversationResponse{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: conv.MessageCount,
			CreatedAt:    conv.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:    conv.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"conversations": resp}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// Messages returns the full message history of one conversation.
func (h *ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	conversationID := chi.URLParam(r, "id")

	conv, err := h.conversations.Get(ctx, conversationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		logger.ErrorContext(ctx, "failed to load conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	if conv.UserID != userID {
		// Hide the existence of other users' conversations.
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	messages, err := h.messages.ListAll(ctx, conversationID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load messages", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load messages")
		return
	}

	resp := make([]MessageResponse, len(messages))
	for i, msg := range messages {
		resp[i] = MessageResponse{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			ImageURL:  msg.ImageURL,
			CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"messages": resp}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
