package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"hairwise/internal/storage"
	storagemocks "hairwise/internal/storage/mocks"
)

func conversationsTestRouter(h *ConversationsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/conversations", h.List)
	r.Get("/api/conversations/{id}/messages", h.Messages)
	return r
}

func TestConversationsListRequiresUser(t *testing.T) {
	h := NewConversationsHandler(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	conversationsTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestConversationsList(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conversations := storagemocks.NewMockConversationStore(ctrl)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	conversations.EXPECT().
		ListByUser(gomock.Any(), "u1", conversationListLimit).
		Return([]storage.Conversation{
			{ID: "c2", Title: "Frizz Help", MessageCount: 6, CreatedAt: created, UpdatedAt: created.Add(time.Hour)},
			{ID: "c1", MessageCount: 2, CreatedAt: created, UpdatedAt: created},
		}, nil)

	h := NewConversationsHandler(conversations, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	conversationsTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Conversations []ConversationResponse `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(resp.Conversations))
	}
	if resp.Conversations[0].ID != "c2" || resp.Conversations[0].Title != "Frizz Help" {
		t.Errorf("unexpected first conversation: %+v", resp.Conversations[0])
	}
	if resp.Conversations[0].UpdatedAt != "2026-03-01T11:00:00Z" {
		t.Errorf("unexpected timestamp format: %q", resp.Conversations[0].UpdatedAt)
	}
}

func TestConversationMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conversations := storagemocks.NewMockConversationStore(ctrl)
	messages := storagemocks.NewMockMessageStore(ctrl)

	conversations.EXPECT().Get(gomock.Any(), "c1").
		Return(&storage.Conversation{ID: "c1", UserID: "u1"}, nil)
	messages.EXPECT().ListAll(gomock.Any(), "c1").
		Return([]storage.Message{
			{ID: "m1", Role: "user", Content: "hello"},
			{ID: "m2", Role: "assistant", Content: "hi there"},
		}, nil)

	h := NewConversationsHandler(conversations, messages)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1/messages", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	conversationsTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Messages []MessageResponse `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Messages) != 2 || resp.Messages[1].Role != "assistant" {
		t.Errorf("unexpected messages: %+v", resp.Messages)
	}
}

func TestConversationMessagesHidesForeignConversation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conversations := storagemocks.NewMockConversationStore(ctrl)
	conversations.EXPECT().Get(gomock.Any(), "c1").
		Return(&storage.Conversation{ID: "c1", UserID: "someone_else"}, nil)

	h := NewConversationsHandler(conversations, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1/messages", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	conversationsTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign conversation, got %d", rec.Code)
	}
}

func TestConversationMessagesNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	conversations := storagemocks.NewMockConversationStore(ctrl)
	conversations.EXPECT().Get(gomock.Any(), "missing").Return(nil, storage.ErrNotFound)

	h := NewConversationsHandler(conversations, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/missing/messages", nil)
	req.Header.Set("X-User-ID", "u1")
	rec := httptest.NewRecorder()
	conversationsTestRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
