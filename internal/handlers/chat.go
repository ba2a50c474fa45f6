package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"hairwise/internal/contextutil"
	"hairwise/internal/rag"
	"hairwise/internal/storage"
)

// sideEffectTimeout bounds the detached post-turn work (memory extraction,
// title generation) so a hung model call cannot leak goroutines forever.
const sideEffectTimeout = 60 * time.Second

// ChatHandler handles the streaming chat endpoint.
type ChatHandler struct {
	pipeline      *rag.Pipeline
	conversations storage.ConversationStore
	messages      storage.MessageStore
	memory        *rag.MemoryExtractor
	titles        *rag.TitleGenerator
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(pipeline *rag.Pipeline, conversations storage.ConversationStore,
	messages storage.MessageStore, memory *rag.MemoryExtractor, titles *rag.TitleGenerator) *ChatHandler {
	return &ChatHandler{
		pipeline:      pipeline,
		conversations: conversations,
		messages:      messages,
		memory:        memory,
		titles:        titles,
	}
}

// ChatRequest represents the HTTP request payload for a chat turn.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// sseEvent is the envelope for every server-sent event.
type sseEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ServeHTTP handles a chat turn and streams the response as SSE.
//
// Event order: conversation_id, then content_delta per token, then sources
// and (when present) product_recommendations, then done. A mid-stream
// failure emits an error event instead of done.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	isNewConversation := req.ConversationID == ""

	result, err := h.pipeline.Run(ctx, rag.TurnRequest{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		logger.ErrorContext(ctx, "pipeline failed", "error", err)
		if errors.Is(err, rag.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "Invalid message")
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to process message")
		}
		return
	}
	defer result.Stream.Close()

	// The user message is part of the conversation regardless of how the
	// stream ends.
	if err := h.messages.Insert(ctx, &storage.Message{
		ConversationID: result.ConversationID,
		Role:           "user",
		Content:        req.Message,
		ImageURL:       req.ImageURL,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to persist user message", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event sseEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.ErrorContext(ctx, "failed to marshal SSE event", "error", err, "type", event.Type)
			return
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	send(sseEvent{Type: "conversation_id", Data: result.ConversationID})

	var full strings.Builder
	for result.Stream.Next() {
		token := result.Stream.Text()
		full.WriteString(token)
		send(sseEvent{Type: "content_delta", Data: token})
	}
	if err := result.Stream.Err(); err != nil {
		logger.ErrorContext(ctx, "synthesis stream failed", "error", err)
		send(sseEvent{Type: "error", Data: map[string]string{"message": "Stream error occurred"}})
		return
	}

	// Renumber the citation markers of the finished text into appearance
	// order; the sources event and the stored message carry the final form.
	content, sources := rag.RenumberCitations(full.String(), result.Sources)

	if len(sources) > 0 {
		send(sseEvent{Type: "sources", Data: sources})
	}
	if len(result.Products) > 0 {
		send(sseEvent{Type: "product_recommendations", Data: productPayload(result.Products)})
	}

	if err := h.messages.Insert(ctx, &storage.Message{
		ConversationID: result.ConversationID,
		Role:           "assistant",
		Content:        content,
	}); err != nil {
		logger.ErrorContext(ctx, "failed to persist assistant message", "error", err)
	}
	if err := h.conversations.Touch(ctx, result.ConversationID); err != nil {
		logger.ErrorContext(ctx, "failed to touch conversation", "error", err)
	}

	send(sseEvent{Type: "done", Data: map[string]any{"intent": result.Intent}})

	h.runSideEffects(logger, result.ConversationID, userID, req.Message, isNewConversation)
}

// runSideEffects kicks off post-turn enrichment on fresh contexts, detached
// from the request so a closed connection cannot cancel them. Both
// collaborators are optional.
func (h *ChatHandler) runSideEffects(logger *slog.Logger, conversationID, userID, firstMessage string, isNewConversation bool) {
	if h.memory != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			ctx = contextutil.WithLogger(ctx, logger.With("task", "memory_extraction"))
			h.memory.Extract(ctx, conversationID, userID)
		}()
	}

	if isNewConversation && h.titles != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
			defer cancel()
			ctx = contextutil.WithLogger(ctx, logger.With("task", "title_generation"))
			h.titles.Generate(ctx, conversationID, firstMessage)
		}()
	}
}

// productPayload shapes matched products for the client.
func productPayload(products []storage.Product) []map[string]any {
	payload := make([]map[string]any, len(products))
	for i, p := range products {
		payload[i] = map[string]any{
			"id":                p.ID,
			"name":              p.Name,
			"brand":             p.Brand,
			"category":          p.Category,
			"short_description": p.ShortDescription,
			"price_eur":         p.PriceEUR,
			"currency":          p.Currency,
			"tags":              p.Tags,
		}
	}
	return payload
}
