package rag

import (
	"context"
	"strings"

	"hairwise/internal/contextutil"
	"hairwise/internal/llm"
	"hairwise/internal/storage"
)

// titleMaxWords caps the generated conversation title.
const titleMaxWords = 5

// TitleGenerator assigns a short topic title to a new conversation after its
// first exchange.
type TitleGenerator struct {
	completions   CompletionClient
	conversations storage.ConversationStore
}

// NewTitleGenerator creates a new TitleGenerator.
func NewTitleGenerator(completions CompletionClient, conversations storage.ConversationStore) *TitleGenerator {
	return &TitleGenerator{
		completions:   completions,
		conversations: conversations,
	}
}

// Generate creates and stores a title from the conversation's first user
// message. Fire-and-forget: failures are logged and swallowed, and a
// conversation that already has a title is left alone.
func (g *TitleGenerator) Generate(ctx context.Context, conversationID, firstMessage string) {
	logger := contextutil.LoggerFromContext(ctx)

	conv, err := g.conversations.Get(ctx, conversationID)
	if err != nil {
		logger.ErrorContext(ctx, "title generation: failed to load conversation", "error", err)
		return
	}
	if conv.Title != "" {
		return
	}

	raw, err := g.completions.Chat(ctx,
		[]llm.ChatMessage{{Role: "user", Content: titleGenerationPrompt + firstMessage}},
		llm.ChatOptions{Temperature: 0.7, MaxTokens: 30})
	if err != nil {
		logger.ErrorContext(ctx, "title generation: model call failed", "error", err)
		return
	}

	title := sanitizeTitle(raw)
	if title == "" {
		return
	}

	if err := g.conversations.SetTitle(ctx, conversationID, title); err != nil {
		logger.ErrorContext(ctx, "title generation: failed to store title", "error", err)
		return
	}
	logger.InfoContext(ctx, "conversation title set", "conversation_id", conversationID, "title", title)
}

// sanitizeTitle strips quotes and enforces the word cap on model output.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimSpace(title)

	words := strings.Fields(title)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	return strings.Join(words, " ")
}
