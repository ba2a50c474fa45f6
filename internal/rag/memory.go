package rag

import (
	"context"
	"strings"

	"hairwise/internal/contextutil"
	"hairwise/internal/llm"
	"hairwise/internal/storage"
)

const (
	// memoryHardCap bounds the accumulated conversation memory in bytes.
	memoryHardCap = 2000
	// memoryMinUserMessages is the minimum number of user turns before
	// extraction is worth a model call.
	memoryMinUserMessages = 3
)

// MemoryExtractor distills durable user facts from finished turns into the
// hair profile's conversation memory, so later conversations start with
// context the history window has already dropped.
type MemoryExtractor struct {
	completions   CompletionClient
	profiles      storage.ProfileStore
	conversations storage.ConversationStore
	messages      storage.MessageStore
}

// NewMemoryExtractor creates a new MemoryExtractor.
func NewMemoryExtractor(completions CompletionClient, profiles storage.ProfileStore,
	conversations storage.ConversationStore, messages storage.MessageStore) *MemoryExtractor {
	return &MemoryExtractor{
		completions:   completions,
		profiles:      profiles,
		conversations: conversations,
		messages:      messages,
	}
}

// Extract runs memory extraction for a conversation. It is fire-and-forget:
// every failure is logged and swallowed, since memory is an enrichment and
// must never affect a turn's outcome.
//
// Extraction is skipped for conversations with fewer than three user turns
// and for conversations whose watermark shows no new messages since the last
// run. The watermark advances even when the model finds nothing new, so a
// quiet conversation is not re-processed every turn.
func (e *MemoryExtractor) Extract(ctx context.Context, conversationID, userID string) {
	logger := contextutil.LoggerFromContext(ctx)

	msgs, err := e.messages.ListAll(ctx, conversationID)
	if err != nil {
		logger.ErrorContext(ctx, "memory extraction: failed to load messages", "error", err)
		return
	}

	userTurns := 0
	for _, msg := range msgs {
		if msg.Role == "user" {
			userTurns++
		}
	}
	if userTurns < memoryMinUserMessages {
		return
	}

	conv, err := e.conversations.Get(ctx, conversationID)
	if err != nil {
		logger.ErrorContext(ctx, "memory extraction: failed to load conversation", "error", err)
		return
	}
	if conv.MemoryExtractedAtCount >= len(msgs) {
		return
	}

	profile, err := e.profiles.Get(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "memory extraction: failed to load profile", "error", err)
		return
	}
	if profile == nil {
		// Nowhere to store memory without a profile row.
		return
	}

	prompt := buildMemoryPrompt(profile.ConversationMemory, msgs)

	result, err := e.completions.Chat(ctx,
		[]llm.ChatMessage{{Role: "user", Content: prompt}},
		llm.ChatOptions{Temperature: 0.3, MaxTokens: 800})
	if err != nil {
		logger.ErrorContext(ctx, "memory extraction: model call failed", "error", err)
		return
	}

	result = strings.TrimSpace(result)
	if result == "" || result == memoryNoNewFacts {
		e.advanceWatermark(ctx, conversationID, len(msgs))
		return
	}

	updated := mergeMemory(profile.ConversationMemory, result)

	if err := e.profiles.UpdateConversationMemory(ctx, userID, updated); err != nil {
		logger.ErrorContext(ctx, "memory extraction: failed to store memory", "error", err)
		return
	}
	e.advanceWatermark(ctx, conversationID, len(msgs))

	logger.InfoContext(ctx, "conversation memory updated",
		"conversation_id", conversationID,
		"memory_len", len(updated),
	)
}

func (e *MemoryExtractor) advanceWatermark(ctx context.Context, conversationID string, count int) {
	if err := e.conversations.SetMemoryExtractedCount(ctx, conversationID, count); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx,
			"memory extraction: failed to advance watermark", "error", err)
	}
}

func buildMemoryPrompt(existingMemory string, msgs []storage.Message) string {
	var b strings.Builder
	b.WriteString(memoryExtractionPrompt)

	if existingMemory != "" {
		b.WriteString("\n\nExisting notes:\n")
		b.WriteString(existingMemory)
	}

	b.WriteString("\n\nConversation:\n")
	for _, msg := range msgs {
		speaker := "Assistant"
		if msg.Role == "user" {
			speaker = "User"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// mergeMemory appends the new facts and enforces the hard cap, trimming back
// to the last complete line so a bullet is never cut mid-sentence.
func mergeMemory(existing, extracted string) string {
	merged := extracted
	if existing != "" {
		merged = existing + "\n" + extracted
	}

	if len(merged) > memoryHardCap {
		merged = merged[:memoryHardCap]
		if idx := strings.LastIndex(merged, "\n"); idx > 0 {
			merged = merged[:idx]
		}
	}
	return merged
}
