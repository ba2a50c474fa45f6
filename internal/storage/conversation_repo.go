package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_conversation_store.go -package=mocks hairwise/internal/storage ConversationStore,MessageStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ConversationStore defines the interface for conversation operations.
type ConversationStore interface {
	// Create creates a new conversation for the user and returns it.
	Create(ctx context.Context, userID string) (*Conversation, error)
	// Get gets a conversation by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Conversation, error)
	// ListByUser returns the user's conversations, most recently updated first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Conversation, error)
	// Touch bumps the conversation's updated_at timestamp.
	Touch(ctx context.Context, id string) error
	// SetTitle sets the conversation title.
	SetTitle(ctx context.Context, id, title string) error
	// SetMemoryExtractedCount records the message count at which memory was
	// last extracted, so the extractor does not re-process a conversation.
	SetMemoryExtractedCount(ctx context.Context, id string, count int) error
}

// MessageStore defines the interface for message operations.
type MessageStore interface {
	// Insert inserts a message. The message ID is assigned if empty.
	Insert(ctx context.Context, msg *Message) error
	// ListRecent returns the last `limit` messages of a conversation in
	// chronological order.
	ListRecent(ctx context.Context, conversationID string, limit int) ([]Message, error)
	// ListAll returns all messages of a conversation in chronological order.
	ListAll(ctx context.Context, conversationID string) ([]Message, error)
}

// ConversationRepo provides methods for conversation and message operations.
// It implements both ConversationStore and MessageStore.
type ConversationRepo struct {
	db *sql.DB
}

// NewConversationRepo creates a new ConversationRepo.
func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Create creates a new conversation for the user and returns it.
func (r *ConversationRepo) Create(ctx context.Context, userID string) (*Conversation, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id) VALUES (?, ?)`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return r.Get(ctx, id)
}

// Get gets a conversation by ID. Returns ErrNotFound if not found.
func (r *ConversationRepo) Get(ctx context.Context, id string) (*Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, COALESCE(title, ''), message_count, memory_extracted_at_count, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)

	var conv Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.MessageCount,
		&conv.MemoryExtractedAtCount, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

// ListByUser returns the user's conversations, most recently updated first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, COALESCE(title, ''), message_count, memory_extracted_at_count, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.MessageCount,
			&conv.MemoryExtractedAtCount, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}
	return conversations, nil
}

// Touch bumps the conversation's updated_at timestamp.
func (r *ConversationRepo) Touch(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// SetTitle sets the conversation title.
func (r *ConversationRepo) SetTitle(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to set conversation title: %w", err)
	}
	return nil
}

// SetMemoryExtractedCount records the message count at which memory was last extracted.
func (r *ConversationRepo) SetMemoryExtractedCount(ctx context.Context, id string, count int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET memory_extracted_at_count = ? WHERE id = ?`, count, id)
	if err != nil {
		return fmt.Errorf("failed to set memory extracted count: %w", err)
	}
	return nil
}

// Insert inserts a message. The message ID is assigned if empty, and the
// parent conversation's message count is kept in step.
func (r *ConversationRepo) Insert(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, image_url) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, nullable(msg.ImageURL))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + 1 WHERE id = ?`, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to update message count: %w", err)
	}
	return nil
}

// ListRecent returns the last `limit` messages of a conversation in chronological order.
func (r *ConversationRepo) ListRecent(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, COALESCE(image_url, ''), created_at FROM (
		   SELECT * FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		 ) ORDER BY created_at ASC, id ASC`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	return scanMessages(rows)
}

// ListAll returns all messages of a conversation in chronological order.
func (r *ConversationRepo) ListAll(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, COALESCE(image_url, ''), created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer func() {
		_ = rows.Close()
	}()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.ImageURL, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// nullable maps an empty string to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
