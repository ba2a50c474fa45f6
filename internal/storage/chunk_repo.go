package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks hairwise/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ChunkStore defines the read interface for content chunks.
type ChunkStore interface {
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// GetByIDs gets chunks for the given IDs, preserving the input order.
	// Missing IDs are skipped, not errors.
	GetByIDs(ctx context.Context, ids []string) ([]ChunkRecord, error)
}

// ChunkRepo provides read access to content chunks.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_type, COALESCE(source_name, ''), chunk_index, content, token_count, metadata, created_at
		 FROM content_chunks WHERE id = ?`, id)

	chunk, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return chunk, nil
}

// GetByIDs gets chunks for the given IDs, preserving the input order.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) ([]ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source_type, COALESCE(source_name, ''), chunk_index, content, token_count, metadata, created_at
		 FROM content_chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[string]ChunkRecord, len(ids))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		byID[chunk.ID] = *chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	// Preserve the caller's (similarity-ranked) order.
	result := make([]ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*ChunkRecord, error) {
	var chunk ChunkRecord
	var metadataJSON string
	if err := row.Scan(&chunk.ID, &chunk.SourceType, &chunk.SourceName, &chunk.ChunkIndex,
		&chunk.Content, &chunk.TokenCount, &metadataJSON, &chunk.CreatedAt); err != nil {
		return nil, err
	}

	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			// Malformed metadata degrades to no tags rather than failing the read.
			chunk.Metadata = map[string]string{}
		}
	}
	if chunk.Metadata == nil {
		chunk.Metadata = map[string]string{}
	}
	return &chunk, nil
}
