package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func insertChunk(t *testing.T, db *sql.DB, id, sourceType, content, metadata string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO content_chunks (id, source_type, source_name, content, metadata) VALUES (?, ?, ?, ?, ?)`,
		id, sourceType, "Chapter 1", content, metadata)
	if err != nil {
		t.Fatalf("failed to insert chunk fixture: %v", err)
	}
}

func TestChunkGetByID(t *testing.T) {
	db := newTestDB(t)
	insertChunk(t, db, "c1", "book", "Porosity determines moisture uptake.", `{"hair_texture":"coily"}`)

	repo := NewChunkRepo(db)
	chunk, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if chunk.SourceType != "book" || chunk.Content != "Porosity determines moisture uptake." {
		t.Errorf("unexpected chunk: %+v", chunk)
	}
	if chunk.Metadata["hair_texture"] != "coily" {
		t.Errorf("metadata not decoded: %v", chunk.Metadata)
	}
}

func TestChunkGetByIDNotFound(t *testing.T) {
	repo := NewChunkRepo(newTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestChunkGetByIDsPreservesInputOrder(t *testing.T) {
	db := newTestDB(t)
	insertChunk(t, db, "c1", "book", "first", "{}")
	insertChunk(t, db, "c2", "qa", "second", "{}")
	insertChunk(t, db, "c3", "transcript", "third", "{}")

	repo := NewChunkRepo(db)

	// The input order is the similarity ranking and must survive hydration;
	// missing IDs are silently skipped.
	chunks, err := repo.GetByIDs(context.Background(), []string{"c3", "missing", "c1"})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "c3" || chunks[1].ID != "c1" {
		t.Errorf("input order not preserved: %s, %s", chunks[0].ID, chunks[1].ID)
	}
}

func TestChunkGetByIDsEmptyInput(t *testing.T) {
	repo := NewChunkRepo(newTestDB(t))

	chunks, err := repo.GetByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
}

func TestChunkMalformedMetadataDegrades(t *testing.T) {
	db := newTestDB(t)
	insertChunk(t, db, "c1", "book", "content", `not json`)

	repo := NewChunkRepo(db)
	chunk, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if chunk.Metadata == nil || len(chunk.Metadata) != 0 {
		t.Errorf("expected empty metadata for malformed JSON, got %v", chunk.Metadata)
	}
}
