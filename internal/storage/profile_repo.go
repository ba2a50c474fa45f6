package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_profile_store.go -package=mocks hairwise/internal/storage ProfileStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ProfileStore defines the interface for hair profile access.
type ProfileStore interface {
	// Get returns the user's hair profile, or (nil, nil) if none exists.
	Get(ctx context.Context, userID string) (*HairProfile, error)
	// UpdateConversationMemory replaces the profile's accumulated
	// conversation memory. Returns ErrNotFound if no profile exists.
	UpdateConversationMemory(ctx context.Context, userID, memory string) error
}

// ProfileRepo provides methods for hair profile operations.
// It implements the ProfileStore interface.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get returns the user's hair profile, or (nil, nil) if none exists.
// An absent profile is an expected state (new user), not an error.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (*HairProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, COALESCE(hair_type, ''), COALESCE(hair_texture, ''), COALESCE(thickness, ''),
		        concerns, goals, COALESCE(wash_frequency, ''), COALESCE(heat_styling, ''), styling_tools,
		        COALESCE(products_used, ''), COALESCE(additional_notes, ''), COALESCE(conversation_memory, ''),
		        updated_at
		 FROM hair_profiles WHERE user_id = ?`, userID)

	var profile HairProfile
	var concernsJSON, goalsJSON, toolsJSON string
	err := row.Scan(&profile.UserID, &profile.HairType, &profile.HairTexture, &profile.Thickness,
		&concernsJSON, &goalsJSON, &profile.WashFrequency, &profile.HeatStyling, &toolsJSON,
		&profile.ProductsUsed, &profile.AdditionalNotes, &profile.ConversationMemory,
		&profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.Concerns = decodeStringList(concernsJSON)
	profile.Goals = decodeStringList(goalsJSON)
	profile.StylingTools = decodeStringList(toolsJSON)

	return &profile, nil
}

// UpdateConversationMemory replaces the profile's accumulated conversation memory.
func (r *ProfileRepo) UpdateConversationMemory(ctx context.Context, userID, memory string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE hair_profiles SET conversation_memory = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		memory, userID)
	if err != nil {
		return fmt.Errorf("failed to update conversation memory: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// decodeStringList decodes a JSON array column, treating malformed or empty
// values as an empty list.
func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}
