package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_product_store.go -package=mocks hairwise/internal/storage ProductStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ProductStore defines the read interface for the product catalog.
type ProductStore interface {
	// GetByIDs gets active products for the given IDs, preserving the input
	// order. Missing or inactive IDs are skipped, not errors.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// ProductRepo provides read access to the product catalog.
// It implements the ProductStore interface.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo creates a new ProductRepo.
func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// GetByIDs gets active products for the given IDs, preserving the input order.
func (r *ProductRepo) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
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
		`SELECT id, name, COALESCE(brand, ''), COALESCE(category, ''), COALESCE(description, ''),
		        COALESCE(short_description, ''), COALESCE(price_eur, 0), currency,
		        tags, suitable_hair_types, suitable_concerns, is_active
		 FROM products WHERE id IN (`+placeholders+`) AND is_active = 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	byID := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		var tagsJSON, hairTypesJSON, concernsJSON string
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description,
			&p.ShortDescription, &p.PriceEUR, &p.Currency,
			&tagsJSON, &hairTypesJSON, &concernsJSON, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.Tags = decodeStringList(tagsJSON)
		p.SuitableHairTypes = decodeStringList(hairTypesJSON)
		p.SuitableConcerns = decodeStringList(concernsJSON)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	// Preserve the caller's (similarity-ranked) order.
	result := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}
