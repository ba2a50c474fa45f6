package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks hairwise/internal/vectorstore VectorStore

import "context"

// SearchResult represents a single hit from a similarity search.
type SearchResult struct {
	// PointID is the stable point identifier (same UUID as the chunk row).
	PointID string
	// Score is the raw cosine similarity (higher = more relevant).
	Score float32
	// Payload carries the point metadata stored alongside the vector.
	Payload map[string]any
}

// SearchOptions narrows a similarity search.
type SearchOptions struct {
	// ScoreThreshold drops hits scoring below it. Zero means no threshold.
	ScoreThreshold float32
	// SourceTypes restricts hits to points whose source_type payload value is
	// one of the given categories. Nil means all categories.
	SourceTypes []string
	// Metadata requires exact keyword matches on the given payload fields.
	Metadata map[string]string
}

// VectorStore is the similarity-search interface consumed by the retrieval
// pipeline. The store may return fewer than k results.
type VectorStore interface {
	Search(ctx context.Context, collection string, query []float32, k int, opts SearchOptions) ([]SearchResult, error)
}
