package rag

import (
	"context"
	"sort"

	"hairwise/internal/contextutil"
	"hairwise/internal/storage"
	"hairwise/internal/vectorstore"
)

// metadataHairType is the chunk metadata key carrying the suitable hair type
// of a product chunk.
const metadataHairType = "hair_type"

// payloadProductID is the vector payload key linking a product chunk back to
// its catalog row.
const payloadProductID = "product_id"

// ProductMatcher resolves concrete catalog products for a turn by searching
// the product_list category and hydrating the matching catalog rows.
type ProductMatcher struct {
	embedder   Embedder
	vectors    vectorstore.VectorStore
	products   storage.ProductStore
	collection string

	candidates int
	threshold  float32
	maxResults int
}

// NewProductMatcher creates a new ProductMatcher.
func NewProductMatcher(embedder Embedder, vectors vectorstore.VectorStore, products storage.ProductStore,
	collection string, candidates int, threshold float64, maxResults int) *ProductMatcher {
	return &ProductMatcher{
		embedder:   embedder,
		vectors:    vectors,
		products:   products,
		collection: collection,
		candidates: candidates,
		threshold:  float32(threshold),
		maxResults: maxResults,
	}
}

// Match returns catalog products relevant to the query, best first.
//
// Matching is best-effort: any failure is logged and yields an empty result,
// so the turn degrades to advice without product cards instead of failing.
// When the profile carries a hair type, the vector search is restricted to
// product chunks tagged for it; profile concerns are a soft signal applied as
// a post-ranking nudge, never a filter.
func (m *ProductMatcher) Match(ctx context.Context, query string, profile *storage.HairProfile) []storage.Product {
	logger := contextutil.LoggerFromContext(ctx)

	embedding, err := m.embedder.EmbedText(ctx, query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed product query, skipping product match", "error", err)
		return nil
	}

	var metadata map[string]string
	if profile != nil && profile.HairType != "" {
		metadata = map[string]string{metadataHairType: profile.HairType}
	}

	hits, err := m.vectors.Search(ctx, m.collection, embedding, m.candidates, vectorstore.SearchOptions{
		ScoreThreshold: m.threshold,
		SourceTypes:    []string{SourceTypeProductList},
		Metadata:       metadata,
	})
	if err != nil {
		logger.ErrorContext(ctx, "product vector search failed, skipping product match", "error", err)
		return nil
	}

	// Product chunks point at their catalog row via payload; several chunks
	// may describe the same product, so keep the best-scoring one per ID.
	ids := make([]string, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		id, ok := hit.Payload[payloadProductID].(string)
		if !ok || id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil
	}

	matched, err := m.products.GetByIDs(ctx, ids)
	if err != nil {
		logger.ErrorContext(ctx, "failed to hydrate products, skipping product match", "error", err)
		return nil
	}

	if profile != nil && len(profile.Concerns) > 0 {
		matched = rankByConcerns(matched, profile.Concerns)
	}

	if len(matched) > m.maxResults {
		matched = matched[:m.maxResults]
	}
	logger.InfoContext(ctx, "product match completed", "matched", len(matched))
	return matched
}

// rankByConcerns stably reorders products by how many of the user's concerns
// they address. Similarity order breaks ties, so a product with no concern
// overlap still surfaces when nothing better matched.
func rankByConcerns(products []storage.Product, concerns []string) []storage.Product {
	overlap := func(p storage.Product) int {
		n := 0
		for _, concern := range concerns {
			for _, suitable := range p.SuitableConcerns {
				if suitable == concern {
					n++
					break
				}
			}
		}
		return n
	}

	ranked := make([]storage.Product, len(products))
	copy(ranked, products)
	sort.SliceStable(ranked, func(i, j int) bool {
		return overlap(ranked[i]) > overlap(ranked[j])
	})
	return ranked
}
