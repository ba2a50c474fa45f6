package rag

import (
	"context"

	"hairwise/internal/contextutil"
	"hairwise/internal/storage"
	"hairwise/internal/vectorstore"
)

// sourceAuthorityWeights scales raw similarity by how much a source category
// is trusted: curated material ranks above supplementary material at equal
// similarity. The vector store itself has no weighting hook, so the
// retriever applies these after hydration.
var sourceAuthorityWeights = map[string]float32{
	SourceTypeBook:        1.0,
	SourceTypeProductList: 1.0,
	SourceTypeFAQ:         0.95,
	SourceTypeTranscript:  0.9,
	SourceTypeLiveCall:    0.9,
	SourceTypeCommunityQA: 0.85,
}

// RetrieveOptions narrows a retrieval.
type RetrieveOptions struct {
	// Intent drives source routing. Empty = unrestricted.
	Intent Intent
	// Profile enables the reranker's affinity boost.
	Profile *storage.HairProfile
	// Metadata restricts candidates to matching payload tags. Callers must
	// only set this for intents whose routed categories actually carry the
	// tags, otherwise the search silently returns nothing.
	Metadata map[string]string
	// Count is the final evidence size. Defaults to the configured count.
	Count int
}

// Retriever produces the evidence set for a turn: embed the query, route by
// intent, search broadly, hydrate chunk rows, weight by source authority and
// rerank down to the final count.
type Retriever struct {
	embedder   Embedder
	vectors    vectorstore.VectorStore
	chunks     storage.ChunkStore
	collection string

	// candidates/threshold form the broad first pass; finalCount is the
	// default evidence size after reranking.
	candidates int
	threshold  float32
	finalCount int
}

// NewRetriever creates a new Retriever.
func NewRetriever(embedder Embedder, vectors vectorstore.VectorStore, chunks storage.ChunkStore,
	collection string, candidates int, threshold float64, finalCount int) *Retriever {
	return &Retriever{
		embedder:   embedder,
		vectors:    vectors,
		chunks:     chunks,
		collection: collection,
		candidates: candidates,
		threshold:  float32(threshold),
		finalCount: finalCount,
	}
}

// Retrieve returns the reranked evidence set for the query.
//
// Retrieval is best-effort by contract: any failure along the way (embedding,
// vector search, hydration) is logged and yields an empty result, so a turn
// proceeds ungrounded rather than failing. The synthesizer states missing
// evidence explicitly.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrieveOptions) []RetrievedChunk {
	logger := contextutil.LoggerFromContext(ctx)

	count := opts.Count
	if count <= 0 {
		count = r.finalCount
	}

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		logger.ErrorContext(ctx, "failed to embed query, continuing without evidence", "error", err)
		return nil
	}

	sourceTypes := AllowedSources(opts.Intent)

	// Deliberately broader than the final count so the reranker has material
	// to boost and deduplicate.
	hits, err := r.vectors.Search(ctx, r.collection, embedding, r.candidates, vectorstore.SearchOptions{
		ScoreThreshold: r.threshold,
		SourceTypes:    sourceTypes,
		Metadata:       opts.Metadata,
	})
	if err != nil {
		logger.ErrorContext(ctx, "vector search failed, continuing without evidence", "error", err)
		return nil
	}
	if len(hits) == 0 {
		logger.InfoContext(ctx, "no candidates above threshold", "intent", opts.Intent)
		return nil
	}

	ids := make([]string, 0, len(hits))
	scoreByID := make(map[string]float32, len(hits))
	for _, hit := range hits {
		if hit.PointID == "" {
			continue
		}
		ids = append(ids, hit.PointID)
		scoreByID[hit.PointID] = hit.Score
	}

	records, err := r.chunks.GetByIDs(ctx, ids)
	if err != nil {
		logger.ErrorContext(ctx, "failed to hydrate chunks, continuing without evidence", "error", err)
		return nil
	}

	candidates := make([]RetrievedChunk, 0, len(records))
	for _, record := range records {
		similarity := scoreByID[record.ID]
		weight, ok := sourceAuthorityWeights[record.SourceType]
		if !ok {
			weight = 1.0
		}
		candidates = append(candidates, RetrievedChunk{
			ChunkRecord:        record,
			Similarity:         similarity,
			WeightedSimilarity: similarity * weight,
		})
	}

	evidence := Rerank(candidates, opts.Profile, count)

	logger.InfoContext(ctx, "retrieval completed",
		"intent", opts.Intent,
		"candidates", len(candidates),
		"evidence", len(evidence),
	)
	return evidence
}
