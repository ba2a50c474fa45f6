package rag

import (
	"sort"
	"strings"

	"hairwise/internal/storage"
)

const (
	// profileBoostFactor is the multiplicative bonus for chunks whose
	// hair-texture tag matches the user's profile. A soft signal: chunks
	// without the tag stay in, just ranked lower.
	profileBoostFactor = 1.15

	// containmentRatio is the fraction of the shorter text that must appear
	// verbatim inside the longer text for two chunks to count as duplicates.
	containmentRatio = 0.8
)

// metadataHairTexture is the chunk metadata key carrying the hair-texture tag.
const metadataHairTexture = "hair_texture"

// Rerank boosts, sorts and deduplicates candidates down to finalCount.
// Pure and deterministic: ties keep the original candidate order.
//
// Step 1: candidates whose hair_texture metadata matches the profile's get a
// fixed multiplicative boost on their weighted score.
// Step 2: stable sort by boosted score, descending.
// Step 3: drop candidates that substantially overlap an already-kept chunk
// (the higher-ranked one stays), stopping once finalCount survive.
func Rerank(candidates []RetrievedChunk, profile *storage.HairProfile, finalCount int) []RetrievedChunk {
	if finalCount <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]RetrievedChunk, len(candidates))
	for i, chunk := range candidates {
		score := chunk.WeightedSimilarity
		if score == 0 {
			score = chunk.Similarity
		}
		if profile != nil && profile.HairTexture != "" &&
			chunk.Metadata[metadataHairTexture] == profile.HairTexture {
			score *= profileBoostFactor
		}
		chunk.WeightedSimilarity = score
		scored[i] = chunk
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].WeightedSimilarity > scored[j].WeightedSimilarity
	})

	kept := make([]RetrievedChunk, 0, finalCount)
	for _, chunk := range scored {
		duplicate := false
		for _, existing := range kept {
			if isNearDuplicate(chunk.Content, existing.Content) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, chunk)
		}
		if len(kept) >= finalCount {
			break
		}
	}

	return kept
}

// isNearDuplicate reports whether two chunk texts substantially overlap.
//
// The test is asymmetric containment: slide a window sized at 80% of the
// shorter text across the shorter text; if any window appears verbatim in the
// longer text, the pair overlaps enough to deduplicate. This catches chunks
// that were split differently during ingestion without an exact match.
// An empty shorter text is a degenerate chunk and counts as a duplicate of
// everything.
func isNearDuplicate(a, b string) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if len(shorter) == 0 {
		return true
	}

	windowSize := int(float64(len(shorter)) * containmentRatio)
	if windowSize == 0 {
		windowSize = 1
	}

	for i := 0; i+windowSize <= len(shorter); i++ {
		if strings.Contains(longer, shorter[i:i+windowSize]) {
			return true
		}
	}
	return false
}
