package rag

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// sourceTypeLabels maps source categories to their display names in the
// user-facing source list.
var sourceTypeLabels = map[string]string{
	SourceTypeBook:        "Reference Book",
	SourceTypeProductList: "Product Matrix",
	SourceTypeFAQ:         "FAQ",
	SourceTypeTranscript:  "Course Transcript",
	SourceTypeLiveCall:    "Live Consultation",
	SourceTypeCommunityQA: "Community Q&A",
}

// snippetMaxRunes bounds the preview text of a citation source.
const snippetMaxRunes = 200

// BuildCitations turns the evidence set into the user-facing source list.
// Indices are 1-based and dense, matching the [N] numbering the model sees
// in its prompt context.
func BuildCitations(evidence []RetrievedChunk) []CitationSource {
	if len(evidence) == 0 {
		return nil
	}

	sources := make([]CitationSource, len(evidence))
	for i, chunk := range evidence {
		label, ok := sourceTypeLabels[chunk.SourceType]
		if !ok {
			label = chunk.SourceType
		}
		sources[i] = CitationSource{
			Index:      i + 1,
			SourceType: chunk.SourceType,
			Label:      label,
			SourceName: chunk.SourceName,
			Snippet:    snippet(chunk.Content),
		}
	}
	return sources
}

func snippet(content string) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= snippetMaxRunes {
		return string(runes)
	}
	return string(runes[:snippetMaxRunes]) + "…"
}

var citationMarkerRe = regexp.MustCompile(`\[(\d+)\]`)

// RenumberCitations rewrites the inline [N] markers of a finished response
// into first-appearance order and reorders the source list to match.
//
// Only markers referencing an existing source are touched; out-of-range
// numbers like [17] stay as literal text. Sources the response never cited
// are appended after the cited ones, continuing the numbering, so the count
// of sources never changes. Applying the function to its own output is a
// no-op.
func RenumberCitations(text string, sources []CitationSource) (string, []CitationSource) {
	if len(sources) == 0 {
		return text, sources
	}

	// Map old index -> new index in order of first appearance.
	oldToNew := make(map[int]int)
	for _, match := range citationMarkerRe.FindAllStringSubmatch(text, -1) {
		old, err := strconv.Atoi(match[1])
		if err != nil || old < 1 || old > len(sources) {
			continue
		}
		if _, seen := oldToNew[old]; !seen {
			oldToNew[old] = len(oldToNew) + 1
		}
	}
	if len(oldToNew) == 0 {
		return text, sources
	}

	// Fast path: every cited marker already carries its final number.
	identity := true
	for old, updated := range oldToNew {
		if old != updated {
			identity = false
			break
		}
	}

	if !identity {
		text = citationMarkerRe.ReplaceAllStringFunc(text, func(marker string) string {
			old, err := strconv.Atoi(marker[1 : len(marker)-1])
			if err != nil {
				return marker
			}
			updated, ok := oldToNew[old]
			if !ok {
				return marker
			}
			return fmt.Sprintf("[%d]", updated)
		})
	}

	// Cited sources first in appearance order, then the uncited remainder in
	// original order.
	reordered := make([]CitationSource, len(oldToNew), len(sources))
	for old, updated := range oldToNew {
		src := sources[old-1]
		src.Index = updated
		reordered[updated-1] = src
	}
	next := len(oldToNew) + 1
	for i, src := range sources {
		if _, cited := oldToNew[i+1]; cited {
			continue
		}
		src.Index = next
		next++
		reordered = append(reordered, src)
	}

	return text, reordered
}
