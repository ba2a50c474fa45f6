package rag

import (
	"strings"
	"testing"

	"hairwise/internal/storage"
)

func evidenceChunk(id, sourceType, sourceName, content string) RetrievedChunk {
	return RetrievedChunk{
		ChunkRecord: storage.ChunkRecord{
			ID:         id,
			SourceType: sourceType,
			SourceName: sourceName,
			Content:    content,
		},
	}
}

func TestBuildCitations(t *testing.T) {
	evidence := []RetrievedChunk{
		evidenceChunk("c1", SourceTypeBook, "Chapter 3", "Porosity determines how fast hair absorbs moisture."),
		evidenceChunk("c2", SourceTypeCommunityQA, "", "A member asked about porosity tests."),
		evidenceChunk("c3", "unknown_type", "Misc", "Some content."),
	}

	sources := BuildCitations(evidence)

	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(sources))
	}
	for i, src := range sources {
		if src.Index != i+1 {
			t.Errorf("source %d: index = %d, want %d", i, src.Index, i+1)
		}
	}
	if sources[0].Label != "Reference Book" {
		t.Errorf("book label = %q, want Reference Book", sources[0].Label)
	}
	if sources[1].Label != "Community Q&A" {
		t.Errorf("community label = %q", sources[1].Label)
	}
	// Unknown source types fall back to the raw category name.
	if sources[2].Label != "unknown_type" {
		t.Errorf("unknown label = %q, want raw type", sources[2].Label)
	}
	if sources[0].SourceName != "Chapter 3" {
		t.Errorf("source name = %q", sources[0].SourceName)
	}
}

func TestBuildCitationsSnippetTruncation(t *testing.T) {
	long := strings.Repeat("ü", 300)
	sources := BuildCitations([]RetrievedChunk{evidenceChunk("c1", SourceTypeBook, "", long)})

	snippet := []rune(sources[0].Snippet)
	// 200 runes plus the ellipsis.
	if len(snippet) != 201 {
		t.Errorf("snippet length = %d runes, want 201", len(snippet))
	}
	if snippet[len(snippet)-1] != '…' {
		t.Errorf("snippet should end with ellipsis")
	}
}

func TestBuildCitationsEmpty(t *testing.T) {
	if sources := BuildCitations(nil); sources != nil {
		t.Errorf("expected nil for empty evidence, got %v", sources)
	}
}

func threeSources() []CitationSource {
	return []CitationSource{
		{Index: 1, SourceType: SourceTypeBook, Label: "Reference Book", Snippet: "first"},
		{Index: 2, SourceType: SourceTypeFAQ, Label: "FAQ", Snippet: "second"},
		{Index: 3, SourceType: SourceTypeTranscript, Label: "Course Transcript", Snippet: "third"},
	}
}

func TestRenumberCitationsAppearanceOrder(t *testing.T) {
	text := "Porosity matters [2]. Seal with oil [2], then rinse cold [1]."

	gotText, gotSources := RenumberCitations(text, threeSources())

	wantText := "Porosity matters [1]. Seal with oil [1], then rinse cold [2]."
	if gotText != wantText {
		t.Errorf("text = %q, want %q", gotText, wantText)
	}

	if len(gotSources) != 3 {
		t.Fatalf("source count changed: got %d, want 3", len(gotSources))
	}
	// Source 2 is now first, source 1 second, uncited source 3 appended.
	if gotSources[0].Snippet != "second" || gotSources[0].Index != 1 {
		t.Errorf("first source = %+v", gotSources[0])
	}
	if gotSources[1].Snippet != "first" || gotSources[1].Index != 2 {
		t.Errorf("second source = %+v", gotSources[1])
	}
	if gotSources[2].Snippet != "third" || gotSources[2].Index != 3 {
		t.Errorf("uncited source = %+v", gotSources[2])
	}
}

func TestRenumberCitationsIdempotent(t *testing.T) {
	text := "A claim [2] and another [1]."

	once, onceSources := RenumberCitations(text, threeSources())
	twice, twiceSources := RenumberCitations(once, onceSources)

	if twice != once {
		t.Errorf("second pass changed text: %q -> %q", once, twice)
	}
	for i := range onceSources {
		if twiceSources[i] != onceSources[i] {
			t.Errorf("second pass changed source %d: %+v -> %+v", i, onceSources[i], twiceSources[i])
		}
	}
}

func TestRenumberCitationsOutOfRange(t *testing.T) {
	text := "Valid [1], bogus [17], also [0]."

	gotText, gotSources := RenumberCitations(text, threeSources())

	if !strings.Contains(gotText, "[17]") || !strings.Contains(gotText, "[0]") {
		t.Errorf("out-of-range markers must stay literal, got %q", gotText)
	}
	if !strings.Contains(gotText, "[1]") {
		t.Errorf("valid marker lost: %q", gotText)
	}
	if len(gotSources) != 3 {
		t.Errorf("source count changed: %d", len(gotSources))
	}
}

func TestRenumberCitationsNoMarkers(t *testing.T) {
	text := "No citations in this answer."
	gotText, gotSources := RenumberCitations(text, threeSources())

	if gotText != text {
		t.Errorf("text changed: %q", gotText)
	}
	if len(gotSources) != 3 {
		t.Errorf("source count changed: %d", len(gotSources))
	}
	// Without any markers the original order must hold.
	if gotSources[0].Snippet != "first" {
		t.Errorf("order changed without markers: %+v", gotSources[0])
	}
}

func TestRenumberCitationsEmptySources(t *testing.T) {
	text := "Some answer [1]."
	gotText, gotSources := RenumberCitations(text, nil)
	if gotText != text || gotSources != nil {
		t.Errorf("expected no-op for empty sources")
	}
}
