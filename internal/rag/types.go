package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_clients.go -package=mocks hairwise/internal/rag CompletionClient,Embedder,ImageAnalyzer

import (
	"context"

	"hairwise/internal/llm"
	"hairwise/internal/storage"
)

// Intent is a closed-set classification of what the user is trying to
// accomplish in a turn.
type Intent string

// The fixed intent label set. Any new label must also get an entry in the
// source routing table (router.go); missing entries route unrestricted.
const (
	IntentProductRecommendation Intent = "product_recommendation"
	IntentHairCareAdvice        Intent = "hair_care_advice"
	IntentDiagnosis             Intent = "diagnosis"
	IntentRoutineHelp           Intent = "routine_help"
	IntentPhotoAnalysis         Intent = "photo_analysis"
	IntentIngredientQuestion    Intent = "ingredient_question"
	IntentGeneralChat           Intent = "general_chat"
	IntentFollowup              Intent = "followup"
)

// RetrievedChunk is a content chunk plus its per-query similarity scores.
// Created per query, never persisted.
type RetrievedChunk struct {
	storage.ChunkRecord

	// Similarity is the raw cosine similarity from the vector store.
	Similarity float32
	// WeightedSimilarity is the score after source-authority weighting and
	// any profile-affinity boost.
	WeightedSimilarity float32
}

// CitationSource describes one entry of the user-facing source list.
type CitationSource struct {
	Index      int    `json:"index"` // 1-based, matches inline [N] markers
	SourceType string `json:"source_type"`
	Label      string `json:"label"` // Display name for the source type
	SourceName string `json:"source_name,omitempty"`
	Snippet    string `json:"snippet"`
}

// TurnRequest is the input for one pipeline turn.
type TurnRequest struct {
	UserID         string
	ConversationID string // empty = start a new conversation
	Message        string
	ImageURL       string
}

// PipelineResult is the output contract of one turn. The stream must be
// drained (or closed) by the caller; the synchronous fields are valid as soon
// as Run returns.
type PipelineResult struct {
	Stream         *TokenStream
	ConversationID string
	Intent         Intent
	Products       []storage.Product
	Sources        []CitationSource
}

// CompletionClient is the completion-model interface consumed by the
// pipeline: bounded non-streaming calls plus the streaming synthesis call.
type CompletionClient interface {
	Chat(ctx context.Context, messages []llm.ChatMessage, opts llm.ChatOptions) (string, error)
	StreamChat(ctx context.Context, messages []llm.ChatMessage, callback func(chunk string) error) error
}

// Embedder turns free text into a fixed-dimension vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageAnalyzer analyzes an uploaded photo and returns a textual description.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL, userHint string) (string, error)
}
