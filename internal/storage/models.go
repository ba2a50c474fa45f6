package storage

import "time"

// ChunkRecord is a unit of retrievable knowledge. Rows are written by the
// offline ingestion pipelines; this service only reads them.
type ChunkRecord struct {
	ID         string            // UUID (same as the vector store point ID)
	SourceType string            // "book", "product_list", "qa", "transcript", "live_call", "community_qa"
	SourceName string            // Human-traceable origin, e.g. a chapter or session identifier
	ChunkIndex int               // Position within its source
	Content    string            // Chunk text content
	TokenCount int               // Token count recorded at ingestion time
	Metadata   map[string]string // Open key/value tags, e.g. hair_texture
	CreatedAt  time.Time
}

// HairProfile holds a user's structured hair attributes. Empty string /
// empty slice means the attribute is unknown. Mutated by the onboarding and
// memory-extraction flows; the pipeline itself only reads it.
type HairProfile struct {
	UserID             string
	HairType           string
	HairTexture        string
	Thickness          string
	Concerns           []string
	Goals              []string
	WashFrequency      string
	HeatStyling        string
	StylingTools       []string
	ProductsUsed       string
	AdditionalNotes    string
	ConversationMemory string
	UpdatedAt          time.Time
}

// Product is a read-only catalog entity.
type Product struct {
	ID                string
	Name              string
	Brand             string
	Category          string
	Description       string
	ShortDescription  string
	PriceEUR          float64
	Currency          string
	Tags              []string
	SuitableHairTypes []string
	SuitableConcerns  []string
	IsActive          bool
}

// Conversation groups the messages of one chat thread.
type Conversation struct {
	ID                     string
	UserID                 string
	Title                  string
	MessageCount           int
	MemoryExtractedAtCount int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Message is a single user or assistant turn in a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Content        string
	ImageURL       string
	CreatedAt      time.Time
}
