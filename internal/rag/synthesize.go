package rag

import (
	"context"
	"fmt"
	"strings"

	"hairwise/internal/llm"
	"hairwise/internal/storage"
)

// historyWindow is how many trailing conversation messages accompany the
// prompt. Older context lives in the extracted profile memory instead.
const historyWindow = 10

// SynthesizeParams carries everything the synthesizer needs for one turn.
type SynthesizeParams struct {
	UserMessage   string
	History       []storage.Message
	Profile       *storage.HairProfile
	Evidence      []RetrievedChunk
	ImageAnalysis string
	// Products is nil when the turn resolved no products at all; the prompt
	// then stays silent on the catalog. An empty non-nil slice means product
	// matching ran and found nothing, which the model must say honestly.
	Products []storage.Product
	Intent   Intent
	// ConsultationMode instructs the model to ask clarifying questions
	// before naming any product.
	ConsultationMode bool
}

// Synthesizer assembles the full prompt for a turn and streams the model's
// response.
type Synthesizer struct {
	completions CompletionClient
}

// NewSynthesizer creates a new Synthesizer.
func NewSynthesizer(completions CompletionClient) *Synthesizer {
	return &Synthesizer{completions: completions}
}

// Synthesize builds the system prompt from the params, appends the recent
// history and the user message, and returns the model's token stream. The
// returned stream must be drained or closed by the caller.
func (s *Synthesizer) Synthesize(ctx context.Context, params SynthesizeParams) *TokenStream {
	system := buildSystemPrompt(params)

	messages := make([]llm.ChatMessage, 0, historyWindow+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: system})

	history := params.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, msg := range history {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		messages = append(messages, llm.ChatMessage{Role: msg.Role, Content: msg.Content})
	}

	messages = append(messages, llm.ChatMessage{Role: "user", Content: params.UserMessage})

	return newTokenStream(ctx, func(ctx context.Context, emit func(token string) error) error {
		return s.completions.StreamChat(ctx, messages, emit)
	})
}

func buildSystemPrompt(params SynthesizeParams) string {
	prompt := systemPrompt

	prompt = strings.Replace(prompt, placeholderUserProfile,
		formatUserProfile(params.Profile, params.ConsultationMode), 1)

	ragContext := formatEvidence(params.Evidence)
	if params.Products != nil {
		ragContext += formatProducts(params.Products)
	}
	prompt = strings.Replace(prompt, placeholderRAGContext, ragContext, 1)

	imageBlock := "No image uploaded."
	if params.ImageAnalysis != "" {
		imageBlock = "Analysis of the uploaded image:\n" + params.ImageAnalysis
	}
	prompt = strings.Replace(prompt, placeholderImageAnalysis, imageBlock, 1)

	return prompt
}

// formatUserProfile renders the profile as labeled lines. The two
// degenerate cases (no profile row, empty profile row) get explicit notices
// so the model asks instead of guessing.
func formatUserProfile(profile *storage.HairProfile, consultationMode bool) string {
	if profile == nil {
		return "No hair profile on file. Ask the user about their hair details when relevant."
	}

	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	addList := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+": "+strings.Join(values, ", "))
		}
	}

	add("Hair type", profile.HairType)
	add("Hair texture", profile.HairTexture)
	add("Hair thickness", profile.Thickness)
	addList("Concerns", profile.Concerns)
	addList("Goals", profile.Goals)
	add("Wash frequency", profile.WashFrequency)
	add("Heat styling", profile.HeatStyling)
	addList("Styling tools", profile.StylingTools)
	add("Current products", profile.ProductsUsed)
	add("Additional notes", profile.AdditionalNotes)

	result := "Hair profile exists but no details filled in yet."
	if len(parts) > 0 {
		result = strings.Join(parts, "\n")
	}

	if profile.ConversationMemory != "" {
		result += "\n\nNotes from earlier conversations:\n" + profile.ConversationMemory
	}

	if consultationMode {
		result += "\n\n(NOTE: This is the beginning of the conversation. First ask 2-3 targeted questions to understand the situation. Do NOT name any specific products yet, including the catalog products below. Recommendations come once you have enough context.)"
	}

	return result
}

// formatEvidence renders the evidence set as numbered context blocks. The
// [N] numbers are what the model cites inline.
func formatEvidence(evidence []RetrievedChunk) string {
	if len(evidence) == 0 {
		return "No additional information available from the knowledge base."
	}

	blocks := make([]string, len(evidence))
	for i, chunk := range evidence {
		label, ok := sourceTypeLabels[chunk.SourceType]
		if !ok {
			label = chunk.SourceType
		}
		source := label
		if chunk.SourceName != "" {
			source = fmt.Sprintf("%s – %s", label, chunk.SourceName)
		}
		blocks[i] = fmt.Sprintf("[%d] (%s):\n%s", i+1, source, chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func formatProducts(products []storage.Product) string {
	if len(products) == 0 {
		return "\n\nNo matching products found in the catalog. Do NOT name any specific products. Tell the user honestly that you have no fitting product at hand and ask for more details."
	}

	lines := make([]string, 0, len(products)*4)
	for _, p := range products {
		head := "- **" + p.Name + "**"
		if p.Brand != "" {
			head += " by " + p.Brand
		}
		lines = append(lines, head)
		switch {
		case p.ShortDescription != "":
			lines = append(lines, "  "+p.ShortDescription)
		case p.Description != "":
			lines = append(lines, "  "+p.Description)
		}
		if p.PriceEUR > 0 {
			lines = append(lines, fmt.Sprintf("  Price: %.2f EUR", p.PriceEUR))
		}
		if len(p.Tags) > 0 {
			lines = append(lines, "  Tags: "+strings.Join(p.Tags, ", "))
		}
	}

	return "\n\nMatching products from our catalog:\n" + strings.Join(lines, "\n") +
		"\n\nIMPORTANT: Use the EXACT product names (as written above) when you mention them. The names are rendered as clickable links in the app."
}
