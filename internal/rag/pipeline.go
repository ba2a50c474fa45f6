package rag

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"hairwise/internal/contextutil"
	"hairwise/internal/storage"
)

// imageAnalysisFallback stands in for a failed vision call so the turn can
// continue with the model asking for a description instead.
const imageAnalysisFallback = "Image analysis failed. Please ask the user to describe their hair instead."

// productIntents are the intents for which catalog products are matched.
var productIntents = map[Intent]bool{
	IntentProductRecommendation: true,
	IntentRoutineHelp:           true,
	IntentHairCareAdvice:        true,
}

// Pipeline orchestrates one advisory turn: image analysis, intent
// classification, profile load, evidence retrieval, product matching and
// streaming synthesis.
type Pipeline struct {
	classifier  *Classifier
	retriever   *Retriever
	matcher     *ProductMatcher
	synthesizer *Synthesizer
	gate        ProductGate
	vision      ImageAnalyzer

	profiles      storage.ProfileStore
	conversations storage.ConversationStore
	messages      storage.MessageStore

	historyLimit int
}

// PipelineDeps bundles the pipeline's collaborators. All fields are required
// except Vision, which may be nil when no vision model is configured.
type PipelineDeps struct {
	Classifier  *Classifier
	Retriever   *Retriever
	Matcher     *ProductMatcher
	Synthesizer *Synthesizer
	Gate        ProductGate
	Vision      ImageAnalyzer

	Profiles      storage.ProfileStore
	Conversations storage.ConversationStore
	Messages      storage.MessageStore

	HistoryLimit int
}

// NewPipeline creates a new Pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		classifier:    deps.Classifier,
		retriever:     deps.Retriever,
		matcher:       deps.Matcher,
		synthesizer:   deps.Synthesizer,
		gate:          deps.Gate,
		vision:        deps.Vision,
		profiles:      deps.Profiles,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		historyLimit:  deps.HistoryLimit,
	}
}

// Run executes one turn and returns the token stream plus the synchronous
// turn outputs. The caller owns the stream and must drain or close it.
//
// Only conversation resolution and synthesis startup can fail a turn; every
// enrichment stage (vision, classification, retrieval, product matching)
// degrades to a weaker answer instead.
func (p *Pipeline) Run(ctx context.Context, req TurnRequest) (*PipelineResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(req.Message) == "" {
		return nil, WrapError(ErrInvalidInput, "empty message")
	}
	if req.UserID == "" {
		return nil, WrapError(ErrInvalidInput, "missing user id")
	}
	hasImage := req.ImageURL != ""

	var imageAnalysis string
	if hasImage {
		if p.vision == nil {
			imageAnalysis = imageAnalysisFallback
		} else if analysis, err := p.vision.AnalyzeImage(ctx, req.ImageURL, req.Message); err != nil {
			logger.ErrorContext(ctx, "image analysis failed, continuing with fallback", "error", err)
			imageAnalysis = imageAnalysisFallback
		} else {
			imageAnalysis = analysis
		}
	}

	// Classification and profile load are independent.
	var (
		intent  Intent
		profile *storage.HairProfile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		intent = p.classifier.Classify(gctx, req.Message, hasImage)
		return nil
	})
	g.Go(func() error {
		var err error
		profile, err = p.profiles.Get(gctx, req.UserID)
		if err != nil {
			logger.ErrorContext(gctx, "failed to load hair profile, continuing without", "error", err)
			profile = nil
		}
		return nil
	})
	_ = g.Wait()

	// For product intents the profile's hair texture doubles as a metadata
	// pre-filter on the vector search.
	var metadata map[string]string
	if productIntents[intent] && profile != nil {
		if profile.HairTexture != "" {
			metadata = map[string]string{metadataHairTexture: profile.HairTexture}
		} else {
			logger.WarnContext(ctx, "profile has no hair texture, skipping metadata filter", "user_id", req.UserID)
		}
	}

	evidence := p.retriever.Retrieve(ctx, req.Message, RetrieveOptions{
		Intent:   intent,
		Profile:  profile,
		Metadata: metadata,
	})

	// Conversation state. A stale or foreign conversation id degrades to a
	// fresh conversation; the turn must still answer.
	conversationID := req.ConversationID
	var history []storage.Message
	if conversationID != "" {
		conv, err := p.conversations.Get(ctx, conversationID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			logger.WarnContext(ctx, "conversation id does not resolve, starting fresh", "conversation_id", conversationID)
			conversationID = ""
		case err != nil:
			return nil, WrapError(err, "failed to load conversation")
		case conv.UserID != req.UserID:
			logger.WarnContext(ctx, "conversation belongs to another user, starting fresh", "conversation_id", conversationID)
			conversationID = ""
		default:
			history, err = p.messages.ListRecent(ctx, conversationID, p.historyLimit)
			if err != nil {
				logger.ErrorContext(ctx, "failed to load history, continuing without", "error", err)
				history = nil
			}
		}
	}
	if conversationID == "" {
		conv, err := p.conversations.Create(ctx, req.UserID)
		if err != nil {
			return nil, WrapError(err, "failed to create conversation")
		}
		conversationID = conv.ID
	}

	withhold := p.gate.WithholdProducts(req.Message, history, hasImage)

	var products []storage.Product
	if productIntents[intent] && !withhold {
		products = p.matcher.Match(ctx, req.Message, profile)
		if products == nil {
			// Matching ran and found nothing; the prompt must say so.
			products = []storage.Product{}
		}
	}

	sources := BuildCitations(evidence)

	stream := p.synthesizer.Synthesize(ctx, SynthesizeParams{
		UserMessage:      req.Message,
		History:          history,
		Profile:          profile,
		Evidence:         evidence,
		ImageAnalysis:    imageAnalysis,
		Products:         products,
		Intent:           intent,
		ConsultationMode: withhold,
	})

	logger.InfoContext(ctx, "pipeline turn started",
		"conversation_id", conversationID,
		"intent", intent,
		"evidence", len(evidence),
		"products", len(products),
		"consultation_mode", withhold,
	)

	return &PipelineResult{
		Stream:         stream,
		ConversationID: conversationID,
		Intent:         intent,
		Products:       products,
		Sources:        sources,
	}, nil
}
