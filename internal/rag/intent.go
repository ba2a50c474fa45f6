package rag

import (
	"context"
	"strings"
	"time"

	"hairwise/internal/contextutil"
	"hairwise/internal/llm"
)

// validIntents is the closed label set the classifier may return.
var validIntents = map[Intent]struct{}{
	IntentProductRecommendation: {},
	IntentHairCareAdvice:        {},
	IntentDiagnosis:             {},
	IntentRoutineHelp:           {},
	IntentPhotoAnalysis:         {},
	IntentIngredientQuestion:    {},
	IntentGeneralChat:           {},
	IntentFollowup:              {},
}

// Classifier maps a user message to one of the fixed intent labels with a
// single bounded completion call.
type Classifier struct {
	completions CompletionClient
	timeout     time.Duration
}

// NewClassifier creates a new intent classifier. timeout bounds the total
// classification time, including the single re-prompt.
func NewClassifier(completions CompletionClient, timeout time.Duration) *Classifier {
	return &Classifier{
		completions: completions,
		timeout:     timeout,
	}
}

// Classify classifies the intent of a user message.
//
// A message with an attached image is always photo_analysis, without a model
// call. Malformed model output gets exactly one re-prompt; any remaining
// failure (including timeout) falls back to general_chat, which routes
// unrestricted, so a broken classifier never blocks or narrows a turn.
func (c *Classifier) Classify(ctx context.Context, message string, hasImage bool) Intent {
	if hasImage {
		return IntentPhotoAnalysis
	}

	logger := contextutil.LoggerFromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	intent, err := c.classifyOnce(ctx, intentClassificationPrompt+message)
	if err == nil {
		return intent
	}
	logger.WarnContext(ctx, "intent classification attempt failed", "error", err)

	// One re-prompt with a stricter instruction, then fail closed.
	intent, err = c.classifyOnce(ctx, intentClassificationRetryPrompt+message)
	if err != nil {
		logger.WarnContext(ctx, "intent classification failed, defaulting to general_chat", "error", err)
		return IntentGeneralChat
	}
	return intent
}

func (c *Classifier) classifyOnce(ctx context.Context, prompt string) (Intent, error) {
	raw, err := c.completions.Chat(ctx,
		[]llm.ChatMessage{{Role: "user", Content: prompt}},
		llm.ChatOptions{Temperature: 0, MaxTokens: 30})
	if err != nil {
		return "", WrapError(err, "classification call failed")
	}

	label := Intent(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := validIntents[label]; !ok {
		return "", WrapError(ErrInvalidInput, "unexpected label "+string(label))
	}
	return label, nil
}
