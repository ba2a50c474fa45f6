package rag

import (
	"strings"

	"hairwise/internal/storage"
)

// ProductGate decides whether product identities may appear in a response
// yet. The policy is consultation-first: withholding when products would
// have been fine is preferred over recommending before the user's situation
// is understood.
//
// The thresholds are heuristics with no deeper derivation than "short first
// message, no image, no context yet", so they are injected, not hardcoded.
type ProductGate struct {
	// MaxChars and MaxWords bound what counts as a low-information first
	// message. Both must be undercut for the message to qualify.
	MaxChars int
	MaxWords int
}

// WithholdProducts reports whether product identities must be withheld for
// this turn.
//
// Turn 1 (no prior user messages): withhold only for a short, low-information
// message without an image; an image is itself enough context to recommend.
// Turn 2 (exactly one prior user message): always withhold; at least one
// clarifying exchange is required before naming products.
// Turn 3 onward: never withhold on this heuristic.
func (g ProductGate) WithholdProducts(message string, history []storage.Message, hasImage bool) bool {
	priorUserTurns := 0
	for _, msg := range history {
		if msg.Role == "user" {
			priorUserTurns++
		}
	}

	switch priorUserTurns {
	case 0:
		if hasImage {
			return false
		}
		short := len(message) < g.MaxChars
		lowInfo := len(strings.Fields(message)) < g.MaxWords
		return short && lowInfo
	case 1:
		return true
	default:
		return false
	}
}
