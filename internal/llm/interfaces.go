// Package llm provides the external language-model collaborators: a
// provider-neutral completion client plus the intent parser and advice
// generator built on top of it. Both collaborators are reached over HTTP
// and protected by a circuit breaker and a rate limiter; callers must
// tolerate failure and fall back to deterministic text.
package llm

import (
	"context"

	"github.com/kinvault/kinvault/pkg/types"
)

// TextGenerator is the interface for single-string LLM completion.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// IntentParser turns a natural-language command into a structured intent.
type IntentParser interface {
	Parse(ctx context.Context, text string) (*types.Intent, error)
}

// AdviceGenerator produces free-text advice or summaries from a prompt
// context. Call sites substitute deterministic fallbacks when it fails.
type AdviceGenerator interface {
	Generate(ctx context.Context, promptContext string) (string, error)
}
