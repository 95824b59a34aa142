package llm

import (
	"context"
	"fmt"

	"github.com/kinvault/kinvault/pkg/types"
)

// Parser implements IntentParser over a TextGenerator.
type Parser struct {
	gen TextGenerator
}

// NewParser creates an intent parser backed by the given completion client.
func NewParser(gen TextGenerator) *Parser {
	return &Parser{gen: gen}
}

// Parse sends the command text to the model and decodes the intent.
// A provider failure surfaces as "not available" so the workflow error
// node can produce the matching message.
func (p *Parser) Parse(ctx context.Context, text string) (*types.Intent, error) {
	raw, err := p.gen.Complete(ctx, IntentPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("intent parser not available: %w", err)
	}

	intent, err := ParseIntentResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("intent parsing validation failed: %w", err)
	}

	return intent, nil
}

// Advisor implements AdviceGenerator over a TextGenerator.
type Advisor struct {
	gen TextGenerator
}

// NewAdvisor creates an advice generator backed by the given completion client.
func NewAdvisor(gen TextGenerator) *Advisor {
	return &Advisor{gen: gen}
}

// Generate produces advice text for the prompt context. Callers must treat
// errors as non-fatal and substitute a deterministic fallback.
func (a *Advisor) Generate(ctx context.Context, promptContext string) (string, error) {
	out, err := a.gen.Complete(ctx, AdvicePrompt(promptContext))
	if err != nil {
		return "", fmt.Errorf("advice generator not available: %w", err)
	}
	return out, nil
}

// Compile-time assertions.
var (
	_ IntentParser    = (*Parser)(nil)
	_ AdviceGenerator = (*Advisor)(nil)
)
