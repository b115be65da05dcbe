package pipeline

import (
	"context"
	"fmt"
	"strings"

	"renovai/server/internal/domain"
	"renovai/server/internal/providers/openai"
)

const rulesSystemPrompt = "You are an expert interior designer."

// RuleSynthesizer combines style labels into one coherent guideline text.
type RuleSynthesizer struct {
	completer TextCompleter
}

// NewRuleSynthesizer wires the text-generation collaborator.
func NewRuleSynthesizer(completer TextCompleter) *RuleSynthesizer {
	return &RuleSynthesizer{completer: completer}
}

// Synthesize sends the labels as a bulleted prompt body and returns the
// trimmed guideline text.
func (r *RuleSynthesizer) Synthesize(ctx context.Context, styles []string) (string, error) {
	if len(styles) == 0 {
		return "", fmt.Errorf("rules: no styles to combine: %w", domain.ErrUpstream)
	}
	var body strings.Builder
	body.WriteString("Create concise design guidelines combining these styles:\n")
	for _, s := range styles {
		body.WriteString("- ")
		body.WriteString(s)
		body.WriteString("\n")
	}
	text, err := r.completer.Complete(ctx, []openai.Message{
		openai.System(rulesSystemPrompt),
		openai.User(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("rules: %w: %v", domain.ErrUpstream, err)
	}
	return strings.TrimSpace(text), nil
}
