// Package llm holds the language model contract used by the narrative writer.
package llm

import "context"

// Provider turns prompts into narration text.
type Provider interface {
	// GenerateText returns the model's answer to prompt. name tags the request
	// in logs and selects per-intent settings, e.g. "narrate" or "intro".
	GenerateText(ctx context.Context, name, prompt string) (string, error)

	// HealthCheck reports whether the key and model are usable.
	HealthCheck(ctx context.Context) error
}
