// Package perception turns natural language into planner goals. An LLM
// proposes the goal structure; everything it returns is validated and
// coerced before the planner sees it, so a hallucinated value can reject
// a request but never corrupt a search.
package perception

import (
	"context"
	"time"
)

// LLMClient is the completion surface the transducer needs.
// Implementations must be safe for concurrent use.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GeminiConfig configures the Gemini REST client.
type GeminiConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.0-flash",
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
	}
}

const defaultSystemPrompt = "You are the language front end of an automated planning system. Answer precisely and without filler."
