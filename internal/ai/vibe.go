package ai

import (
	"context"
	"strings"
)

const vibePrompt = "You are a music expert. Convert user descriptions of moods, feelings, or vibes " +
	"into a single concise YouTube search query that will find matching music. " +
	"Return ONLY the search query, nothing else."

// Vibe turns a mood description into a search query.
type Vibe struct {
	provider Provider
}

func NewVibe(p Provider) *Vibe {
	return &Vibe{provider: p}
}

// SearchQuery asks the provider for a query matching description. Callers
// usually fall back to the description itself on error.
func (v *Vibe) SearchQuery(ctx context.Context, description string) (string, error) {
	description = strings.TrimSpace(description)
	reply, err := v.provider.Generate(ctx, []Message{
		{Role: "system", Content: vibePrompt},
		{Role: "user", Content: description},
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
