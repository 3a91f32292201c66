// Package ai talks to OpenAI-compatible chat completion endpoints and turns
// free-form mood descriptions into music search queries.
package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}
