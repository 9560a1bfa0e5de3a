// Package ai routes downstream text tasks (summaries, chat, extraction) to
// a completion provider.
package ai

import (
	"context"
	"fmt"
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completion is a provider-agnostic completion result.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Provider is a text-completion backend.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// ProviderError wraps a failure from a completion backend.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
