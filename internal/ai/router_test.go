package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubProvider is a minimal Provider for router tests.
type stubProvider struct {
	name       string
	completion *Completion
	err        error
}

func (p *stubProvider) Name() string                   { return p.name }
func (p *stubProvider) Available(context.Context) bool { return p.err == nil }
func (p *stubProvider) Complete(_ context.Context, _ Request) (*Completion, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.completion, nil
}

func TestRouter_Provider(t *testing.T) {
	ollama := &stubProvider{name: "ollama"}
	openai := &stubProvider{name: "openai"}
	router := NewRouter(ollama, openai)

	tests := []struct {
		name  string
		input string
		want  *stubProvider
	}{
		{"ollama by name", "ollama", ollama},
		{"openai by name", "openai", openai},
		// Malformed input must never route to the paid backend.
		{"empty falls back to ollama", "", ollama},
		{"unknown falls back to ollama", "gemini", ollama},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, router.Provider(tt.input).(*stubProvider))
		})
	}
}

func TestRouter_NoDefaultConfigured(t *testing.T) {
	router := NewRouter(&stubProvider{name: "openai"})

	assert.Nil(t, router.Provider("unknown"))
}
