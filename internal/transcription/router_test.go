package transcription

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubProvider is a minimal Provider for router tests.
type stubProvider struct {
	kind Kind
}

func (p *stubProvider) Name() Kind                     { return p.kind }
func (p *stubProvider) Available(context.Context) bool { return true }
func (p *stubProvider) Transcribe(context.Context, Request) (*Result, error) {
	return &Result{}, nil
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{"remote openai", "remote_openai", KindRemoteOpenAI},
		{"server local", "server_local", KindServerLocal},
		{"desktop local", "desktop_local", KindDesktopLocal},
		// Malformed input must never route to the paid backend.
		{"empty falls back to server local", "", KindServerLocal},
		{"unknown falls back to server local", "gpu_cluster", KindServerLocal},
		{"case sensitive", "Remote_OpenAI", KindServerLocal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseKind(tt.input))
		})
	}
}

func TestParseModel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"large-v3", "large-v3", ModelLargeV3},
		{"medium", "medium", ModelMedium},
		{"small", "small", ModelSmall},
		{"base", "base", ModelBase},
		{"tiny", "tiny", ModelTiny},
		{"empty defaults to large-v3", "", ModelLargeV3},
		{"unknown defaults to large-v3", "turbo-9000", ModelLargeV3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseModel(tt.input))
		})
	}
}

func TestRouter_Provider(t *testing.T) {
	remote := &stubProvider{kind: KindRemoteOpenAI}
	local := &stubProvider{kind: KindServerLocal}
	router := NewRouter(remote, local)

	assert.Same(t, remote, router.Provider(KindRemoteOpenAI).(*stubProvider))
	assert.Same(t, local, router.Provider(KindServerLocal).(*stubProvider))

	// The desktop kind has no synchronous provider.
	assert.Nil(t, router.Provider(KindDesktopLocal))
}
