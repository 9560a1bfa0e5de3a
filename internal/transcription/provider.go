// Package transcription contains the provider abstraction, the provider
// router, the cost estimator, and the orchestrator that drives a meeting
// through transcription.
package transcription

import (
	"context"
	"fmt"
)

// Kind identifies a transcription execution strategy.
type Kind string

const (
	// KindRemoteOpenAI calls the OpenAI Whisper API. Synchronous, paid
	// per minute.
	KindRemoteOpenAI Kind = "remote_openai"

	// KindServerLocal runs whisper.cpp on the server. Synchronous, free.
	KindServerLocal Kind = "server_local"

	// KindDesktopLocal defers the work to a desktop worker through the
	// queue. Asynchronous, free.
	KindDesktopLocal Kind = "desktop_local"
)

// Whisper model identifiers accepted by the local providers. Larger models
// are more accurate but slower.
const (
	ModelLargeV3 = "large-v3"
	ModelMedium  = "medium"
	ModelSmall   = "small"
	ModelBase    = "base"
	ModelTiny    = "tiny"
)

// Options selects the provider, model, and diarization flag for one
// transcription request.
type Options struct {
	Provider          Kind
	Model             string
	EnableDiarization bool
}

// DefaultOptions is what Transcribe without options uses.
func DefaultOptions() Options {
	return Options{
		Provider: KindRemoteOpenAI,
		Model:    ModelLargeV3,
	}
}

// Request carries the audio reference handed to a provider.
type Request struct {
	AudioPath         string
	Filename          string
	ContentType       string
	Language          string
	Model             string
	EnableDiarization bool
}

// Result is the common transcription outcome from any provider.
type Result struct {
	// ResponseID is the provider's response identifier, if any.
	ResponseID string
	Text       string
	// Language is the detected or forced language code.
	Language string
	// DurationSeconds is the audio duration reported by the provider;
	// zero when the provider did not report one.
	DurationSeconds float64
	Model           string
	// ProcessingTimeMs is wall time the provider spent, for usage
	// provenance.
	ProcessingTimeMs int64
}

// Provider is a synchronous transcription backend.
type Provider interface {
	// Name returns the provider kind this backend serves.
	Name() Kind

	// Available reports whether the backend is reachable and configured.
	// Implementations should keep this to a seconds-scale probe.
	Available(ctx context.Context) bool

	// Transcribe runs one transcription call. Failures are returned as
	// *ProviderError.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// ProviderError wraps a failure from an upstream transcription backend so
// callers can tell it apart from local faults.
type ProviderError struct {
	Provider Kind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
