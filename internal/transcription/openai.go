package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

// whisperModel is the identifier the OpenAI transcription endpoint expects.
const whisperModel = "whisper-1"

// OpenAIConfig holds the remote provider's connection settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Timeout bounds one transcription call. Minutes-scale: long
	// recordings take a while to upload and transcribe.
	Timeout time.Duration
}

// OpenAIProvider transcribes through the OpenAI Whisper API. Paid per
// audio minute.
type OpenAIProvider struct {
	config OpenAIConfig
	client *http.Client
	logger *slog.Logger
}

// NewOpenAIProvider creates the remote provider.
func NewOpenAIProvider(config OpenAIConfig, logger *slog.Logger) *OpenAIProvider {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}
	return &OpenAIProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

func (p *OpenAIProvider) Name() Kind {
	return KindRemoteOpenAI
}

// Available probes the models endpoint with a short deadline.
func (p *OpenAIProvider) Available(ctx context.Context) bool {
	if p.config.APIKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type whisperResponse struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	body, contentType, err := p.buildMultipart(req)
	if err != nil {
		return nil, &ProviderError{Provider: KindRemoteOpenAI, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/v1/audio/transcriptions", body)
	if err != nil {
		return nil, &ProviderError{Provider: KindRemoteOpenAI, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: KindRemoteOpenAI, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: KindRemoteOpenAI, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider: KindRemoteOpenAI,
			Err:      fmt.Errorf("whisper API returned status %d: %s", resp.StatusCode, respBody),
		}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &ProviderError{
			Provider: KindRemoteOpenAI,
			Err:      fmt.Errorf("failed to parse whisper response: %w", err),
		}
	}

	p.logger.Info("Whisper transcription complete",
		slog.String("language", parsed.Language),
		slog.Float64("duration_seconds", parsed.Duration),
		slog.Duration("took", time.Since(start)),
	)

	return &Result{
		ResponseID:       parsed.ID,
		Text:             parsed.Text,
		Language:         parsed.Language,
		DurationSeconds:  parsed.Duration,
		Model:            whisperModel,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *OpenAIProvider) buildMultipart(req Request) (*bytes.Buffer, string, error) {
	file, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}

	if err := writer.WriteField("model", whisperModel); err != nil {
		return nil, "", err
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, "", err
		}
	}
	if err := writer.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}
