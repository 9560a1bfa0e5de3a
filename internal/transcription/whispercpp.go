package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// WhisperCppConfig locates the whisper.cpp installation on the server.
type WhisperCppConfig struct {
	// BinaryPath is the whisper-cli executable.
	BinaryPath string
	// ModelsDir contains the ggml model files.
	ModelsDir string
	// Timeout bounds one transcription run.
	Timeout time.Duration
}

// WhisperCppProvider runs whisper.cpp locally on the server. Free,
// synchronous.
type WhisperCppProvider struct {
	config WhisperCppConfig
	logger *slog.Logger
}

// NewWhisperCppProvider creates the server-local provider.
func NewWhisperCppProvider(config WhisperCppConfig, logger *slog.Logger) *WhisperCppProvider {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Minute
	}
	return &WhisperCppProvider{
		config: config,
		logger: logger,
	}
}

func (p *WhisperCppProvider) Name() Kind {
	return KindServerLocal
}

// Available checks that the binary and models directory exist.
func (p *WhisperCppProvider) Available(_ context.Context) bool {
	if p.config.BinaryPath == "" {
		return false
	}
	if _, err := os.Stat(p.config.BinaryPath); err != nil {
		return false
	}
	if _, err := os.Stat(p.config.ModelsDir); err != nil {
		return false
	}
	return true
}

func (p *WhisperCppProvider) Transcribe(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	modelFile := filepath.Join(p.config.ModelsDir, modelFileFor(req.Model))
	if _, err := os.Stat(modelFile); err != nil {
		return nil, &ProviderError{
			Provider: KindServerLocal,
			Err:      fmt.Errorf("model file not found: %s", modelFile),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	args := []string{
		"-m", modelFile,
		"-f", req.AudioPath,
		"--no-timestamps",
	}
	if req.Language != "" {
		args = append(args, "-l", req.Language)
	}

	p.logger.Info("Running whisper.cpp",
		slog.String("model", req.Model),
		slog.String("audio", req.AudioPath),
	)

	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("whisper.cpp timed out after %s", p.config.Timeout)
		}
		return nil, &ProviderError{Provider: KindServerLocal, Err: err}
	}

	text := strings.TrimSpace(string(output))
	if text == "" {
		return nil, &ProviderError{
			Provider: KindServerLocal,
			Err:      fmt.Errorf("whisper.cpp produced no output for %s", req.AudioPath),
		}
	}

	duration := probeDuration(ctx, req.AudioPath, p.logger)

	p.logger.Info("whisper.cpp transcription complete",
		slog.Float64("duration_seconds", duration),
		slog.Duration("took", time.Since(start)),
	)

	return &Result{
		Text:             text,
		Language:         req.Language,
		DurationSeconds:  duration,
		Model:            req.Model,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func modelFileFor(model string) string {
	return "ggml-" + ParseModel(model) + ".bin"
}

// probeDuration asks ffprobe for the audio duration in seconds. Returns
// zero when ffprobe is missing or the format is unsupported; callers fall
// back to size-based approximation or minimum billing.
func probeDuration(ctx context.Context, audioPath string, logger *slog.Logger) float64 {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)

	output, err := cmd.Output()
	if err != nil {
		logger.Debug("Could not extract audio duration",
			slog.String("audio", audioPath),
			slog.String("error", err.Error()),
		)
		return 0
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0
	}
	return seconds
}
