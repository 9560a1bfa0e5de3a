package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/decisiondesk/meetscribe/internal/meetings"
)

const extractionSystemPrompt = `You are a meeting assistant that extracts structured information from meeting transcripts.
Extract the requested items and return them as a JSON object.
Always respond in the same language as the transcript.
Be precise and concise. Only include items explicitly discussed.`

const extractionUserTemplate = `Extract the following from this meeting transcript:
%s

Return a JSON object with these keys (only include requested ones):
- "action_items": array of {text, assignee, deadline}
- "decisions": array of strings
- "deadlines": array of {text, date}
- "backlog": array of strings (items to revisit later)

Transcript:
%s`

const defaultExtractionModel = "qwen3:14b"

// ExtractionConfig selects which item categories to pull from a transcript.
// All false means the action-items/decisions/deadlines default set.
type ExtractionConfig struct {
	ActionItems bool
	Decisions   bool
	Deadlines   bool
	Backlog     bool
}

// ExtractionResult is the extracted JSON plus provenance.
type ExtractionResult struct {
	JSON       string
	Provider   string
	Model      string
	TokensUsed int
}

// ExtractionService extracts structured data (action items, decisions,
// deadlines) from meeting transcripts using the configured completion
// provider.
type ExtractionService struct {
	router *Router
	store  meetings.Store
	logger *slog.Logger
}

// NewExtractionService wires the extraction service.
func NewExtractionService(router *Router, store meetings.Store, logger *slog.Logger) *ExtractionService {
	return &ExtractionService{
		router: router,
		store:  store,
		logger: logger,
	}
}

// Extract runs one extraction over the meeting's transcript. providerName
// and model are optional overrides.
func (s *ExtractionService) Extract(ctx context.Context, meetingID string, config ExtractionConfig,
	providerName, model string) (*ExtractionResult, error) {
	transcript, err := s.store.FindTranscript(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	provider := s.router.Provider(providerName)
	if provider == nil {
		return nil, fmt.Errorf("no completion provider configured")
	}

	if model == "" {
		model = defaultExtractionModel
	}

	s.logger.Info("Extracting from transcript",
		slog.String("meeting_id", meetingID),
		slog.String("provider", provider.Name()),
		slog.String("model", model),
	)

	completion, err := provider.Complete(ctx, Request{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: extractionSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(extractionUserTemplate, config.requestedItems(), transcript.Text)},
		},
		Temperature: 0.3,
		MaxTokens:   2048,
	})
	if err != nil {
		return nil, err
	}

	tokensUsed := completion.PromptTokens + completion.CompletionTokens
	s.recordUsage(ctx, meetingID, provider.Name(), completion, tokensUsed)

	return &ExtractionResult{
		JSON:       completion.Content,
		Provider:   provider.Name(),
		Model:      completion.Model,
		TokensUsed: tokensUsed,
	}, nil
}

// recordUsage appends a token-count ledger entry. Extractions run on local
// or flat-rate backends, so no monetary cost is attached; the entry exists
// for provenance. Ledger failures are logged, not surfaced: the extraction
// itself succeeded.
func (s *ExtractionService) recordUsage(ctx context.Context, meetingID, providerName string,
	completion *Completion, tokensUsed int) {
	meta, err := json.Marshal(extractionUsageMeta{
		Provider:         providerName,
		Model:            completion.Model,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
	})
	if err != nil {
		s.logger.Error("Failed to marshal extraction usage metadata", slog.String("error", err.Error()))
		return
	}

	record := meetings.UsageRecord{
		ID:        uuid.New().String(),
		MeetingID: meetingID,
		Service:   meetings.ServiceGPT,
		Units:     decimal.NewFromInt(int64(tokensUsed)),
		USD:       decimal.Zero,
		BRL:       decimal.Zero,
		Meta:      string(meta),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.InsertUsage(ctx, record); err != nil {
		s.logger.Error("Failed to record extraction usage",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
	}
}

type extractionUsageMeta struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
}

func (c ExtractionConfig) requestedItems() string {
	var b strings.Builder
	if c.ActionItems {
		b.WriteString("- Action items (tasks, to-dos)\n")
	}
	if c.Decisions {
		b.WriteString("- Decisions made\n")
	}
	if c.Deadlines {
		b.WriteString("- Deadlines mentioned\n")
	}
	if c.Backlog {
		b.WriteString("- Backlog items (deferred topics)\n")
	}
	if b.Len() == 0 {
		return "- Action items\n- Decisions made\n- Deadlines mentioned\n"
	}
	return b.String()
}
