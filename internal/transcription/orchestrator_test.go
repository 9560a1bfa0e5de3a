package transcription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decisiondesk/meetscribe/internal/meetings"
	"github.com/decisiondesk/meetscribe/internal/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider returns a canned result or error.
type fakeProvider struct {
	kind   Kind
	result *Result
	err    error
	calls  int
}

func (p *fakeProvider) Name() Kind                     { return p.kind }
func (p *fakeProvider) Available(context.Context) bool { return p.err == nil }
func (p *fakeProvider) Transcribe(_ context.Context, _ Request) (*Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type orchestratorFixture struct {
	store        *meetings.MemoryStore
	queueStore   *queue.MemoryStore
	orchestrator *Orchestrator
}

func newFixture(t *testing.T, providers ...Provider) *orchestratorFixture {
	t.Helper()

	store := meetings.NewMemoryStore()
	queueStore := queue.NewMemoryStore()
	queueService := queue.NewService(queueStore, nil, 3, testLogger())

	price := decimal.RequireFromString("0.006")
	fx := decimal.RequireFromString("5.0")

	return &orchestratorFixture{
		store:      store,
		queueStore: queueStore,
		orchestrator: NewOrchestrator(store, queueService, NewRouter(providers...),
			NewEstimator(price, fx), "en", testLogger()),
	}
}

func (f *orchestratorFixture) addMeeting(t *testing.T, id string, withAudio bool) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.CreateMeeting(ctx, meetings.Meeting{
		ID:        id,
		Title:     "Weekly sync",
		Status:    meetings.StatusNew,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}))

	if withAudio {
		require.NoError(t, f.store.AddAudioAsset(ctx, meetings.AudioAsset{
			ID:          "asset-1",
			MeetingID:   id,
			Path:        "/data/" + id + ".wav",
			ContentType: "audio/wav",
			SizeBytes:   960000,
			CreatedAt:   time.Now().UTC(),
		}))
	}
}

func (f *orchestratorFixture) meetingStatus(t *testing.T, id string) meetings.Status {
	t.Helper()
	meeting, err := f.store.FindMeeting(context.Background(), id)
	require.NoError(t, err)
	return meeting.Status
}

func TestOrchestrator_MeetingNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Transcribe(context.Background(), "missing")
	assert.ErrorIs(t, err, meetings.ErrMeetingNotFound)
}

func TestOrchestrator_NoAudio(t *testing.T) {
	f := newFixture(t)
	f.addMeeting(t, "meeting-1", false)

	_, err := f.orchestrator.Transcribe(context.Background(), "meeting-1")
	assert.ErrorIs(t, err, meetings.ErrNoAudio)

	// Precondition failures never touch the meeting status.
	assert.Equal(t, meetings.StatusNew, f.meetingStatus(t, "meeting-1"))
}

func TestOrchestrator_ProviderNotConfigured(t *testing.T) {
	f := newFixture(t)
	f.addMeeting(t, "meeting-1", true)

	_, err := f.orchestrator.TranscribeWith(context.Background(), "meeting-1", Options{
		Provider: KindRemoteOpenAI,
		Model:    ModelLargeV3,
	})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, meetings.StatusNew, f.meetingStatus(t, "meeting-1"))
}

func TestOrchestrator_RemoteSuccess(t *testing.T) {
	provider := &fakeProvider{
		kind: KindRemoteOpenAI,
		result: &Result{
			ResponseID:      "resp-123",
			Text:            "Olá, bom dia a todos.",
			Language:        "pt",
			DurationSeconds: 90,
			Model:           "whisper-1",
		},
	}
	f := newFixture(t, provider)
	f.addMeeting(t, "meeting-1", true)

	status, err := f.orchestrator.TranscribeWith(context.Background(), "meeting-1", Options{
		Provider: KindRemoteOpenAI,
		Model:    ModelLargeV3,
	})
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusDone, status)
	assert.Equal(t, meetings.StatusDone, f.meetingStatus(t, "meeting-1"))
	assert.Equal(t, 1, provider.calls)

	transcript, ok := f.store.Transcript("meeting-1")
	require.True(t, ok)
	assert.Equal(t, "Olá, bom dia a todos.", transcript.Text)
	assert.Equal(t, "pt", transcript.Language)

	records := f.store.UsageRecords("meeting-1")
	require.Len(t, records, 1)
	assert.Equal(t, meetings.ServiceWhisper, records[0].Service)
	assert.Equal(t, "1.5", records[0].Units.String())
	assert.Equal(t, "0.009", records[0].USD.String())
	assert.Equal(t, "0.045", records[0].BRL.String())
	assert.Contains(t, records[0].Meta, `"responseId":"resp-123"`)
}

func TestOrchestrator_LocalSuccessIsFree(t *testing.T) {
	provider := &fakeProvider{
		kind: KindServerLocal,
		result: &Result{
			Text:             "Meeting notes.",
			Language:         "en",
			DurationSeconds:  120,
			Model:            ModelBase,
			ProcessingTimeMs: 4500,
		},
	}
	f := newFixture(t, provider)
	f.addMeeting(t, "meeting-1", true)

	status, err := f.orchestrator.TranscribeWith(context.Background(), "meeting-1", Options{
		Provider: KindServerLocal,
		Model:    ModelBase,
	})
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusDone, status)

	records := f.store.UsageRecords("meeting-1")
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0].Units.String())
	assert.True(t, records[0].USD.IsZero())
	assert.True(t, records[0].BRL.IsZero())
	assert.Contains(t, records[0].Meta, `"processingTimeMs":4500`)
}

func TestOrchestrator_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{
		kind: KindRemoteOpenAI,
		err:  &ProviderError{Provider: KindRemoteOpenAI, Err: errors.New("status 500")},
	}
	f := newFixture(t, provider)
	f.addMeeting(t, "meeting-1", true)

	_, err := f.orchestrator.TranscribeWith(context.Background(), "meeting-1", Options{
		Provider: KindRemoteOpenAI,
		Model:    ModelLargeV3,
	})
	require.Error(t, err)

	var providerErr *ProviderError
	assert.ErrorAs(t, err, &providerErr)

	// The meeting is never left at PROCESSING on a synchronous exit.
	assert.Equal(t, meetings.StatusError, f.meetingStatus(t, "meeting-1"))

	_, ok := f.store.Transcript("meeting-1")
	assert.False(t, ok)
	assert.Empty(t, f.store.UsageRecords("meeting-1"))
}

func TestOrchestrator_LanguageFallback(t *testing.T) {
	provider := &fakeProvider{
		kind:   KindServerLocal,
		result: &Result{Text: "text", DurationSeconds: 60},
	}
	f := newFixture(t, provider)
	f.addMeeting(t, "meeting-1", true)

	_, err := f.orchestrator.TranscribeWith(context.Background(), "meeting-1", Options{
		Provider: KindServerLocal,
		Model:    ModelBase,
	})
	require.NoError(t, err)

	transcript, ok := f.store.Transcript("meeting-1")
	require.True(t, ok)
	assert.Equal(t, "en", transcript.Language)
}

func TestOrchestrator_DesktopEnqueues(t *testing.T) {
	f := newFixture(t)
	f.addMeeting(t, "meeting-1", true)
	ctx := context.Background()

	status, err := f.orchestrator.TranscribeWith(ctx, "meeting-1", Options{
		Provider:          KindDesktopLocal,
		Model:             ModelMedium,
		EnableDiarization: true,
	})
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusProcessing, status)
	assert.Equal(t, meetings.StatusProcessing, f.meetingStatus(t, "meeting-1"))

	job, err := f.queueStore.FindByMeetingID(ctx, "meeting-1")
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusPending, job.Status)
	assert.Equal(t, ModelMedium, job.Model)
	assert.Equal(t, "en", job.Language)
	assert.True(t, job.EnableDiarization)
	assert.Equal(t, "/data/meeting-1.wav", job.AudioPath)
}

func TestOrchestrator_DesktopEnqueueIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addMeeting(t, "meeting-1", true)
	ctx := context.Background()

	opts := Options{Provider: KindDesktopLocal, Model: ModelMedium}

	_, err := f.orchestrator.TranscribeWith(ctx, "meeting-1", opts)
	require.NoError(t, err)

	first, err := f.queueStore.FindByMeetingID(ctx, "meeting-1")
	require.NoError(t, err)

	// Asking again while a job exists does not create a second one.
	status, err := f.orchestrator.TranscribeWith(ctx, "meeting-1", opts)
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusProcessing, status)

	second, err := f.queueStore.FindByMeetingID(ctx, "meeting-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
