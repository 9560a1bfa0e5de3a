package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decisiondesk/meetscribe/internal/ai"
	"github.com/decisiondesk/meetscribe/internal/api/handler"
	"github.com/decisiondesk/meetscribe/internal/meetings"
	"github.com/decisiondesk/meetscribe/internal/queue"
	"github.com/decisiondesk/meetscribe/internal/transcription"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTranscriber serves the remote kind with a canned result.
type fakeTranscriber struct {
	result transcription.Result
	err    error
}

func (p *fakeTranscriber) Name() transcription.Kind         { return transcription.KindRemoteOpenAI }
func (p *fakeTranscriber) Available(context.Context) bool   { return p.err == nil }
func (p *fakeTranscriber) Transcribe(context.Context, transcription.Request) (*transcription.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	result := p.result
	return &result, nil
}

// fakeCompleter serves extraction requests.
type fakeCompleter struct{}

func (p *fakeCompleter) Name() string                   { return "ollama" }
func (p *fakeCompleter) Available(context.Context) bool { return true }
func (p *fakeCompleter) Complete(context.Context, ai.Request) (*ai.Completion, error) {
	return &ai.Completion{Content: `{"decisions":["ship it"]}`, Model: "qwen3:14b"}, nil
}

type fixture struct {
	router       *gin.Engine
	meetingStore *meetings.MemoryStore
	queueStore   *queue.MemoryStore
}

func newFixture(t *testing.T, transcriber transcription.Provider) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	meetingStore := meetings.NewMemoryStore()
	queueStore := queue.NewMemoryStore()
	queueService := queue.NewService(queueStore, nil, 3, testLogger())

	var providers []transcription.Provider
	if transcriber != nil {
		providers = append(providers, transcriber)
	}

	orchestrator := transcription.NewOrchestrator(
		meetingStore,
		queueService,
		transcription.NewRouter(providers...),
		transcription.NewEstimator(decimal.RequireFromString("0.006"), decimal.RequireFromString("5.0")),
		"en",
		testLogger(),
	)

	deps := &handler.Dependencies{
		Logger:       testLogger(),
		Meetings:     meetingStore,
		Queue:        queueService,
		Orchestrator: orchestrator,
		Extraction:   ai.NewExtractionService(ai.NewRouter(&fakeCompleter{}), meetingStore, testLogger()),
		DataDir:      t.TempDir(),
		DefaultOptions: transcription.Options{
			Provider: transcription.KindRemoteOpenAI,
			Model:    transcription.ModelLargeV3,
		},
	}

	return &fixture{
		router:       SetupRouter(deps),
		meetingStore: meetingStore,
		queueStore:   queueStore,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) createMeeting(t *testing.T) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/v1/meetings", gin.H{"title": "Weekly sync"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		MeetingID string `json:"meeting_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.MeetingID)
	return resp.MeetingID
}

func (f *fixture) uploadAudio(t *testing.T, meetingID string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "recording.wav")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF fake audio payload"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/meetings/"+meetingID+"/audio", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMeetingLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	meetingID := f.createMeeting(t)

	w := f.do(t, http.MethodGet, "/api/v1/meetings/"+meetingID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"NEW"`)

	w = f.do(t, http.MethodGet, "/api/v1/meetings/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/meetings/00000000-0000-0000-0000-000000000000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateMeeting_RequiresTitle(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/meetings", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranscribe_NoAudio(t *testing.T) {
	f := newFixture(t, &fakeTranscriber{})
	meetingID := f.createMeeting(t)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no audio")
}

func TestTranscribe_RemoteSuccess(t *testing.T) {
	f := newFixture(t, &fakeTranscriber{result: transcription.Result{
		ResponseID:      "resp-1",
		Text:            "hello",
		Language:        "en",
		DurationSeconds: 60,
		Model:           "whisper-1",
	}})
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DONE"`)

	transcript, ok := f.meetingStore.Transcript(meetingID)
	require.True(t, ok)
	assert.Equal(t, "hello", transcript.Text)
}

func TestTranscribe_ProviderFailure(t *testing.T) {
	f := newFixture(t, &fakeTranscriber{err: &transcription.ProviderError{
		Provider: transcription.KindRemoteOpenAI,
		Err:      assert.AnError,
	}})
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	meeting, err := f.meetingStore.FindMeeting(context.Background(), meetingID)
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusError, meeting.Status)
}

func TestTranscribe_UnconfiguredProvider(t *testing.T) {
	f := newFixture(t, nil)
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDesktopWorkerFlow(t *testing.T) {
	f := newFixture(t, nil)
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	// Queue the job through the orchestrator.
	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe",
		gin.H{"provider": "desktop_local", "model": "medium", "diarization": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"PROCESSING"`)

	// Worker polls the queue.
	w = f.do(t, http.MethodGet, "/api/v1/desktop/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), meetingID)
	assert.Contains(t, w.Body.String(), `"model":"medium"`)

	// Worker claims the job.
	w = f.do(t, http.MethodPost, "/api/v1/desktop/queue/"+meetingID+"/accept", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/desktop/queue/"+meetingID+"/audio")

	// Worker downloads the audio.
	w = f.do(t, http.MethodGet, "/api/v1/desktop/queue/"+meetingID+"/audio", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	// Worker posts the result.
	w = f.do(t, http.MethodPost, "/api/v1/desktop/queue/"+meetingID+"/result", gin.H{
		"text":             "transcribed on desktop",
		"language":         "pt",
		"durationMinutes":  "2.5",
		"processingTimeMs": 9000,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"DONE"`)

	// Transcript, zero-cost usage, and meeting status all land.
	transcript, ok := f.meetingStore.Transcript(meetingID)
	require.True(t, ok)
	assert.Equal(t, "transcribed on desktop", transcript.Text)
	assert.Equal(t, "pt", transcript.Language)

	records := f.meetingStore.UsageRecords(meetingID)
	require.Len(t, records, 1)
	assert.Equal(t, "2.5", records[0].Units.String())
	assert.True(t, records[0].USD.IsZero())
	assert.Contains(t, records[0].Meta, `"provider":"desktop_local"`)

	meeting, err := f.meetingStore.FindMeeting(context.Background(), meetingID)
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusDone, meeting.Status)

	// Completion deleted the job; the queue is empty again.
	_, err = f.queueStore.FindByMeetingID(context.Background(), meetingID)
	assert.ErrorIs(t, err, queue.ErrJobNotFound)

	// Cancelling after completion fails fast.
	w = f.do(t, http.MethodPost, "/api/v1/desktop/queue/"+meetingID+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDesktopResult_Error(t *testing.T) {
	f := newFixture(t, nil)
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe",
		gin.H{"provider": "desktop_local"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/desktop/queue/"+meetingID+"/result",
		gin.H{"error": "model file missing"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ERROR"`)

	job, err := f.queueStore.FindByMeetingID(context.Background(), meetingID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusFailed, job.Status)
	assert.Equal(t, "model file missing", job.ErrorMessage)

	meeting, err := f.meetingStore.FindMeeting(context.Background(), meetingID)
	require.NoError(t, err)
	assert.Equal(t, meetings.StatusError, meeting.Status)
}

func TestDesktopAccept_UnknownJob(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/desktop/queue/00000000-0000-0000-0000-000000000000/accept", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueStats(t *testing.T) {
	f := newFixture(t, nil)
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe",
		gin.H{"provider": "desktop_local"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/stats/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pending":1`)
}

func TestExtract(t *testing.T) {
	f := newFixture(t, &fakeTranscriber{result: transcription.Result{
		Text:            "We decided to ship it.",
		Language:        "en",
		DurationSeconds: 60,
	}})
	meetingID := f.createMeeting(t)
	f.uploadAudio(t, meetingID)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/transcribe", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/extract",
		gin.H{"decisions": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "ship it"))
}

func TestExtract_NoTranscript(t *testing.T) {
	f := newFixture(t, nil)
	meetingID := f.createMeeting(t)

	w := f.do(t, http.MethodPost, "/api/v1/meetings/"+meetingID+"/extract", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
