package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob("meeting-1", "/data/meeting-1.wav", "large-v3", "pt", true)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "meeting-1", job.MeetingID)
	assert.Equal(t, "/data/meeting-1.wav", job.AudioPath)
	assert.Equal(t, "large-v3", job.Model)
	assert.Equal(t, "pt", job.Language)
	assert.True(t, job.EnableDiarization)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.AcceptedAt)
	assert.Nil(t, job.CompletedAt)
	assert.Zero(t, job.RetryCount)
	assert.False(t, job.CreatedAt.IsZero())
}

func TestJob_Transitions(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)

	accepted := job.Accept()
	assert.Equal(t, JobStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
	assert.False(t, accepted.AcceptedAt.Before(job.CreatedAt))
	// The original value is untouched
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Nil(t, job.AcceptedAt)

	processing := accepted.StartProcessing()
	assert.Equal(t, JobStatusProcessing, processing.Status)
	assert.Equal(t, accepted.AcceptedAt, processing.AcceptedAt)

	completed := processing.Complete()
	assert.Equal(t, JobStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Empty(t, completed.ErrorMessage)
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)

	failed := job.Accept().StartProcessing().Fail("whisper crashed")
	assert.Equal(t, JobStatusFailed, failed.Status)
	assert.Equal(t, "whisper crashed", failed.ErrorMessage)
	assert.Equal(t, 1, failed.RetryCount)
}

func TestJob_Cancel(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)

	cancelled := job.Cancel()
	assert.Equal(t, JobStatusCancelled, cancelled.Status)
	assert.Equal(t, CancelledByUser, cancelled.ErrorMessage)
}

func TestJob_Retry(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)

	failed := job.Accept().StartProcessing().Fail("transient")
	retried := failed.Retry()

	assert.Equal(t, JobStatusPending, retried.Status)
	assert.Nil(t, retried.AcceptedAt)
	assert.Nil(t, retried.CompletedAt)
	assert.Empty(t, retried.ErrorMessage)
}

// One failed attempt consumes two units of the retry budget: Fail and
// Retry each increment the count. This is deployed behavior; max_retries
// is sized around it.
func TestJob_RetryCountsTwicePerFailedAttempt(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)

	failed := job.Fail("attempt 1")
	assert.Equal(t, 1, failed.RetryCount)

	retried := failed.Retry()
	assert.Equal(t, 2, retried.RetryCount)

	failedAgain := retried.Fail("attempt 2")
	assert.Equal(t, 3, failedAgain.RetryCount)
}

func TestJob_RetryCountNeverDecreases(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)

	last := job.RetryCount
	for i := 0; i < 5; i++ {
		job = job.Fail("boom")
		assert.GreaterOrEqual(t, job.RetryCount, last)
		last = job.RetryCount

		job = job.Retry()
		assert.GreaterOrEqual(t, job.RetryCount, last)
		last = job.RetryCount
	}
}

func TestJob_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     JobStatus
		retryCount int
		maxRetries int
		want       bool
	}{
		{
			name:       "failed under budget",
			status:     JobStatusFailed,
			retryCount: 1,
			maxRetries: 3,
			want:       true,
		},
		{
			name:       "failed at budget",
			status:     JobStatusFailed,
			retryCount: 3,
			maxRetries: 3,
			want:       false,
		},
		{
			name:       "failed over budget",
			status:     JobStatusFailed,
			retryCount: 5,
			maxRetries: 3,
			want:       false,
		},
		{
			name:       "pending never retryable",
			status:     JobStatusPending,
			retryCount: 0,
			maxRetries: 3,
			want:       false,
		},
		{
			name:       "processing never retryable",
			status:     JobStatusProcessing,
			retryCount: 1,
			maxRetries: 3,
			want:       false,
		},
		{
			name:       "completed never retryable",
			status:     JobStatusCompleted,
			retryCount: 0,
			maxRetries: 3,
			want:       false,
		},
		{
			name:       "cancelled never retryable",
			status:     JobStatusCancelled,
			retryCount: 0,
			maxRetries: 3,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := Job{Status: tt.status, RetryCount: tt.retryCount}
			assert.Equal(t, tt.want, job.CanRetry(tt.maxRetries))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusAccepted.IsTerminal())
	assert.False(t, JobStatusProcessing.IsTerminal())
	// FAILED stays eligible for retry until the budget runs out.
	assert.False(t, JobStatusFailed.IsTerminal())
}

func TestJob_AcceptedAtMonotonic(t *testing.T) {
	job := NewJob("meeting-1", "/data/a.wav", "base", "en", false)
	time.Sleep(time.Millisecond)

	accepted := job.Accept()
	require.NotNil(t, accepted.AcceptedAt)
	assert.True(t, accepted.AcceptedAt.After(job.CreatedAt))

	completed := accepted.StartProcessing().Complete()
	require.NotNil(t, completed.CompletedAt)
	assert.False(t, completed.CompletedAt.Before(*accepted.AcceptedAt))
}
