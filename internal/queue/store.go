package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the durable home of queue jobs. Implementations must treat every
// mutation as an independent write against current state; the reconciler and
// the request path both re-read a job immediately before changing it, and the
// store is the only arbiter between them.
type Store interface {
	Insert(ctx context.Context, job Job) error
	Update(ctx context.Context, job Job) error
	FindByMeetingID(ctx context.Context, meetingID string) (Job, error)
	FindByID(ctx context.Context, id string) (Job, error)
	FindPending(ctx context.Context) ([]Job, error)
	FindRetryable(ctx context.Context, maxRetries int) ([]Job, error)
	FindTimedOut(ctx context.Context, before time.Time) ([]Job, error)
	Delete(ctx context.Context, id string) error
	DeleteCompletedBefore(ctx context.Context, before time.Time) (int, error)
	CountByStatus(ctx context.Context, status JobStatus) (int, error)
}

// MemoryStore keeps jobs in a mutex-guarded map keyed by meeting id. It is
// meant for single-instance deployments and tests; jobs do not survive a
// restart. One job per meeting, matching the queue invariant.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Insert(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.MeetingID] = job
	return nil
}

func (s *MemoryStore) Update(_ context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.MeetingID]; !ok {
		return ErrJobNotFound
	}
	s.jobs[job.MeetingID] = job
	return nil
}

func (s *MemoryStore) FindByMeetingID(_ context.Context, meetingID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[meetingID]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return Job{}, ErrJobNotFound
}

func (s *MemoryStore) FindPending(_ context.Context) ([]Job, error) {
	return s.filter(func(j Job) bool {
		return j.Status == JobStatusPending
	}), nil
}

func (s *MemoryStore) FindRetryable(_ context.Context, maxRetries int) ([]Job, error) {
	return s.filter(func(j Job) bool {
		return j.CanRetry(maxRetries)
	}), nil
}

func (s *MemoryStore) FindTimedOut(_ context.Context, before time.Time) ([]Job, error) {
	return s.filter(func(j Job) bool {
		if j.Status != JobStatusAccepted && j.Status != JobStatusProcessing {
			return false
		}
		return j.AcceptedAt != nil && j.AcceptedAt.Before(before)
	}), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for meetingID, job := range s.jobs {
		if job.ID == id {
			delete(s.jobs, meetingID)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) DeleteCompletedBefore(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for meetingID, job := range s.jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(before) {
			delete(s.jobs, meetingID)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, status JobStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, job := range s.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) filter(keep func(Job) bool) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, job := range s.jobs {
		if keep(job) {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.Before(out[k].CreatedAt)
	})
	return out
}
