package meetings

import (
	"context"
	"sync"
	"time"
)

// Store is the persistence surface the transcription paths depend on.
type Store interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	FindMeeting(ctx context.Context, id string) (Meeting, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	AddAudioAsset(ctx context.Context, asset AudioAsset) error
	LatestAudioAsset(ctx context.Context, meetingID string) (AudioAsset, error)
	UpsertTranscript(ctx context.Context, transcript Transcript) error
	FindTranscript(ctx context.Context, meetingID string) (Transcript, error)
	InsertUsage(ctx context.Context, record UsageRecord) error
}

// MemoryStore is an in-memory Store for tests and single-instance use.
type MemoryStore struct {
	mu          sync.RWMutex
	meetings    map[string]Meeting
	assets      map[string][]AudioAsset
	transcripts map[string]Transcript
	usage       map[string][]UsageRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meetings:    make(map[string]Meeting),
		assets:      make(map[string][]AudioAsset),
		transcripts: make(map[string]Transcript),
		usage:       make(map[string][]UsageRecord),
	}
}

func (s *MemoryStore) CreateMeeting(_ context.Context, meeting Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meetings[meeting.ID] = meeting
	return nil
}

func (s *MemoryStore) FindMeeting(_ context.Context, id string) (Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return Meeting{}, ErrMeetingNotFound
	}
	return meeting, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meeting, ok := s.meetings[id]
	if !ok {
		return ErrMeetingNotFound
	}
	meeting.Status = status
	meeting.UpdatedAt = time.Now().UTC()
	s.meetings[id] = meeting
	return nil
}

func (s *MemoryStore) AddAudioAsset(_ context.Context, asset AudioAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset.MeetingID] = append(s.assets[asset.MeetingID], asset)
	return nil
}

func (s *MemoryStore) LatestAudioAsset(_ context.Context, meetingID string) (AudioAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assets := s.assets[meetingID]
	if len(assets) == 0 {
		return AudioAsset{}, ErrNoAudio
	}
	return assets[len(assets)-1], nil
}

func (s *MemoryStore) UpsertTranscript(_ context.Context, transcript Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[transcript.MeetingID] = transcript
	return nil
}

func (s *MemoryStore) FindTranscript(_ context.Context, meetingID string) (Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	transcript, ok := s.transcripts[meetingID]
	if !ok {
		return Transcript{}, ErrNoTranscript
	}
	return transcript, nil
}

func (s *MemoryStore) InsertUsage(_ context.Context, record UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[record.MeetingID] = append(s.usage[record.MeetingID], record)
	return nil
}

// Transcript returns the stored transcript for a meeting, for tests.
func (s *MemoryStore) Transcript(meetingID string) (Transcript, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcripts[meetingID]
	return t, ok
}

// UsageRecords returns the ledger for a meeting, for tests.
func (s *MemoryStore) UsageRecords(meetingID string) []UsageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]UsageRecord(nil), s.usage[meetingID]...)
}
