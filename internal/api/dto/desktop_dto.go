package dto

import "github.com/shopspring/decimal"

// The desktop surface keeps camelCase field names; the desktop app's client
// was written against that contract.

type PendingJobResponse struct {
	MeetingID   string `json:"meetingId"`
	Model       string `json:"model"`
	Language    string `json:"language"`
	Diarization bool   `json:"diarization"`
}

type AcceptJobResponse struct {
	MeetingID   string `json:"meetingId"`
	Model       string `json:"model"`
	Language    string `json:"language"`
	Diarization bool   `json:"diarization"`
	AudioURL    string `json:"audioUrl"`
}

type TranscriptionResultRequest struct {
	Text             string           `json:"text"`
	Language         string           `json:"language"`
	DurationMinutes  *decimal.Decimal `json:"durationMinutes"`
	ProcessingTimeMs *int64           `json:"processingTimeMs"`
	Segments         string           `json:"segments"`
	Error            string           `json:"error"`
}

type ResultResponse struct {
	MeetingID string `json:"meetingId"`
	Status    string `json:"status"`
}
