package dto

type CreateMeetingRequest struct {
	Title string `json:"title" binding:"required"`
}

type MeetingResponse struct {
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type UploadAudioResponse struct {
	MeetingID string `json:"meeting_id"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

type TranscribeRequest struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Diarization bool   `json:"diarization"`
}

type TranscribeResponse struct {
	MeetingID string `json:"meeting_id"`
	Status    string `json:"status"`
}

type ExtractRequest struct {
	ActionItems bool   `json:"action_items"`
	Decisions   bool   `json:"decisions"`
	Deadlines   bool   `json:"deadlines"`
	Backlog     bool   `json:"backlog"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

type ExtractResponse struct {
	MeetingID  string `json:"meeting_id"`
	Result     string `json:"result"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}
