package dto

import "github.com/Jack-B-Hall/Video2Text/internal/domain"

type SubmitJobRequest struct {
	SourcePath string     `json:"source_path" binding:"required"`
	Filename   string     `json:"filename"`
	Options    JobOptions `json:"options"`
}

// JobOptions mirrors the tunable processing parameters. Zero values fall
// back to the documented defaults.
type JobOptions struct {
	ChunkDurationSeconds      int    `json:"chunk_duration_seconds"`
	ScreenshotIntervalSeconds int    `json:"screenshot_interval_seconds"`
	ModelSize                 string `json:"model_size"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

type JobDTO struct {
	JobID           string     `json:"job_id"`
	Filename        string     `json:"filename"`
	SourcePath      string     `json:"source_path"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	Options         JobOptions `json:"options"`
	ChunksTotal     int        `json:"chunks_total"`
	ChunksDone      int        `json:"chunks_done"`
	CancelRequested bool       `json:"cancel_requested,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	TranscriptPath  string     `json:"transcript_path,omitempty"`
	PDFPath         string     `json:"pdf_path,omitempty"`
	NumSegments     int        `json:"num_segments"`
	NumScreenshots  int        `json:"num_screenshots"`
	CreatedAt       string     `json:"created_at"`
	StartedAt       string     `json:"started_at,omitempty"`
	CompletedAt     string     `json:"completed_at,omitempty"`
	UpdatedAt       string     `json:"updated_at"`
}

type TranscriptResponse struct {
	JobID    string           `json:"job_id"`
	Status   string           `json:"status"`
	Segments []domain.Segment `json:"segments"`
}
