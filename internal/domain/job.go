package domain

import (
	"fmt"
	"time"
)

// JobConfig is the options snapshot taken at submission. It is immutable once
// the job starts so a single run stays reproducible.
type JobConfig struct {
	ChunkDurationSeconds      int    `db:"chunk_duration_seconds" json:"chunk_duration_seconds"`
	ScreenshotIntervalSeconds int    `db:"screenshot_interval_seconds" json:"screenshot_interval_seconds"`
	ModelSize                 string `db:"model_size" json:"model_size"`
}

// ApplyDefaults fills zero-valued options with the defaults the original
// submission form used.
func (c *JobConfig) ApplyDefaults() {
	if c.ChunkDurationSeconds == 0 {
		c.ChunkDurationSeconds = DefaultChunkDurationSeconds
	}
	if c.ScreenshotIntervalSeconds == 0 {
		c.ScreenshotIntervalSeconds = DefaultScreenshotIntervalSeconds
	}
	if c.ModelSize == "" {
		c.ModelSize = DefaultModelSize
	}
}

// Validate rejects out-of-range options. Invalid values are refused at
// submission, never discovered mid-pipeline.
func (c JobConfig) Validate() error {
	if c.ChunkDurationSeconds < MinChunkDurationSeconds || c.ChunkDurationSeconds > MaxChunkDurationSeconds {
		return fmt.Errorf("%w: chunk_duration_seconds must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinChunkDurationSeconds, MaxChunkDurationSeconds, c.ChunkDurationSeconds)
	}
	if c.ScreenshotIntervalSeconds < MinScreenshotIntervalSeconds || c.ScreenshotIntervalSeconds > MaxScreenshotIntervalSeconds {
		return fmt.Errorf("%w: screenshot_interval_seconds must be between %d and %d, got %d",
			ErrInvalidConfiguration, MinScreenshotIntervalSeconds, MaxScreenshotIntervalSeconds, c.ScreenshotIntervalSeconds)
	}
	if !ValidModelSize(c.ModelSize) {
		return fmt.Errorf("%w: model_size must be one of %v, got %q",
			ErrInvalidConfiguration, ModelSizes, c.ModelSize)
	}
	return nil
}

// Job is the persisted record for one transcription request.
type Job struct {
	JobID           string `db:"job_id"`
	Filename        string `db:"filename"`
	SourcePath      string `db:"source_path"`
	Status          string `db:"status"`
	Config          JobConfig
	ChunksTotal     int  `db:"chunks_total"`
	ChunksDone      int  `db:"chunks_done"`
	CancelRequested bool `db:"cancel_requested"`

	ErrorKind    string `db:"error_kind"`
	ErrorMessage string `db:"error_message"`

	TranscriptPath string `db:"transcript_path"`
	PDFPath        string `db:"pdf_path"`
	NumSegments    int    `db:"num_segments"`
	NumScreenshots int    `db:"num_screenshots"`

	RecordVersion int `db:"record_version"`

	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Progress returns percent complete in [0,100]. Chunk transcription owns the
// whole range; it only reaches 100 on a terminal COMPLETED record.
func (j Job) Progress() int {
	if j.Status == JobStatusCompleted {
		return 100
	}
	if j.ChunksTotal <= 0 {
		return 0
	}
	pct := j.ChunksDone * 100 / j.ChunksTotal
	if pct > 99 {
		pct = 99
	}
	return pct
}

// Segment is one timestamped span of transcribed text on the job's global
// timeline.
type Segment struct {
	StartSeconds float64 `db:"start_seconds" json:"start_seconds"`
	EndSeconds   float64 `db:"end_seconds" json:"end_seconds"`
	Text         string  `db:"text" json:"text"`
}

// FormatTimestamp converts seconds to the H:MM:SS form used in transcript
// lines and PDF headings.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// ValidTransition enforces the allowed job state machine edges. Terminal
// states never revert.
func ValidTransition(from, to string) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusFailed || to == JobStatusCanceled
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCanceled
	default:
		return false
	}
}
