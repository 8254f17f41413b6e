package worker

import (
	"context"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/screenshot"
)

// JobMessage carries a job through the dispatch channel. DeliveryTag is
// only meaningful for messages that arrived over the queue; sweep-origin
// messages have FromSweep set and need no acknowledgment.
type JobMessage struct {
	JobID       string
	DeliveryTag uint64
	FromSweep   bool
}

// Store is the job persistence surface the worker needs.
type Store interface {
	ClaimJob(ctx context.Context, jobID string) (*domain.Job, error)
	SetChunkPlan(ctx context.Context, jobID string, chunksTotal int) error
	AppendChunkResult(ctx context.Context, jobID string, chunkIndex int, segments []domain.Segment) error
	Segments(ctx context.Context, jobID string) ([]domain.Segment, error)
	MarkCompleted(ctx context.Context, jobID, transcriptPath, pdfPath string, numScreenshots int) error
	MarkFailed(ctx context.Context, jobID, errorKind, errorMessage string) error
	MarkCanceled(ctx context.Context, jobID string) error
	CancelRequested(ctx context.Context, jobID string) (bool, error)
	ResumableJobs(ctx context.Context) ([]string, error)
}

// MediaToolkit probes and slices media files.
type MediaToolkit interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, videoPath, outPath string) error
	ExtractClip(ctx context.Context, audioPath, outPath string, startSeconds, durationSeconds float64) error
}

// Transcriber converts one audio chunk into timestamped segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, startOffsetSeconds float64, modelSize string) ([]domain.Segment, error)
}

// FrameSampler captures screenshots at a fixed interval across the video.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath, outDir string, duration float64, intervalSeconds int) ([]screenshot.Shot, error)
}
