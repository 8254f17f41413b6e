package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/screenshot"
)

type fakeStore struct {
	mu       sync.Mutex
	job      *domain.Job
	segments []domain.Segment

	cancelAfterChunks int

	failedKind    string
	failedMessage string
}

func newFakeStore(job *domain.Job) *fakeStore {
	return &fakeStore{job: job, cancelAfterChunks: -1}
}

func (s *fakeStore) ClaimJob(ctx context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.job == nil || s.job.JobID != jobID || domain.TerminalStatus(s.job.Status) {
		return nil, domain.ErrJobNotClaimable
	}
	s.job.Status = domain.JobStatusProcessing
	copied := *s.job
	return &copied, nil
}

func (s *fakeStore) SetChunkPlan(ctx context.Context, jobID string, chunksTotal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.ChunksTotal = chunksTotal
	return nil
}

func (s *fakeStore) AppendChunkResult(ctx context.Context, jobID string, chunkIndex int, segments []domain.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chunkIndex != s.job.ChunksDone {
		return fmt.Errorf("out-of-order append: chunk %d with %d done", chunkIndex, s.job.ChunksDone)
	}
	s.segments = append(s.segments, segments...)
	s.job.ChunksDone++
	s.job.NumSegments += len(segments)

	if s.cancelAfterChunks >= 0 && s.job.ChunksDone >= s.cancelAfterChunks {
		s.job.CancelRequested = true
	}
	return nil
}

func (s *fakeStore) Segments(ctx context.Context, jobID string) ([]domain.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Segment, len(s.segments))
	copy(out, s.segments)
	return out, nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, jobID, transcriptPath, pdfPath string, numScreenshots int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.Status = domain.JobStatusCompleted
	s.job.TranscriptPath = transcriptPath
	s.job.PDFPath = pdfPath
	s.job.NumScreenshots = numScreenshots
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, jobID, errorKind, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.Status = domain.JobStatusFailed
	s.failedKind = errorKind
	s.failedMessage = errorMessage
	return nil
}

func (s *fakeStore) MarkCanceled(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.job.Status = domain.JobStatusCanceled
	return nil
}

func (s *fakeStore) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.job.CancelRequested, nil
}

func (s *fakeStore) ResumableJobs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil && !domain.TerminalStatus(s.job.Status) {
		return []string{s.job.JobID}, nil
	}
	return nil, nil
}

type fakeMedia struct {
	duration float64
	probeErr error
}

func (m *fakeMedia) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if m.probeErr != nil {
		return 0, m.probeErr
	}
	return m.duration, nil
}

func (m *fakeMedia) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	return os.WriteFile(outPath, []byte("wav"), 0o644)
}

func (m *fakeMedia) ExtractClip(ctx context.Context, audioPath, outPath string, startSeconds, durationSeconds float64) error {
	return os.WriteFile(outPath, []byte("clip"), 0o644)
}

type fakeTranscriber struct {
	mu      sync.Mutex
	offsets []float64

	// failOffset and failCount inject persistent failures for one chunk
	failOffset float64
	failCount  int
	failsLeft  int
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, audioPath string, startOffsetSeconds float64, modelSize string) ([]domain.Segment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.offsets = append(t.offsets, startOffsetSeconds)

	if t.failsLeft > 0 && startOffsetSeconds == t.failOffset {
		t.failsLeft--
		return nil, fmt.Errorf("model crashed")
	}

	return []domain.Segment{
		{
			StartSeconds: startOffsetSeconds,
			EndSeconds:   startOffsetSeconds + 5,
			Text:         fmt.Sprintf("chunk starting at %.0f", startOffsetSeconds),
		},
	}, nil
}

type fakeSampler struct {
	shots []screenshot.Shot
	err   error
}

func (s *fakeSampler) Sample(ctx context.Context, videoPath, outDir string, duration float64, intervalSeconds int) ([]screenshot.Shot, error) {
	return s.shots, s.err
}

func newTestJob() *domain.Job {
	return &domain.Job{
		JobID:      "8f14e45f-ceea-467f-a8cb-9c6d5a3b7c21",
		Filename:   "lecture.mp4",
		SourcePath: "/videos/lecture.mp4",
		Status:     domain.JobStatusQueued,
		Config: domain.JobConfig{
			ChunkDurationSeconds:      180,
			ScreenshotIntervalSeconds: 30,
			ModelSize:                 domain.ModelSizeBase,
		},
		RecordVersion: 1,
		CreatedAt:     time.Now(),
	}
}

func newTestWorker(t *testing.T, store Store, media MediaToolkit, tr Transcriber, sampler FrameSampler) *Worker {
	t.Helper()

	return NewWorker(&Config{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:         store,
		Media:         media,
		Transcriber:   tr,
		Sampler:       sampler,
		Concurrency:   1,
		JobTimeout:    time.Minute,
		ChunkRetries:  1,
		RetryBackoff:  time.Millisecond,
		SweepInterval: time.Minute,
		PrefetchCount: 1,
		QueueName:     "transcription_jobs",
		OutputDir:     t.TempDir(),
		TempDir:       t.TempDir(),
	})
}

func TestProcessJob_Success(t *testing.T) {
	job := newTestJob()
	store := newFakeStore(job)
	tr := &fakeTranscriber{}
	sampler := &fakeSampler{shots: []screenshot.Shot{
		{TimestampSeconds: 0, Path: "/missing/screenshot_000000.jpg"},
		{TimestampSeconds: 30, Path: "/missing/screenshot_000001.jpg"},
	}}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, sampler)

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, store.job.Status)
	assert.Equal(t, 3, store.job.ChunksTotal)
	assert.Equal(t, 3, store.job.ChunksDone)
	assert.Equal(t, 2, store.job.NumScreenshots)
	assert.Equal(t, []float64{0, 180, 360}, tr.offsets)

	require.Len(t, store.segments, 3)
	assert.Equal(t, 0.0, store.segments[0].StartSeconds)
	assert.Equal(t, 180.0, store.segments[1].StartSeconds)
	assert.Equal(t, 360.0, store.segments[2].StartSeconds)

	content, err := os.ReadFile(store.job.TranscriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[0:00:00] chunk starting at 0")
	assert.Contains(t, string(content), "[0:06:00] chunk starting at 360")

	info, err := os.Stat(store.job.PDFPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Equal(t, filepath.Dir(store.job.TranscriptPath), filepath.Dir(store.job.PDFPath))
}

func TestProcessJob_ChunkFailureBeyondRetries(t *testing.T) {
	job := newTestJob()
	store := newFakeStore(job)
	tr := &fakeTranscriber{failOffset: 180, failsLeft: 10}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, store.job.Status)
	assert.Equal(t, domain.ErrorKindChunkTranscription, store.failedKind)
	assert.Contains(t, store.failedMessage, "chunk 1")

	// First chunk's transcript survives the failure
	assert.Equal(t, 1, store.job.ChunksDone)
	require.Len(t, store.segments, 1)
	assert.Equal(t, 0.0, store.segments[0].StartSeconds)

	// Retries happened: chunk 1 attempted twice with ChunkRetries=1
	assert.Equal(t, []float64{0, 180, 180}, tr.offsets)
}

func TestProcessJob_ChunkFailureRecoversWithinRetries(t *testing.T) {
	job := newTestJob()
	store := newFakeStore(job)
	tr := &fakeTranscriber{failOffset: 180, failsLeft: 1}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, store.job.Status)
	assert.Equal(t, 3, store.job.ChunksDone)
	assert.Equal(t, []float64{0, 180, 180, 360}, tr.offsets)
}

func TestProcessJob_CancelBetweenChunks(t *testing.T) {
	job := newTestJob()
	store := newFakeStore(job)
	store.cancelAfterChunks = 1
	tr := &fakeTranscriber{}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCanceled, store.job.Status)
	assert.Equal(t, 1, store.job.ChunksDone)
	assert.Equal(t, []float64{0}, tr.offsets)
	require.Len(t, store.segments, 1)
}

func TestProcessJob_CancelBeforeStart(t *testing.T) {
	job := newTestJob()
	job.CancelRequested = true
	store := newFakeStore(job)
	tr := &fakeTranscriber{}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCanceled, store.job.Status)
	assert.Empty(t, tr.offsets)
}

func TestProcessJob_ResumeSkipsPersistedChunks(t *testing.T) {
	job := newTestJob()
	job.Status = domain.JobStatusProcessing
	job.ChunksTotal = 3
	job.ChunksDone = 2
	job.NumSegments = 2

	store := newFakeStore(job)
	store.segments = []domain.Segment{
		{StartSeconds: 0, EndSeconds: 5, Text: "chunk starting at 0"},
		{StartSeconds: 180, EndSeconds: 185, Text: "chunk starting at 180"},
	}
	tr := &fakeTranscriber{}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, store.job.Status)
	assert.Equal(t, 3, store.job.ChunksDone)

	// Only the unfinished chunk was transcribed, no duplicates appended
	assert.Equal(t, []float64{360}, tr.offsets)
	require.Len(t, store.segments, 3)
	assert.Equal(t, 360.0, store.segments[2].StartSeconds)
}

func TestProcessJob_TerminalJobIsNoOp(t *testing.T) {
	job := newTestJob()
	job.Status = domain.JobStatusCompleted
	store := newFakeStore(job)
	tr := &fakeTranscriber{}

	w := newTestWorker(t, store, &fakeMedia{duration: 400}, tr, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.ErrorIs(t, err, domain.ErrJobNotClaimable)

	assert.Equal(t, domain.JobStatusCompleted, store.job.Status)
	assert.Empty(t, tr.offsets)
	assert.False(t, w.shouldRequeueJob(err))
}

func TestProcessJob_ProbeFailure(t *testing.T) {
	job := newTestJob()
	store := newFakeStore(job)
	media := &fakeMedia{probeErr: fmt.Errorf("moov atom not found")}

	w := newTestWorker(t, store, media, &fakeTranscriber{}, &fakeSampler{})

	err := w.processJob(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusFailed, store.job.Status)
	assert.Equal(t, domain.ErrorKindMediaRead, store.failedKind)
	assert.Contains(t, store.failedMessage, "moov atom")
}

func TestShouldRequeueJob(t *testing.T) {
	w := newTestWorker(t, newFakeStore(nil), &fakeMedia{}, &fakeTranscriber{}, &fakeSampler{})

	tests := []struct {
		name    string
		err     error
		requeue bool
	}{
		{
			name:    "retryable error requeues",
			err:     domain.NewRetryableError(fmt.Errorf("db connection reset")),
			requeue: true,
		},
		{
			name:    "unclaimable job does not requeue",
			err:     domain.ErrJobNotClaimable,
			requeue: false,
		},
		{
			name:    "plain error does not requeue",
			err:     fmt.Errorf("something else"),
			requeue: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.requeue, w.shouldRequeueJob(tt.err))
		})
	}
}
