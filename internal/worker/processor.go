package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Jack-B-Hall/Video2Text/internal/chunker"
	"github.com/Jack-B-Hall/Video2Text/internal/document"
	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/screenshot"
)

// errCancelRequested signals that the job's cancellation flag was observed
// at a chunk boundary.
var errCancelRequested = errors.New("cancellation requested")

type shotsResult struct {
	shots []screenshot.Shot
	err   error
}

// processJob runs the full pipeline for one job. Terminal outcomes, success
// or failure, are recorded in the job record and return nil so the queue
// message is acknowledged. Only transient infrastructure errors come back
// as retryable.
func (w *Worker) processJob(ctx context.Context, jobID string) error {
	job, err := w.store.ClaimJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotClaimable) {
			w.logger.Warn("Job not claimable, skipping",
				slog.String("job_id", jobID),
			)
			return err
		}
		return domain.NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}

	if job.ChunksDone > 0 {
		w.logger.Info("Resuming interrupted job",
			slog.String("job_id", job.JobID),
			slog.Int("chunks_done", job.ChunksDone),
			slog.Int("chunks_total", job.ChunksTotal),
		)
	}

	if job.CancelRequested {
		if err := w.store.MarkCanceled(ctx, job.JobID); err != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to mark job canceled: %w", err))
		}
		return nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err = w.runPipeline(jobCtx, job)
	switch {
	case err == nil:
		return nil

	case errors.Is(err, errCancelRequested):
		if mcErr := w.store.MarkCanceled(ctx, job.JobID); mcErr != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to mark job canceled: %w", mcErr))
		}
		return nil

	default:
		kind := domain.ErrorKindOf(err)
		if mfErr := w.store.MarkFailed(ctx, job.JobID, kind, err.Error()); mfErr != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to mark job failed: %w", mfErr))
		}
		return nil
	}
}

// runPipeline executes probe, chunked transcription, screenshot sampling
// and document assembly for a claimed job.
func (w *Worker) runPipeline(ctx context.Context, job *domain.Job) error {
	duration, err := w.media.ProbeDuration(ctx, job.SourcePath)
	if err != nil {
		return domain.NewPipelineError(domain.ErrorKindMediaRead, err)
	}

	w.logger.Info("Video probed",
		slog.String("job_id", job.JobID),
		slog.Float64("duration_seconds", duration),
	)

	workDir := filepath.Join(w.tempDir, job.JobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return domain.NewPipelineError(domain.ErrorKindResourceExhaustion, err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "audio.wav")
	if err := w.media.ExtractAudio(ctx, job.SourcePath, audioPath); err != nil {
		return domain.NewPipelineError(domain.ErrorKindMediaRead, err)
	}

	windows, err := chunker.Plan(duration, job.Config.ChunkDurationSeconds)
	if err != nil {
		return domain.NewPipelineError(domain.ErrorKindMediaRead, err)
	}

	if err := w.store.SetChunkPlan(ctx, job.JobID, len(windows)); err != nil {
		return domain.NewPipelineError(domain.ErrorKindPersistence, err)
	}

	// Screenshots come off the original video while chunks transcribe, the
	// two never touch the same files.
	shotCtx, stopShots := context.WithCancel(ctx)
	defer stopShots()

	shotsCh := make(chan shotsResult, 1)
	go func() {
		outDir := filepath.Join(w.outputDir, job.JobID, "screenshots")
		shots, sErr := w.sampler.Sample(shotCtx, job.SourcePath, outDir, duration, job.Config.ScreenshotIntervalSeconds)
		shotsCh <- shotsResult{shots: shots, err: sErr}
	}()

	if job.ChunksDone > len(windows) {
		return domain.NewPipelineError(domain.ErrorKindPersistence,
			fmt.Errorf("job records %d chunks done but only %d planned", job.ChunksDone, len(windows)))
	}

	for _, win := range windows[job.ChunksDone:] {
		canceled, err := w.store.CancelRequested(ctx, job.JobID)
		if err != nil {
			return domain.NewPipelineError(domain.ErrorKindPersistence, err)
		}
		if canceled {
			return errCancelRequested
		}

		clipPath := filepath.Join(workDir, fmt.Sprintf("chunk_%03d.wav", win.Index))
		if err := w.media.ExtractClip(ctx, audioPath, clipPath, win.StartSeconds, win.Duration()); err != nil {
			return domain.NewPipelineError(domain.ErrorKindChunkTranscription,
				fmt.Errorf("chunk %d: %w", win.Index, err))
		}

		segments, err := w.transcribeWithRetry(ctx, clipPath, win.StartSeconds, job.Config.ModelSize)
		if err != nil {
			return domain.NewPipelineError(domain.ErrorKindChunkTranscription,
				fmt.Errorf("chunk %d: %w", win.Index, err))
		}

		if err := w.store.AppendChunkResult(ctx, job.JobID, win.Index, segments); err != nil {
			return domain.NewPipelineError(domain.ErrorKindPersistence, err)
		}

		os.Remove(clipPath)

		w.logger.Info("Chunk transcribed",
			slog.String("job_id", job.JobID),
			slog.Int("chunk_index", win.Index),
			slog.Int("chunks_total", len(windows)),
			slog.Int("segments", len(segments)),
		)
	}

	res := <-shotsCh
	if res.err != nil {
		w.logger.Warn("Screenshot sampling incomplete",
			slog.String("job_id", job.JobID),
			slog.String("error", res.err.Error()),
		)
	}

	segments, err := w.store.Segments(ctx, job.JobID)
	if err != nil {
		return domain.NewPipelineError(domain.ErrorKindPersistence, err)
	}

	outDir := filepath.Join(w.outputDir, job.JobID)
	transcriptPath := filepath.Join(outDir, "transcript.txt")
	if err := document.WriteTranscript(segments, transcriptPath); err != nil {
		return domain.NewPipelineError(domain.ErrorKindAssembly, err)
	}

	pdfPath := filepath.Join(outDir, "transcript.pdf")
	if err := document.WritePDF(segments, res.shots, pdfPath); err != nil {
		return domain.NewPipelineError(domain.ErrorKindAssembly, err)
	}

	if err := w.store.MarkCompleted(ctx, job.JobID, transcriptPath, pdfPath, len(res.shots)); err != nil {
		return domain.NewPipelineError(domain.ErrorKindPersistence, err)
	}

	return nil
}

// transcribeWithRetry runs one chunk through the transcription engine,
// retrying transient failures with doubling backoff before giving up.
func (w *Worker) transcribeWithRetry(ctx context.Context, clipPath string, startOffset float64, modelSize string) ([]domain.Segment, error) {
	var lastErr error
	backoff := w.retryBackoff

	for attempt := 0; attempt <= w.chunkRetries; attempt++ {
		if attempt > 0 {
			w.logger.Warn("Retrying chunk transcription",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		segments, err := w.transcriber.Transcribe(ctx, clipPath, startOffset, modelSize)
		if err == nil {
			return segments, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("transcription failed after %d attempts: %w", w.chunkRetries+1, lastErr)
}
