package worker

import (
	"context"
	"log/slog"
	"time"
)

// runRecoverySweep periodically rescans the job store for queued or
// processing jobs and feeds them back into the pool. This covers dispatch
// messages lost between the API and the queue as well as jobs interrupted
// by a worker restart, so the database stays the source of truth.
func (w *Worker) runRecoverySweep(ctx context.Context) {
	w.logger.Info("Recovery sweep started",
		slog.Duration("interval", w.sweepInterval),
	)

	w.sweepOnce(ctx)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Recovery sweep stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Recovery sweep stopped - stopChan closed")
			return

		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Worker) sweepOnce(ctx context.Context) {
	jobIDs, err := w.store.ResumableJobs(ctx)
	if err != nil {
		w.logger.Error("Recovery sweep failed to list jobs",
			slog.String("error", err.Error()),
		)
		return
	}

	if len(jobIDs) == 0 {
		return
	}

	w.logger.Info("Recovery sweep found resumable jobs",
		slog.Int("count", len(jobIDs)),
	)

	for _, jobID := range jobIDs {
		if w.isJobActive(jobID) {
			continue
		}

		msg := &JobMessage{JobID: jobID, FromSweep: true}
		select {
		case w.jobsChan <- msg:
			w.logger.Debug("Resumable job dispatched",
				slog.String("job_id", jobID),
			)
		default:
			// Pool is busy, the next sweep will pick the job up again
			return
		}
	}
}
