package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.handleMessage(ctx, workerName, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, workerName string, msg *JobMessage) {
	if !w.tryAcquireJob(msg.JobID) {
		w.logger.Debug("Job already in flight on this worker, skipping",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
		)
		w.acknowledge(msg, nil)
		return
	}
	defer w.releaseJob(msg.JobID)

	w.logger.Info("Worker received job",
		slog.String("worker_name", workerName),
		slog.String("job_id", msg.JobID),
		slog.Bool("from_sweep", msg.FromSweep),
	)

	err := w.processJob(ctx, msg.JobID)
	if err != nil {
		w.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", msg.JobID),
			slog.String("error", err.Error()),
		)
	}

	w.acknowledge(msg, err)
}

// acknowledge settles the queue message behind a job. Sweep-origin messages
// have no delivery to settle.
func (w *Worker) acknowledge(msg *JobMessage, procErr error) {
	if msg.FromSweep {
		return
	}

	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
			slog.String("job_id", msg.JobID),
		)
		return
	}

	if procErr != nil {
		requeue := w.shouldRequeueJob(procErr)
		if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("job_id", msg.JobID),
				slog.String("error", nackErr.Error()),
			)
		} else {
			w.logger.Info("Message NACKed",
				slog.String("job_id", msg.JobID),
				slog.Bool("requeue", requeue),
			)
		}
		return
	}

	if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("job_id", msg.JobID),
			slog.String("error", ackErr.Error()),
		)
	}
}

// shouldRequeueJob determines if a job message should be requeued based on the error type
func (w *Worker) shouldRequeueJob(err error) bool {
	// A job another worker holds, or one already terminal, has nothing left
	// to redeliver
	if errors.Is(err, domain.ErrJobNotClaimable) {
		return false
	}

	// Requeue for transient/retryable errors
	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Terminal pipeline failures are recorded in the job record, not retried
	// through the queue
	return false
}
