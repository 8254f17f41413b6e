package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jack-B-Hall/Video2Text/shared/rabbitmq"
)

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Store        Store
	RabbitClient *rabbitmq.Client
	Media        MediaToolkit
	Transcriber  Transcriber
	Sampler      FrameSampler

	Concurrency   int
	JobTimeout    time.Duration
	ChunkRetries  int
	RetryBackoff  time.Duration
	SweepInterval time.Duration
	PrefetchCount int
	QueueName     string

	OutputDir string
	TempDir   string
}

// Worker runs the transcription pipeline for dispatched jobs
type Worker struct {
	logger       *slog.Logger
	store        Store
	rabbitClient *rabbitmq.Client
	media        MediaToolkit
	transcriber  Transcriber
	sampler      FrameSampler

	workerID          string
	concurrency       int
	jobTimeout        time.Duration
	chunkRetries      int
	retryBackoff      time.Duration
	sweepInterval     time.Duration
	prefetchCount     int
	rabbitMQQueueName string

	outputDir string
	tempDir   string

	jobsChan chan *JobMessage
	stopChan chan struct{}
	wg       sync.WaitGroup

	activeMu   sync.Mutex
	activeJobs map[string]struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:            cfg.Logger,
		store:             cfg.Store,
		rabbitClient:      cfg.RabbitClient,
		media:             cfg.Media,
		transcriber:       cfg.Transcriber,
		sampler:           cfg.Sampler,
		workerID:          fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		concurrency:       cfg.Concurrency,
		jobTimeout:        cfg.JobTimeout,
		chunkRetries:      cfg.ChunkRetries,
		retryBackoff:      cfg.RetryBackoff,
		sweepInterval:     cfg.SweepInterval,
		prefetchCount:     cfg.PrefetchCount,
		rabbitMQQueueName: cfg.QueueName,
		outputDir:         cfg.OutputDir,
		tempDir:           cfg.TempDir,
		jobsChan:          make(chan *JobMessage),
		stopChan:          make(chan struct{}),
		activeJobs:        make(map[string]struct{}),
	}
}

// Start begins consuming and processing jobs. It blocks until the context
// is canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Duration("sweep_interval", w.sweepInterval),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runRecoverySweep(ctx)
	}()

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// tryAcquireJob marks a job as in flight on this worker. It returns false
// when another goroutine already holds it, which happens when a queue
// message and a recovery sweep dispatch the same job.
func (w *Worker) tryAcquireJob(jobID string) bool {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()

	if _, active := w.activeJobs[jobID]; active {
		return false
	}
	w.activeJobs[jobID] = struct{}{}
	return true
}

func (w *Worker) releaseJob(jobID string) {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	delete(w.activeJobs, jobID)
}

func (w *Worker) isJobActive(jobID string) bool {
	w.activeMu.Lock()
	defer w.activeMu.Unlock()
	_, active := w.activeJobs[jobID]
	return active
}
