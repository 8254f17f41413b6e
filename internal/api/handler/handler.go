package handler

import (
	"context"
	"log/slog"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/jobstore"
)

// Store is the job persistence surface the HTTP handlers need.
type Store interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter jobstore.Filter) ([]domain.Job, error)
	Segments(ctx context.Context, jobID string) ([]domain.Segment, error)
	RequestCancel(ctx context.Context, jobID string) error
	DeleteJob(ctx context.Context, jobID string) error
}

// Publisher nudges the worker that a new job is waiting. Delivery is best
// effort, the worker's recovery sweep picks up anything lost here.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Artifacts is the output retention policy applied when a job record is
// deleted. The zero value retains everything on disk.
type Artifacts struct {
	OutputDir     string
	DeleteOutputs bool
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     Store
	Publisher Publisher
	Artifacts Artifacts
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	store     Store
	publisher Publisher
	artifacts Artifacts
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		artifacts: deps.Artifacts,
	}
}
