package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jack-B-Hall/Video2Text/internal/api/dto"
	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/jobstore"
)

// SubmitJob handles POST /api/v1/jobs
// Validates the processing options, records the job as QUEUED and nudges
// the worker over the queue. Submission only fails when the record cannot
// be written, a lost queue message is recovered by the worker's sweep.
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	cfg := domain.JobConfig{
		ChunkDurationSeconds:      req.Options.ChunkDurationSeconds,
		ScreenshotIntervalSeconds: req.Options.ScreenshotIntervalSeconds,
		ModelSize:                 req.Options.ModelSize,
	}
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		h.logger.Warn("Rejected job with invalid options",
			slog.String("source_path", req.SourcePath),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      err.Error(),
			"error_kind": domain.ErrorKindInvalidConfiguration,
		})
		return
	}

	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.SourcePath)
	}

	now := time.Now()
	job := domain.Job{
		JobID:      uuid.New().String(),
		Filename:   filename,
		SourcePath: req.SourcePath,
		Status:     domain.JobStatusQueued,
		Config:     cfg,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.store.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	h.publishJobNudge(c, job.JobID)

	c.JSON(http.StatusAccepted, toJobDTO(&job))
}

// publishJobNudge tells the worker a job is waiting. Failure here is logged
// and swallowed, the job record already exists and the recovery sweep will
// find it.
func (h *JobHandler) publishJobNudge(c *gin.Context, jobID string) {
	body, err := json.Marshal(gin.H{"job_id": jobID})
	if err != nil {
		h.logger.Error("Failed to marshal job message", slog.String("error", err.Error()))
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Warn("Failed to publish job message, sweep will recover",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.logger.Debug("Job message published", slog.String("job_id", jobID))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// GetTranscript handles GET /api/v1/jobs/:job_id/transcript
// Returns whatever transcript segments have been persisted so far, which
// for a running job is the completed chunks.
func (h *JobHandler) GetTranscript(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	segments, err := h.store.Segments(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to load transcript", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load transcript",
		})
		return
	}

	c.JSON(http.StatusOK, dto.TranscriptResponse{
		JobID:    job.JobID,
		Status:   job.Status,
		Segments: segments,
	})
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional status filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := jobstore.Filter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		cursorObj := jobstore.Cursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		}
		nextCursor, err = EncodeJobCursor(&cursorObj)
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Flags a queued or running job for cancellation. The worker honors the
// flag at the next chunk boundary, so the response is an acknowledgment,
// not a completed cancellation.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.store.RequestCancel(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		case errors.Is(err, domain.ErrJobTerminal):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Job already reached a terminal state",
			})
		default:
			h.logger.Error("Failed to request cancellation", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to request cancellation",
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":           jobID,
		"cancel_requested": true,
	})
}

// DeleteJob handles DELETE /api/v1/jobs/:job_id
// Removes a terminal job record. Output files on disk are retained unless
// the artifact policy says otherwise.
func (h *JobHandler) DeleteJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	err := h.store.DeleteJob(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
		case errors.Is(err, domain.ErrJobNotTerminal):
			c.JSON(http.StatusConflict, gin.H{
				"error": "Job is still queued or processing, cancel it first",
			})
		default:
			h.logger.Error("Failed to delete job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to delete job",
			})
		}
		return
	}

	if h.artifacts.DeleteOutputs && h.artifacts.OutputDir != "" {
		jobDir := filepath.Join(h.artifacts.OutputDir, jobID)
		if err := os.RemoveAll(jobDir); err != nil {
			h.logger.Warn("Failed to remove job artifacts",
				slog.String("job_id", jobID),
				slog.String("dir", jobDir),
				slog.String("error", err.Error()),
			)
		}
	}

	c.Status(http.StatusNoContent)
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	d := dto.JobDTO{
		JobID:      job.JobID,
		Filename:   job.Filename,
		SourcePath: job.SourcePath,
		Status:     job.Status,
		Progress:   job.Progress(),
		Options: dto.JobOptions{
			ChunkDurationSeconds:      job.Config.ChunkDurationSeconds,
			ScreenshotIntervalSeconds: job.Config.ScreenshotIntervalSeconds,
			ModelSize:                 job.Config.ModelSize,
		},
		ChunksTotal:     job.ChunksTotal,
		ChunksDone:      job.ChunksDone,
		CancelRequested: job.CancelRequested,
		ErrorKind:       job.ErrorKind,
		ErrorMessage:    job.ErrorMessage,
		TranscriptPath:  job.TranscriptPath,
		PDFPath:         job.PDFPath,
		NumSegments:     job.NumSegments,
		NumScreenshots:  job.NumScreenshots,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}

	if job.StartedAt != nil {
		d.StartedAt = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		d.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	return d
}
