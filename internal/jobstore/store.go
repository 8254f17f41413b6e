// Package jobstore is the durable Job Store: one record per job, atomic
// per-chunk appends, and serialized writes to any single record. Records are
// readable by any process with database access, so status viewers do not
// need the worker to be running.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
)

// RecordVersion is the current job record schema version. Reads of records
// written by a newer schema fail closed instead of coercing fields.
const RecordVersion = 1

// Store handles all job persistence for both the API and the worker.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New creates a Store on top of an established database connection.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// jobRow flattens the job record for sqlx scanning.
type jobRow struct {
	JobID                     string     `db:"job_id"`
	Filename                  string     `db:"filename"`
	SourcePath                string     `db:"source_path"`
	Status                    string     `db:"status"`
	ChunkDurationSeconds      int        `db:"chunk_duration_seconds"`
	ScreenshotIntervalSeconds int        `db:"screenshot_interval_seconds"`
	ModelSize                 string     `db:"model_size"`
	ChunksTotal               int        `db:"chunks_total"`
	ChunksDone                int        `db:"chunks_done"`
	CancelRequested           bool       `db:"cancel_requested"`
	ErrorKind                 string     `db:"error_kind"`
	ErrorMessage              string     `db:"error_message"`
	TranscriptPath            string     `db:"transcript_path"`
	PDFPath                   string     `db:"pdf_path"`
	NumSegments               int        `db:"num_segments"`
	NumScreenshots            int        `db:"num_screenshots"`
	RecordVersion             int        `db:"record_version"`
	CreatedAt                 time.Time  `db:"created_at"`
	StartedAt                 *time.Time `db:"started_at"`
	CompletedAt               *time.Time `db:"completed_at"`
	UpdatedAt                 time.Time  `db:"updated_at"`
}

const jobColumns = `
	job_id, filename, source_path, status,
	chunk_duration_seconds, screenshot_interval_seconds, model_size,
	chunks_total, chunks_done, cancel_requested,
	error_kind, error_message, transcript_path, pdf_path,
	num_segments, num_screenshots, record_version,
	created_at, started_at, completed_at, updated_at
`

func (r jobRow) toDomain() (*domain.Job, error) {
	if r.RecordVersion > RecordVersion {
		return nil, fmt.Errorf("job %s has record version %d, this build understands up to %d",
			r.JobID, r.RecordVersion, RecordVersion)
	}

	return &domain.Job{
		JobID:      r.JobID,
		Filename:   r.Filename,
		SourcePath: r.SourcePath,
		Status:     r.Status,
		Config: domain.JobConfig{
			ChunkDurationSeconds:      r.ChunkDurationSeconds,
			ScreenshotIntervalSeconds: r.ScreenshotIntervalSeconds,
			ModelSize:                 r.ModelSize,
		},
		ChunksTotal:     r.ChunksTotal,
		ChunksDone:      r.ChunksDone,
		CancelRequested: r.CancelRequested,
		ErrorKind:       r.ErrorKind,
		ErrorMessage:    r.ErrorMessage,
		TranscriptPath:  r.TranscriptPath,
		PDFPath:         r.PDFPath,
		NumSegments:     r.NumSegments,
		NumScreenshots:  r.NumScreenshots,
		RecordVersion:   r.RecordVersion,
		CreatedAt:       r.CreatedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

// CreateJob inserts a new QUEUED job record.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, filename, source_path, status,
			chunk_duration_seconds, screenshot_interval_seconds, model_size,
			record_version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.Filename,
		job.SourcePath,
		job.Status,
		job.Config.ChunkDurationSeconds,
		job.Config.ScreenshotIntervalSeconds,
		job.Config.ModelSize,
		RecordVersion,
		job.CreatedAt,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job record created",
		slog.String("job_id", job.JobID),
		slog.String("filename", job.Filename),
	)
	return nil
}

// GetJob retrieves one job record by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toDomain()
}

// Filter narrows and paginates job listings.
type Filter struct {
	Status   string
	PageSize int
	Cursor   *Cursor
}

// Cursor marks a position in the newest-first listing order.
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns jobs newest first, fetching one extra row past PageSize
// so callers can detect another page.
func (s *Store) ListJobs(ctx context.Context, filter Filter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	for _, row := range rows {
		job, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// ClaimJob moves a job into PROCESSING for this run. Claiming a job that is
// already PROCESSING is how a restarted worker resumes it; claiming a
// terminal or missing job returns ErrJobNotClaimable.
func (s *Store) ClaimJob(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    started_at = COALESCE(started_at, NOW()),
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status IN ($3, $1)
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query, domain.JobStatusProcessing, jobID, domain.JobStatusQueued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotClaimable
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", jobID),
		slog.Int("chunks_done", row.ChunksDone),
	)
	return row.toDomain()
}

// SetChunkPlan records the total chunk count once the windows are computed.
func (s *Store) SetChunkPlan(ctx context.Context, jobID string, chunksTotal int) error {
	query := `
		UPDATE jobs
		SET chunks_total = $1, updated_at = NOW()
		WHERE job_id = $2 AND status = $3
	`

	result, err := s.db.ExecContext(ctx, query, chunksTotal, jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to set chunk plan: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s is not processing, cannot set chunk plan", jobID)
	}
	return nil
}

// AppendChunkResult persists one completed chunk atomically: its segments
// are inserted and chunks_done advances, in a single transaction guarded so
// progress only ever moves forward by one chunk. This is the recovery
// boundary a restarted worker resumes from.
func (s *Store) AppendChunkResult(ctx context.Context, jobID string, chunkIndex int, segments []domain.Segment) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET chunks_done = $1,
		    num_segments = num_segments + $2,
		    updated_at = NOW()
		WHERE job_id = $3 AND status = $4 AND chunks_done = $5
	`, chunkIndex+1, len(segments), jobID, domain.JobStatusProcessing, chunkIndex)
	if err != nil {
		return fmt.Errorf("failed to advance chunk progress: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s progress is not at chunk %d, refusing out-of-order append", jobID, chunkIndex)
	}

	var nextSeq int
	if err := tx.GetContext(ctx, &nextSeq, `
		SELECT COALESCE(MAX(seq), -1) + 1 FROM transcript_segments WHERE job_id = $1
	`, jobID); err != nil {
		return fmt.Errorf("failed to read segment sequence: %w", err)
	}

	for i, seg := range segments {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO transcript_segments (job_id, seq, chunk_index, start_seconds, end_seconds, text)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, jobID, nextSeq+i, chunkIndex, seg.StartSeconds, seg.EndSeconds, seg.Text); err != nil {
			return fmt.Errorf("failed to insert transcript segment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk result: %w", err)
	}

	s.logger.Debug("Chunk result persisted",
		slog.String("job_id", jobID),
		slog.Int("chunk_index", chunkIndex),
		slog.Int("segments", len(segments)),
	)
	return nil
}

// Segments returns the job's transcript in append order, which by
// construction is chronological.
func (s *Store) Segments(ctx context.Context, jobID string) ([]domain.Segment, error) {
	var segments []domain.Segment
	err := s.db.SelectContext(ctx, &segments, `
		SELECT start_seconds, end_seconds, text
		FROM transcript_segments
		WHERE job_id = $1
		ORDER BY seq
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript segments: %w", err)
	}
	return segments, nil
}

// MarkCompleted finalizes a successful job with its output references.
func (s *Store) MarkCompleted(ctx context.Context, jobID, transcriptPath, pdfPath string, numScreenshots int) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    transcript_path = $2,
		    pdf_path = $3,
		    num_screenshots = $4,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted, transcriptPath, pdfPath, numScreenshots,
		jobID, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s is not processing, cannot complete", jobID)
	}

	s.logger.Info("Job completed",
		slog.String("job_id", jobID),
		slog.String("transcript", transcriptPath),
		slog.String("pdf", pdfPath),
	)
	return nil
}

// MarkFailed records a terminal failure with its error kind. Partial
// transcript rows are left intact for inspection.
func (s *Store) MarkFailed(ctx context.Context, jobID, errorKind, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_kind = $2,
		    error_message = $3,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4 AND status NOT IN ($5, $6, $7)
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.JobStatusFailed, errorKind, errorMessage, jobID,
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCanceled)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}

	s.logger.Warn("Job failed",
		slog.String("job_id", jobID),
		slog.String("error_kind", errorKind),
		slog.String("error", errorMessage),
	)
	return nil
}

// MarkCanceled moves a non-terminal job to CANCELED.
func (s *Store) MarkCanceled(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $2 AND status NOT IN ($3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCanceled, jobID,
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCanceled)
	if err != nil {
		return fmt.Errorf("failed to mark job canceled: %w", err)
	}

	s.logger.Info("Job canceled", slog.String("job_id", jobID))
	return nil
}

// RequestCancel flags a running or queued job for cancellation. The worker
// observes the flag at the next chunk boundary.
func (s *Store) RequestCancel(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET cancel_requested = TRUE, updated_at = NOW()
		WHERE job_id = $1 AND status IN ($2, $3)
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to request cancellation: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return domain.ErrJobTerminal
	}

	s.logger.Info("Job cancellation requested", slog.String("job_id", jobID))
	return nil
}

// CancelRequested reads the cancellation flag.
func (s *Store) CancelRequested(ctx context.Context, jobID string) (bool, error) {
	var requested bool
	err := s.db.GetContext(ctx, &requested, `SELECT cancel_requested FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrJobNotFound
		}
		return false, fmt.Errorf("failed to read cancellation flag: %w", err)
	}
	return requested, nil
}

// DeleteJob removes a terminal job record and its transcript segments.
// Output artifacts on disk are the caller's concern; retaining them is the
// default policy.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	query := `DELETE FROM jobs WHERE job_id = $1 AND status IN ($2, $3, $4)`

	result, err := s.db.ExecContext(ctx, query, jobID,
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCanceled)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		if _, getErr := s.GetJob(ctx, jobID); getErr != nil {
			return getErr
		}
		return domain.ErrJobNotTerminal
	}

	s.logger.Info("Job deleted", slog.String("job_id", jobID))
	return nil
}

// ResumableJobs lists jobs a restarted worker should pick back up: queued
// jobs whose dispatch message may have been lost and processing jobs
// interrupted mid-run, oldest first.
func (s *Store) ResumableJobs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT job_id FROM jobs
		WHERE status IN ($1, $2)
		ORDER BY created_at
	`, domain.JobStatusQueued, domain.JobStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumable jobs: %w", err)
	}
	return ids, nil
}
