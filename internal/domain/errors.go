package domain

import "errors"

// Error kinds recorded on failed jobs
const (
	ErrorKindInvalidConfiguration = "InvalidConfiguration"
	ErrorKindMediaRead            = "MediaReadError"
	ErrorKindChunkTranscription   = "ChunkTranscriptionError"
	ErrorKindResourceExhaustion   = "ResourceExhaustion"
	ErrorKindPersistence          = "PersistenceError"
	ErrorKindAssembly             = "AssemblyError"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotClaimable is returned when a job cannot move to PROCESSING
	// because another run already claimed it or it reached a terminal state
	ErrJobNotClaimable = errors.New("job not claimable")

	// ErrJobNotTerminal is returned when deleting a job that is still queued
	// or processing
	ErrJobNotTerminal = errors.New("job is not in a terminal state")

	// ErrJobTerminal is returned when cancelling a job that already finished
	ErrJobTerminal = errors.New("job already reached a terminal state")

	// ErrInvalidConfiguration is returned for option values outside the
	// documented ranges
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// PipelineError carries the error-kind classification for a failed pipeline
// stage so the job record can store it alongside the message.
type PipelineError struct {
	Kind string
	Err  error
}

func (e *PipelineError) Error() string {
	return e.Kind + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError classifies err under the given kind.
func NewPipelineError(kind string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Err: err}
}

// ErrorKindOf extracts the recorded kind from err, defaulting to
// ChunkTranscriptionError for unclassified pipeline failures.
func ErrorKindOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrorKindChunkTranscription
}

// RetryableError wraps transient per-chunk errors that should be retried
// before escalating to a job failure.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
