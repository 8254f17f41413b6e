package domain

// Job status constants
const (
	JobStatusQueued     = "QUEUED"
	JobStatusProcessing = "PROCESSING"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
	JobStatusCanceled   = "CANCELED"
)

// Configuration bounds enforced at submission time
const (
	MinChunkDurationSeconds = 60
	MaxChunkDurationSeconds = 600

	MinScreenshotIntervalSeconds = 10
	MaxScreenshotIntervalSeconds = 120

	DefaultChunkDurationSeconds      = 180
	DefaultScreenshotIntervalSeconds = 30
	DefaultModelSize                 = ModelSizeBase
)

// Whisper model sizes
const (
	ModelSizeTiny   = "tiny"
	ModelSizeBase   = "base"
	ModelSizeSmall  = "small"
	ModelSizeMedium = "medium"
	ModelSizeLarge  = "large"
)

// ModelSizes lists the recognized whisper model sizes, smallest first.
var ModelSizes = []string{
	ModelSizeTiny,
	ModelSizeBase,
	ModelSizeSmall,
	ModelSizeMedium,
	ModelSizeLarge,
}

// ValidModelSize reports whether size names a recognized whisper model.
func ValidModelSize(size string) bool {
	for _, s := range ModelSizes {
		if s == size {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether a status permits no further transitions.
func TerminalStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}
