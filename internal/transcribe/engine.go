// Package transcribe adapts the speech-to-text collaborator. Engines accept
// one bounded audio chunk and return segments already translated onto the
// job's global timeline.
package transcribe

import (
	"context"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
)

// Engine is a pluggable speech-to-text backend.
type Engine interface {
	// Transcribe converts a chunk of audio into timestamped segments. Times
	// in the returned segments are absolute: chunk-relative times shifted by
	// startOffsetSeconds. Silence legitimately yields zero segments.
	Transcribe(ctx context.Context, audioPath string, startOffsetSeconds float64, modelSize string) ([]domain.Segment, error)
}
