// Package screenshot extracts still frames from the source video at a fixed
// interval for the illustrated transcript document.
package screenshot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Shot is one extracted frame and the timestamp it was taken at.
type Shot struct {
	TimestampSeconds float64
	Path             string
}

// FrameExtractor grabs a single still frame from a video.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath, outPath string, timestampSeconds float64) error
}

// Sampler walks the video timeline and extracts frames at each interval
// boundary. It has no ordering dependency on transcription and may run
// concurrently with it.
type Sampler struct {
	frames FrameExtractor
	logger *slog.Logger
}

// NewSampler creates a Sampler using the given frame extractor.
func NewSampler(frames FrameExtractor, logger *slog.Logger) *Sampler {
	return &Sampler{frames: frames, logger: logger}
}

// Timestamps returns the sample points 0, interval, 2*interval, … strictly
// below duration. A 100s video at a 30s interval samples 0, 30, 60 and 90.
func Timestamps(duration float64, intervalSeconds int) []float64 {
	if duration <= 0 || intervalSeconds <= 0 {
		return nil
	}

	var stamps []float64
	for ts := 0.0; ts < duration; ts += float64(intervalSeconds) {
		stamps = append(stamps, ts)
	}
	return stamps
}

// Sample extracts one frame per interval boundary into outDir. A frame that
// fails to extract is logged and skipped; the remaining timeline is still
// sampled, so the job never fails on a missing screenshot.
func (s *Sampler) Sample(ctx context.Context, videoPath, outDir string, duration float64, intervalSeconds int) ([]Shot, error) {
	stamps := Timestamps(duration, intervalSeconds)
	shots := make([]Shot, 0, len(stamps))

	for _, ts := range stamps {
		if err := ctx.Err(); err != nil {
			return shots, err
		}

		outPath := filepath.Join(outDir, fmt.Sprintf("screenshot_%06d.jpg", int(ts)))
		if err := s.frames.ExtractFrame(ctx, videoPath, outPath, ts); err != nil {
			s.logger.Warn("Failed to extract screenshot",
				slog.Float64("timestamp", ts),
				slog.String("error", err.Error()),
			)
			continue
		}
		shots = append(shots, Shot{TimestampSeconds: ts, Path: outPath})
	}

	s.logger.Info("Screenshot sampling complete",
		slog.String("video", videoPath),
		slog.Int("requested", len(stamps)),
		slog.Int("extracted", len(shots)),
	)
	return shots, nil
}
