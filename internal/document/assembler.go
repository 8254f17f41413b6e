// Package document assembles job outputs: the plain-text transcript and the
// illustrated PDF that interleaves transcript text with sampled screenshots.
package document

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/screenshot"
)

// WriteTranscript writes one line per segment, prefixed with its timestamp.
func WriteTranscript(segments []domain.Segment, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript directory: %w", err)
	}

	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(fmt.Sprintf("[%s] %s\n\n", domain.FormatTimestamp(seg.StartSeconds), seg.Text))
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write transcript file: %w", err)
	}
	return nil
}

// NearestSegment returns the index of the segment whose start time is
// closest to ts. Ties go to the earliest segment. Returns -1 when segments
// is empty.
func NearestSegment(segments []domain.Segment, ts float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, seg := range segments {
		dist := math.Abs(seg.StartSeconds - ts)
		if dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

// PairScreenshots assigns each screenshot to its nearest segment by start
// time, preserving screenshot order within a segment.
func PairScreenshots(segments []domain.Segment, shots []screenshot.Shot) map[int][]screenshot.Shot {
	paired := make(map[int][]screenshot.Shot)
	for _, shot := range shots {
		idx := NearestSegment(segments, shot.TimestampSeconds)
		if idx < 0 {
			continue
		}
		paired[idx] = append(paired[idx], shot)
	}
	return paired
}
