// Package chunker computes the time windows a job's audio track is split
// into for independent transcription.
package chunker

import "fmt"

// Window is one bounded span of audio scheduled for transcription. Times are
// seconds on the job's global timeline.
type Window struct {
	Index        int
	StartSeconds float64
	EndSeconds   float64
}

// Duration returns the window length in seconds.
func (w Window) Duration() float64 {
	return w.EndSeconds - w.StartSeconds
}

// Plan splits a track of duration seconds into contiguous windows of at most
// chunkDuration seconds each. Windows cover [0, duration] with no gaps and no
// overlap; the final window may be shorter. A track no longer than one chunk
// yields exactly one window.
func Plan(duration float64, chunkDuration int) ([]Window, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("media duration must be positive, got %v", duration)
	}
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %d", chunkDuration)
	}

	step := float64(chunkDuration)
	var windows []Window
	for start := 0.0; start < duration; start += step {
		end := start + step
		if end > duration {
			end = duration
		}
		windows = append(windows, Window{
			Index:        len(windows),
			StartSeconds: start,
			EndSeconds:   end,
		})
	}
	return windows, nil
}
