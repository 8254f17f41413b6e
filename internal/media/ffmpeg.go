// Package media wraps the ffmpeg/ffprobe collaborators: duration probing,
// audio extraction, per-window clip extraction, and frame extraction.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Toolkit executes media operations against a read-only source file. The
// source is never mutated, so transcription and screenshot extraction may
// read it concurrently without coordination.
type Toolkit struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
	runner      commandRunner
}

// NewToolkit creates a Toolkit using the given ffmpeg and ffprobe binaries.
func NewToolkit(ffmpegPath, ffprobePath string, logger *slog.Logger) *Toolkit {
	return &Toolkit{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		logger:      logger,
		runner:      &execRunner{},
	}
}

// ProbeDuration returns the media duration in seconds.
func (t *Toolkit) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("cannot access media file %s: %w", path, err)
	}

	result, err := t.runner.Run(ctx, t.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %s: %w", path, result.Stderr, err)
	}

	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(result.Stdout), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse media duration %q: %w", probe.Format.Duration, err)
	}

	t.logger.Debug("Probed media duration",
		slog.String("path", path),
		slog.Float64("duration_seconds", duration),
	)
	return duration, nil
}

// ExtractAudio extracts the audio track as mono 16kHz PCM WAV, the input
// format whisper expects.
func (t *Toolkit) ExtractAudio(ctx context.Context, videoPath, outPath string) error {
	result, err := t.runner.Run(ctx, t.ffmpegPath, buildExtractAudioArgs(videoPath, outPath)...)
	if err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %s: %w", result.Stderr, err)
	}

	if err := verifyOutput(outPath); err != nil {
		return fmt.Errorf("ffmpeg audio extraction produced no output: %w", err)
	}

	t.logger.Debug("Extracted audio track",
		slog.String("video", videoPath),
		slog.String("audio", outPath),
	)
	return nil
}

// ExtractClip cuts one chunk window out of an extracted WAV file.
func (t *Toolkit) ExtractClip(ctx context.Context, audioPath, outPath string, startSeconds, durationSeconds float64) error {
	result, err := t.runner.Run(ctx, t.ffmpegPath, buildExtractClipArgs(audioPath, outPath, startSeconds, durationSeconds)...)
	if err != nil {
		return fmt.Errorf("ffmpeg clip extraction failed at %.1fs: %s: %w", startSeconds, result.Stderr, err)
	}

	if err := verifyOutput(outPath); err != nil {
		return fmt.Errorf("ffmpeg clip extraction produced no output: %w", err)
	}
	return nil
}

// ExtractFrame grabs one still frame at the given timestamp.
func (t *Toolkit) ExtractFrame(ctx context.Context, videoPath, outPath string, timestampSeconds float64) error {
	result, err := t.runner.Run(ctx, t.ffmpegPath, buildExtractFrameArgs(videoPath, outPath, timestampSeconds)...)
	if err != nil {
		return fmt.Errorf("ffmpeg frame extraction failed at %.1fs: %s: %w", timestampSeconds, result.Stderr, err)
	}

	if err := verifyOutput(outPath); err != nil {
		return fmt.Errorf("ffmpeg frame extraction produced no output: %w", err)
	}
	return nil
}

// verifyOutput confirms ffmpeg actually wrote a non-empty file.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file %s is empty", path)
	}
	return nil
}

func buildExtractAudioArgs(videoPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

func buildExtractClipArgs(audioPath, outPath string, startSeconds, durationSeconds float64) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", audioPath,
		"-ss", formatSeconds(startSeconds),
		"-t", formatSeconds(durationSeconds),
		"-c:a", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		outPath,
	}
}

func buildExtractFrameArgs(videoPath, outPath string, timestampSeconds float64) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-ss", formatSeconds(timestampSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	}
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
