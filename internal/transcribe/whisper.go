package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
)

// WhisperEngine runs whisper.cpp against audio chunks and parses its JSON
// transcript output.
type WhisperEngine struct {
	binaryPath string
	modelsDir  string
	logger     *slog.Logger
}

// NewWhisperEngine creates an engine using the given whisper.cpp binary and
// a directory of ggml model files.
func NewWhisperEngine(binaryPath, modelsDir string, logger *slog.Logger) *WhisperEngine {
	return &WhisperEngine{
		binaryPath: binaryPath,
		modelsDir:  modelsDir,
		logger:     logger,
	}
}

// whisperOutput mirrors the JSON file whisper.cpp writes with -oj. Offsets
// are milliseconds relative to the start of the input file.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// Transcribe runs whisper.cpp on one chunk and returns its segments shifted
// onto the job's global timeline.
func (e *WhisperEngine) Transcribe(ctx context.Context, audioPath string, startOffsetSeconds float64, modelSize string) ([]domain.Segment, error) {
	modelPath, err := e.resolveModelPath(modelSize)
	if err != nil {
		return nil, err
	}

	outBase := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
	}

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("whisper inference failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}

	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisper completed but transcript JSON is missing: %w", err)
	}

	segments, err := parseSegments(raw, startOffsetSeconds)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Transcribed audio chunk",
		slog.String("audio", audioPath),
		slog.Float64("start_offset", startOffsetSeconds),
		slog.Int("segments", len(segments)),
	)
	return segments, nil
}

// parseSegments decodes whisper JSON output, drops empty segments, and
// shifts chunk-relative times by the chunk's start offset.
func parseSegments(raw []byte, startOffsetSeconds float64) ([]domain.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]domain.Segment, 0, len(out.Transcription))
	for _, s := range out.Transcription {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			StartSeconds: startOffsetSeconds + float64(s.Offsets.From)/1000,
			EndSeconds:   startOffsetSeconds + float64(s.Offsets.To)/1000,
			Text:         text,
		})
	}
	return segments, nil
}

// resolveModelPath maps a model size to its ggml file in the models
// directory, accepting either .bin or .gguf variants.
func (e *WhisperEngine) resolveModelPath(modelSize string) (string, error) {
	if !domain.ValidModelSize(modelSize) {
		return "", fmt.Errorf("unrecognized model size %q", modelSize)
	}

	for _, ext := range []string{".bin", ".gguf"} {
		candidate := filepath.Join(e.modelsDir, "ggml-"+modelSize+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no model file for size %q in %s", modelSize, e.modelsDir)
}
