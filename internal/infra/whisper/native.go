//go:build whisper

// Package whisper transcribes locally with the whisper.cpp bindings. The
// static library and headers must be reachable through LIBRARY_PATH and
// C_INCLUDE_PATH; build with -tags whisper.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Transcriber owns a loaded model. Inference is serialised; the turn loop
// only ever runs one transcription at a time anyway.
type Transcriber struct {
	mu     sync.Mutex
	model  whisperlib.Model
	logger *slog.Logger
}

func New(modelPath string, logger *slog.Logger) (*Transcriber, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading whisper model %q: %w", modelPath, err)
	}
	return &Transcriber{model: model, logger: logger.With("component", "stt.whisper")}, nil
}

// Transcribe expects 16 kHz mono samples.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("creating whisper context: %w", err)
	}

	if language != "" {
		if err := wctx.SetLanguage(language); err != nil {
			t.logger.Warn("setting language, using model default", "language", language, "error", err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("processing audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Close()
}
