//go:build !whisper

package whisper

import (
	"context"
	"errors"
	"log/slog"
)

var ErrUnavailable = errors.New("local whisper not available: rebuild with -tags whisper")

// Transcriber stub when whisper.cpp is not linked in.
type Transcriber struct{}

func New(_ string, _ *slog.Logger) (*Transcriber, error) {
	return nil, ErrUnavailable
}

func (t *Transcriber) Transcribe(_ context.Context, _ []float32, _ string) (string, error) {
	return "", ErrUnavailable
}

func (t *Transcriber) Close() error {
	return nil
}
