package application

import (
	"context"
	"errors"
)

type SpeechToText interface {
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
}

// Synthesizer speaks text aloud and returns once playback has finished.
type Synthesizer interface {
	Speak(ctx context.Context, text, voice string) error
}

var ErrNoSynthesizer = errors.New("speech synthesis not configured")

// SilentSynthesizer fails every call so replies go to the notifier instead.
type SilentSynthesizer struct{}

func (SilentSynthesizer) Speak(_ context.Context, _, _ string) error {
	return ErrNoSynthesizer
}
