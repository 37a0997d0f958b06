//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"buddy/internal/application"
)

// MicrophoneSource stub when portaudio is not available
type MicrophoneSource struct {
	failureSignal

	logger *slog.Logger
}

func NewMicrophoneSource(_ application.AudioFormat, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(_ context.Context, _ application.FrameSink) error {
	return fmt.Errorf("microphone source not available: rebuild with -tags portaudio")
}

func (m *MicrophoneSource) Stop() error {
	return nil
}
