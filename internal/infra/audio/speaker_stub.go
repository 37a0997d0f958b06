//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"errors"
)

var ErrNoSpeaker = errors.New("speaker not available: rebuild with -tags portaudio")

// Speaker stub when portaudio is not available
type Speaker struct{}

func NewSpeaker() *Speaker {
	return &Speaker{}
}

func (s *Speaker) Play(_ context.Context, _ []int16, _ int) error {
	return ErrNoSpeaker
}
