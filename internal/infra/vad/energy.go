// Package vad classifies PCM frames as speech or silence by signal energy.
package vad

import (
	"errors"
	"fmt"

	"buddy/internal/pcm"
)

var ErrFrameSize = errors.New("frame must be 10, 20 or 30 ms of 16-bit mono audio")

// thresholds are RMS levels in [0, 1] indexed by aggressiveness. Higher
// aggressiveness needs louder input before calling a frame speech.
var thresholds = [4]float64{0.006, 0.012, 0.02, 0.035}

// EnergyClassifier is stateless and safe for concurrent use.
type EnergyClassifier struct {
	threshold float64
}

// NewEnergyClassifier accepts aggressiveness 0 (least) to 3 (most).
func NewEnergyClassifier(aggressiveness int) (*EnergyClassifier, error) {
	if aggressiveness < 0 || aggressiveness >= len(thresholds) {
		return nil, fmt.Errorf("aggressiveness %d outside 0-3", aggressiveness)
	}
	return &EnergyClassifier{threshold: thresholds[aggressiveness]}, nil
}

func (c *EnergyClassifier) IsSpeech(frame []byte, sampleRate int) (bool, error) {
	if err := checkFrame(len(frame), sampleRate); err != nil {
		return false, err
	}
	return pcm.RMS(pcm.FromBytes(frame)) >= c.threshold, nil
}

func checkFrame(size, sampleRate int) error {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("unsupported sample rate %d", sampleRate)
	}
	for _, ms := range []int{10, 20, 30} {
		if size == sampleRate*ms/1000*2 {
			return nil
		}
	}
	return fmt.Errorf("%w: got %d bytes at %d Hz", ErrFrameSize, size, sampleRate)
}
