package domain

import (
	"time"

	"buddy/internal/pcm"
)

// Frame is a fixed-duration block of mono 16-bit samples. Frames are not
// modified after capture.
type Frame struct {
	Samples    []int16
	SampleRate int
}

func (f Frame) Bytes() []byte {
	return pcm.Bytes(f.Samples)
}

func (f Frame) Duration() time.Duration {
	return samplesDuration(len(f.Samples), f.SampleRate)
}

type EndReason string

const (
	EndSilence     EndReason = "silence"
	EndMaxDuration EndReason = "max_duration"
	EndNoAudio     EndReason = "no_audio"
	EndCancelled   EndReason = "cancelled"
)

// Utterance is the concatenation of consecutive frames collected under one
// segmentation policy.
type Utterance struct {
	Samples      []int16
	SampleRate   int
	Frames       int
	SpeechFrames int
	EndReason    EndReason
}

func (u Utterance) Empty() bool {
	return u.Frames == 0
}

func (u Utterance) Duration() time.Duration {
	return samplesDuration(len(u.Samples), u.SampleRate)
}

// Float32 returns the samples scaled into [-1, 1).
func (u Utterance) Float32() []float32 {
	return pcm.Float32(u.Samples)
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
