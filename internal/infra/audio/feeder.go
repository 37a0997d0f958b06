package audio

import (
	"context"
	"fmt"
	"time"

	"buddy/internal/application"
	"buddy/internal/domain"
	"buddy/internal/pcm"
)

// clipFeeder replays whole clips into a sink as frames, paced at the frame
// duration so downstream timing behaves as it would with a live microphone.
type clipFeeder struct {
	format application.AudioFormat
	clips  chan []int16
	pace   bool
}

func newClipFeeder(format application.AudioFormat, pending int) *clipFeeder {
	return &clipFeeder{
		format: format,
		clips:  make(chan []int16, pending),
		pace:   true,
	}
}

// enqueue returns false when the backlog is full.
func (f *clipFeeder) enqueue(samples []int16) bool {
	select {
	case f.clips <- samples:
		return true
	default:
		return false
	}
}

func (f *clipFeeder) pending() int {
	return len(f.clips)
}

func (f *clipFeeder) run(ctx context.Context, sink application.FrameSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case clip := <-f.clips:
			f.feed(ctx, sink, clip)
		}
	}
}

func (f *clipFeeder) feed(ctx context.Context, sink application.FrameSink, samples []int16) {
	n := f.format.FrameSamples()
	if n <= 0 {
		return
	}

	var tick <-chan time.Time
	if f.pace {
		ticker := time.NewTicker(time.Duration(f.format.FrameMs) * time.Millisecond)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < len(samples); i += n {
		frame := make([]int16, n)
		copy(frame, samples[i:min(i+n, len(samples))])
		sink.Push(domain.Frame{Samples: frame, SampleRate: f.format.SampleRate})

		if tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-tick:
		}
	}
}

// decodeClip accepts a WAV file or raw 16-bit PCM at the configured rate.
func decodeClip(data []byte, sampleRate int) ([]int16, error) {
	if !pcm.IsWAV(data) {
		return pcm.FromBytes(data), nil
	}

	samples, rate, err := pcm.DecodeWAV(data)
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	if rate != sampleRate {
		return nil, fmt.Errorf("wav sample rate %d does not match %d", rate, sampleRate)
	}
	return samples, nil
}
