package application

import (
	"context"

	"buddy/internal/domain"
)

type FrameSink interface {
	Push(frame domain.Frame)
}

// AudioSource produces frames into a sink from its own goroutine until
// stopped or until ctx is done. Producing must never wait on the consumer.
type AudioSource interface {
	Start(ctx context.Context, sink FrameSink) error
	Stop() error
	Name() string
}

// SourceFailer is implemented by sources that can stop producing on their
// own. Failed yields at most one error, after which no more frames arrive.
type SourceFailer interface {
	Failed() <-chan error
}

type AudioFormat struct {
	SampleRate int
	Channels   int
	BitDepth   int
	FrameMs    int
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate: 16000,
		Channels:   1,
		BitDepth:   16,
		FrameMs:    30,
	}
}

// FrameSamples is the number of samples in one frame.
func (f AudioFormat) FrameSamples() int {
	return f.SampleRate * f.FrameMs / 1000
}
