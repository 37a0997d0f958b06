//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"buddy/internal/application"
	"buddy/internal/domain"
)

// MicrophoneSource reads the default input device one frame at a time and
// pushes every frame into the sink without waiting on the consumer. A read
// error other than an overflow ends capture and is reported on Failed.
type MicrophoneSource struct {
	failureSignal

	format application.AudioFormat
	logger *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMicrophoneSource(format application.AudioFormat, logger *slog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		format: format,
		logger: logger.With("component", "audio.microphone"),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Start(ctx context.Context, sink application.FrameSink) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, m.format.FrameSamples())

	stream, err := portaudio.OpenDefaultStream(
		1,
		0,
		float64(m.format.SampleRate),
		len(buffer),
		buffer,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.stream = stream
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.capture(ctx, stream, buffer, sink)

	m.logger.Info("microphone started", "sampleRate", m.format.SampleRate, "frameMs", m.format.FrameMs)
	return nil
}

func (m *MicrophoneSource) capture(ctx context.Context, stream *portaudio.Stream, buffer []int16, sink application.FrameSink) {
	defer close(m.done)

	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				m.logger.Debug("input overflowed")
				continue
			}
			m.logger.Error("reading from stream", "error", err)
			m.report(fmt.Errorf("reading from stream: %w", err))
			return
		}

		frame := make([]int16, len(buffer))
		copy(frame, buffer)
		sink.Push(domain.Frame{Samples: frame, SampleRate: m.format.SampleRate})
	}
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	m.cancel()
	<-m.done

	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping stream: %w", err))
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing stream: %w", err))
	}
	m.stream = nil
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminating portaudio: %w", err))
	}
	return errors.Join(errs...)
}
