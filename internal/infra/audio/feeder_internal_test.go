package audio

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"buddy/internal/application"
	"buddy/internal/domain"
	"buddy/internal/pcm"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (s *recordingSink) Push(frame domain.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *recordingSink) snapshot() []domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Frame(nil), s.frames...)
}

func TestClipFeeder_SplitsAndPadsFrames(t *testing.T) {
	format := application.DefaultAudioFormat()
	feeder := newClipFeeder(format, 1)
	feeder.pace = false

	n := format.FrameSamples()
	samples := make([]int16, 2*n+10)
	for i := range samples {
		samples[i] = 7
	}

	sink := &recordingSink{}
	feeder.feed(context.Background(), sink, samples)

	frames := sink.snapshot()
	if len(frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(frames))
	}
	for i, f := range frames {
		if len(f.Samples) != n {
			t.Errorf("frame %d has %d samples, want %d", i, len(f.Samples), n)
		}
		if f.SampleRate != format.SampleRate {
			t.Errorf("frame %d rate = %d", i, f.SampleRate)
		}
	}
	last := frames[2].Samples
	if last[9] != 7 || last[10] != 0 {
		t.Errorf("last frame not zero padded: %v", last[8:12])
	}
}

func TestClipFeeder_EnqueueBacklogFull(t *testing.T) {
	feeder := newClipFeeder(application.DefaultAudioFormat(), 1)

	if !feeder.enqueue([]int16{1}) {
		t.Fatal("first enqueue rejected")
	}
	if feeder.enqueue([]int16{2}) {
		t.Error("enqueue should fail when backlog is full")
	}
	if feeder.pending() != 1 {
		t.Errorf("pending = %d, want 1", feeder.pending())
	}
}

func TestDecodeClip(t *testing.T) {
	raw := pcm.Bytes([]int16{1, -2, 3})

	samples, err := decodeClip(raw, 16000)
	if err != nil {
		t.Fatalf("raw pcm: %v", err)
	}
	if len(samples) != 3 || samples[1] != -2 {
		t.Errorf("raw samples = %v", samples)
	}

	samples, err = decodeClip(pcm.EncodeWAV([]int16{4, 5}, 16000), 16000)
	if err != nil {
		t.Fatalf("wav: %v", err)
	}
	if len(samples) != 2 || samples[0] != 4 {
		t.Errorf("wav samples = %v", samples)
	}

	if _, err := decodeClip(pcm.EncodeWAV([]int16{4, 5}, 8000), 16000); err == nil {
		t.Error("expected sample rate mismatch error")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Error("third request within window should be rejected")
	}
	if !rl.Allow("b") {
		t.Error("other client should have its own window")
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("request after window should pass")
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"remote without port", nil, "10.0.0.5:4242", "10.0.0.5"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "10.0.0.5:1", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": "5.6.7.8"}, "10.0.0.5:1", "5.6.7.8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/audio", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := clientAddr(req); got != tt.want {
				t.Errorf("clientAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailureSignal_KeepsFirstError(t *testing.T) {
	var f failureSignal
	first := errors.New("device unplugged")

	f.report(first)
	f.report(errors.New("stream closed"))

	select {
	case err := <-f.Failed():
		if !errors.Is(err, first) {
			t.Errorf("err = %v, want %v", err, first)
		}
	default:
		t.Fatal("no failure delivered")
	}

	select {
	case err := <-f.Failed():
		t.Errorf("second failure delivered: %v", err)
	default:
	}
}
