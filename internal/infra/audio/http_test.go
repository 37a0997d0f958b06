package audio_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"buddy/internal/application"
	"buddy/internal/domain"
	"buddy/internal/infra/audio"
	"buddy/internal/pcm"
)

type frameCollector struct {
	mu     sync.Mutex
	frames []domain.Frame
}

func (c *frameCollector) Push(frame domain.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
}

func (c *frameCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func waitForFrames(t *testing.T, c *frameCollector, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.count() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("got %d frames, want at least %d", c.count(), want)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPSource_InjectedAudioBecomesFrames(t *testing.T) {
	format := application.DefaultAudioFormat()
	source := audio.NewHTTPSource("127.0.0.1:0", "", format, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &frameCollector{}
	if err := source.Start(ctx, sink); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()

	if !source.InjectAudio(make([]int16, 3*format.FrameSamples())) {
		t.Fatal("inject rejected")
	}

	waitForFrames(t, sink, 3, 2*time.Second)
}

func TestHTTPSource_PostOverNetwork(t *testing.T) {
	format := application.DefaultAudioFormat()
	source := audio.NewHTTPSource("127.0.0.1:0", "secret", format, discardLogger())

	if source.Addr() != "" {
		t.Errorf("addr before start = %q", source.Addr())
	}

	sink := &frameCollector{}
	if err := source.Start(context.Background(), sink); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()

	url := "http://" + source.Addr() + "/audio?token=secret"
	body := pcm.EncodeWAV(make([]int16, 2*format.FrameSamples()), format.SampleRate)
	resp, err := http.Post(url, "audio/wav", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("posting clip: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status code: got %d, want %d", resp.StatusCode, http.StatusAccepted)
	}
	waitForFrames(t, sink, 2, 2*time.Second)
}

func TestHTTPSource_StartFailsOnBadAddr(t *testing.T) {
	source := audio.NewHTTPSource("256.0.0.1:bad", "", application.DefaultAudioFormat(), discardLogger())
	if err := source.Start(context.Background(), &frameCollector{}); err == nil {
		source.Stop()
		t.Error("expected listen error")
	}
}

func TestHTTPSource_HandleAudioEndpoint(t *testing.T) {
	format := application.DefaultAudioFormat()
	source := audio.NewHTTPSource(":0", "", format, discardLogger())
	handler := source.Handler()

	tests := []struct {
		name       string
		body       []byte
		wantStatus int
	}{
		{"raw pcm", pcm.Bytes(make([]int16, 480)), http.StatusAccepted},
		{"wav", pcm.EncodeWAV(make([]int16, 480), 16000), http.StatusAccepted},
		{"wrong rate wav", pcm.EncodeWAV(make([]int16, 480), 8000), http.StatusBadRequest},
		{"empty", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/audio", bytes.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHTTPSource_AudioEndpointWithToken(t *testing.T) {
	authToken := "test-secret-token-123"
	source := audio.NewHTTPSource(":0", authToken, application.DefaultAudioFormat(), discardLogger())
	handler := source.Handler()

	tests := []struct {
		name       string
		token      string
		method     string
		wantStatus int
	}{
		{
			name:       "valid token in header",
			token:      authToken,
			method:     "header",
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "valid token in query",
			token:      authToken,
			method:     "query",
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "invalid token",
			token:      "wrong-token",
			method:     "header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing token",
			token:      "",
			method:     "header",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := pcm.Bytes(make([]int16, 160))
			var req *http.Request

			if tt.method == "query" {
				req = httptest.NewRequest(http.MethodPost, "/audio?token="+tt.token, bytes.NewReader(body))
			} else {
				req = httptest.NewRequest(http.MethodPost, "/audio", bytes.NewReader(body))
				if tt.token != "" {
					req.Header.Set("X-Auth-Token", tt.token)
				}
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code: got %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHTTPSource_BacklogFull(t *testing.T) {
	source := audio.NewHTTPSource(":0", "", application.DefaultAudioFormat(), discardLogger())
	handler := source.Handler()

	// Not started, so nothing drains the backlog.
	var last int
	for range 20 {
		req := httptest.NewRequest(http.MethodPost, "/audio", bytes.NewReader(pcm.Bytes(make([]int16, 160))))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		last = rec.Code
	}

	if last != http.StatusServiceUnavailable {
		t.Errorf("status code: got %d, want %d", last, http.StatusServiceUnavailable)
	}
}

func TestHTTPSource_Health(t *testing.T) {
	source := audio.NewHTTPSource("127.0.0.1:0", "", application.DefaultAudioFormat(), discardLogger())
	handler := source.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before start: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	if err := source.Start(context.Background(), &frameCollector{}); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after start: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestFileSource_ReplaysDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	format := application.DefaultAudioFormat()
	n := format.FrameSamples()

	files := map[string][]int16{
		"command1.wav": make([]int16, 2*n),
		"command2.wav": make([]int16, n),
	}
	for name, samples := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, pcm.EncodeWAV(samples, format.SampleRate), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}
	}

	source := audio.NewFileSource(tmpDir, format, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := &frameCollector{}
	if err := source.Start(ctx, sink); err != nil {
		t.Fatalf("starting source: %v", err)
	}
	defer source.Stop()

	waitForFrames(t, sink, 3, 4*time.Second)

	for name := range files {
		if _, err := os.Stat(filepath.Join(tmpDir, name+".processed")); err != nil {
			t.Errorf("%s not marked processed: %v", name, err)
		}
	}
}

func TestMicrophoneSource_Name(t *testing.T) {
	mic := audio.NewMicrophoneSource(application.DefaultAudioFormat(), discardLogger())
	if mic.Name() != "microphone" {
		t.Errorf("name = %q", mic.Name())
	}
	if err := mic.Stop(); err != nil {
		t.Errorf("stop before start: %v", err)
	}
}

var _ application.SourceFailer = (*audio.MicrophoneSource)(nil)
